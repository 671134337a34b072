package wake_protocol_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holpsBot/proof-of-wake/ledger"
	"github.com/holpsBot/proof-of-wake/program"
	wake_protocol "github.com/holpsBot/proof-of-wake/solana"
)

const stake = 100_000_000

// 06:58 UTC, two minutes before a 07:00 alarm
var genesis = time.Date(2026, 3, 2, 6, 58, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*ledger.Runtime, *clockwork.FakeClock) {
	t.Helper()
	store, err := ledger.NewStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	clock := clockwork.NewFakeClockAt(genesis)
	rt, err := ledger.NewRuntime(
		store,
		ledger.WithClock(clock),
		ledger.WithFaucet(true),
		ledger.WithProgram(program.New(nil)),
	)
	require.NoError(t, err)
	return rt, clock
}

func newFundedClient(t *testing.T, rt *ledger.Runtime, lamports uint64) *wake_protocol.Client {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	c := wake_protocol.NewClient(rt, key, nil)
	_, err = c.RequestAirdrop(context.Background(), lamports)
	require.NoError(t, err)
	return c
}

func TestClientChallengeFlow(t *testing.T) {
	ctx := context.Background()
	rt, clock := newTestLedger(t)
	admin := newFundedClient(t, rt, 10*solana.LAMPORTS_PER_SOL)
	user := newFundedClient(t, rt, solana.LAMPORTS_PER_SOL)

	treasury, err := admin.FetchTreasury(ctx)
	require.NoError(t, err)
	assert.Nil(t, treasury)

	_, err = admin.InitializeTreasury(ctx)
	require.NoError(t, err)
	_, err = admin.FundTreasury(ctx, 5*solana.LAMPORTS_PER_SOL)
	require.NoError(t, err)

	treasury, err = admin.FetchTreasury(ctx)
	require.NoError(t, err)
	require.NotNil(t, treasury)
	assert.Equal(t, admin.PublicKey(), treasury.Authority)
	assert.Equal(t, uint64(5*solana.LAMPORTS_PER_SOL), treasury.TotalFunded)
	assert.Equal(t, uint64(5*solana.LAMPORTS_PER_SOL), treasury.Balance)

	ch, err := user.FetchChallenge(ctx, user.PublicKey())
	require.NoError(t, err)
	assert.Nil(t, ch)

	_, err = user.StartChallenge(ctx, 7, 0, 0, stake)
	require.NoError(t, err)

	progress, err := user.ChallengeProgress(ctx, user.PublicKey(), clock.Now())
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.True(t, progress.Active)
	assert.Equal(t, uint16(0), progress.Day)
	assert.Equal(t, uint16(program.MaturityDays), progress.TotalDays)
	assert.Equal(t, program.Bonus(stake), progress.PotentialBonus)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 55, 0, 0, time.UTC), progress.NextWindow)
	assert.Equal(t, genesis.Add(program.GracePeriod), progress.SlashableAt)

	clock.Advance(2 * time.Minute)
	_, err = user.CompleteDay(ctx)
	require.NoError(t, err)

	ch, err = user.FetchChallenge(ctx, user.PublicKey())
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, uint16(1), ch.Streak)

	// Today's window is used up, the view points at tomorrow's
	clock.Advance(time.Minute)
	progress, err = user.ChallengeProgress(ctx, user.PublicKey(), clock.Now())
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, uint16(1), progress.Day)
	assert.Equal(t, time.Date(2026, 3, 3, 6, 55, 0, 0, time.UTC), progress.NextWindow)

	_, err = user.CompleteDay(ctx)
	require.ErrorIs(t, err, program.ErrAlreadyCompletedToday)
	assert.Equal(t, program.KindTemporal, program.KindOf(err))
}

func TestReadOnlyClientCannotSubmit(t *testing.T) {
	rt, _ := newTestLedger(t)
	c := wake_protocol.NewReadOnlyClient(rt, nil)
	_, err := c.InitializeTreasury(context.Background())
	require.ErrorIs(t, err, wake_protocol.ErrNoSigner)
}

func TestSendSol(t *testing.T) {
	ctx := context.Background()
	rt, _ := newTestLedger(t)
	alice := newFundedClient(t, rt, solana.LAMPORTS_PER_SOL)
	bob := newFundedClient(t, rt, 0)

	_, err := alice.SendSol(ctx, bob.PublicKey(), 250_000_000)
	require.NoError(t, err)
	balance, err := bob.GetBalance(ctx, bob.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), balance)

	_, err = bob.SendSol(ctx, alice.PublicKey(), solana.LAMPORTS_PER_SOL)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestSlashableChallenges(t *testing.T) {
	ctx := context.Background()
	rt, clock := newTestLedger(t)
	admin := newFundedClient(t, rt, solana.LAMPORTS_PER_SOL)
	_, err := admin.InitializeTreasury(ctx)
	require.NoError(t, err)

	lazy := newFundedClient(t, rt, solana.LAMPORTS_PER_SOL)
	_, err = lazy.StartChallenge(ctx, 7, 0, 0, stake)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	diligent := newFundedClient(t, rt, solana.LAMPORTS_PER_SOL)
	_, err = diligent.StartChallenge(ctx, 7, 0, 0, stake)
	require.NoError(t, err)

	all, err := admin.FetchAllChallenges(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	clock.Advance(24 * time.Hour)
	slashable, err := admin.SlashableChallenges(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, slashable, 1)
	assert.Equal(t, lazy.PublicKey(), slashable[0].Authority)

	_, err = admin.Slash(ctx, slashable[0].Authority)
	require.NoError(t, err)

	slashable, err = admin.SlashableChallenges(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, slashable)

	treasury, err := admin.FetchTreasury(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(stake), treasury.Balance)
}

func TestGetHistory(t *testing.T) {
	ctx := context.Background()
	rt, clock := newTestLedger(t)
	admin := newFundedClient(t, rt, 2*solana.LAMPORTS_PER_SOL)
	user := newFundedClient(t, rt, solana.LAMPORTS_PER_SOL)

	_, err := admin.InitializeTreasury(ctx)
	require.NoError(t, err)
	_, err = admin.SendSol(ctx, user.PublicKey(), 1_000)
	require.NoError(t, err)
	_, err = user.StartChallenge(ctx, 7, 0, 0, stake)
	require.NoError(t, err)
	// Rejected by the program; failed transactions are left out
	_, err = user.CompleteDay(ctx)
	require.ErrorIs(t, err, program.ErrOutsideAlarmWindow)
	clock.Advance(2 * time.Minute)
	_, err = user.CompleteDay(ctx)
	require.NoError(t, err)

	history, err := user.GetHistory(ctx, user.PublicKey())
	require.NoError(t, err)

	require.Len(t, history.SolHistory, 2)
	assert.Equal(t, wake_protocol.EventSolTransferReceived, history.SolHistory[0].Type)
	assert.Equal(t, uint64(1_000), history.SolHistory[0].Amount)
	assert.Equal(t, admin.PublicKey(), history.SolHistory[0].Sender)
	assert.Equal(t, wake_protocol.EventAirdrop, history.SolHistory[1].Type)
	assert.Equal(t, uint64(solana.LAMPORTS_PER_SOL), history.SolHistory[1].Amount)

	require.Len(t, history.WakeHistory, 2)
	assert.Equal(t, program.EventDayCompleted, history.WakeHistory[0].Type)
	assert.Equal(t, uint16(1), history.WakeHistory[0].Streak)
	assert.Equal(t, genesis.Add(2*time.Minute), history.WakeHistory[0].Timestamp)
	assert.Equal(t, program.EventChallengeStarted, history.WakeHistory[1].Type)
	assert.Equal(t, uint64(stake), history.WakeHistory[1].Amount)

	adminHistory, err := admin.GetHistory(ctx, admin.PublicKey())
	require.NoError(t, err)
	require.Len(t, adminHistory.WakeHistory, 1)
	assert.Equal(t, program.EventTreasuryInitialized, adminHistory.WakeHistory[0].Type)
	require.Len(t, adminHistory.SolHistory, 2)
	assert.Equal(t, wake_protocol.EventSolTransferSent, adminHistory.SolHistory[0].Type)
}

func TestIDLMatchesProgram(t *testing.T) {
	idl, err := wake_protocol.GetIDL()
	require.NoError(t, err)
	assert.Equal(t, program.ProgramID.String(), idl.Address)

	require.Len(t, idl.Errors, len(program.Errors))
	for i, e := range program.Errors {
		assert.Equal(t, e.Code, idl.Errors[i].Code)
		assert.Equal(t, e.Name, idl.Errors[i].Name)
		assert.Equal(t, e.Msg, idl.Errors[i].Msg)
	}

	require.Len(t, idl.Events, len(program.EventNames()))
	for i, name := range program.EventNames() {
		disc := program.EventDiscriminator(name)
		assert.Equal(t, name, idl.Events[i].Name)
		assert.Equal(t, disc[:], idl.Events[i].Discriminator)
	}

	for _, acct := range idl.Accounts {
		disc := program.AccountDiscriminator(acct.Name)
		assert.Equal(t, disc[:], acct.Discriminator)
	}

	e, ok := wake_protocol.LookupError(6011)
	require.True(t, ok)
	assert.Equal(t, "PoolDepleted", e.Name)
	_, ok = wake_protocol.LookupError(42)
	assert.False(t, ok)
}

func TestWalletFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "wallet.json")

	created, isNew, err := wake_protocol.LoadOrCreateWallet(path)
	require.NoError(t, err)
	assert.True(t, isNew)

	loaded, isNew, err := wake_protocol.LoadOrCreateWallet(path)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.PublicKey(), loaded.PublicKey())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('['), data[0])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.WriteFile(path, []byte("[1,2,3]"), 0o600))
	_, err = wake_protocol.LoadWallet(path)
	require.Error(t, err)
}
