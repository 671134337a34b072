package program_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holpsBot/proof-of-wake/ledger"
	"github.com/holpsBot/proof-of-wake/program"
)

const (
	sol   = 1_000_000_000
	stake = 100_000_000
)

// 06:58 UTC on a Monday
var genesis = time.Date(2026, 3, 2, 6, 58, 0, 0, time.UTC)

type harness struct {
	t       *testing.T
	ctx     context.Context
	rt      *ledger.Runtime
	clock   *clockwork.FakeClock
	lastErr error
}

func newHarness(t *testing.T) *harness {
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
	return &harness{t: t, ctx: context.Background(), rt: rt, clock: clock}
}

func (h *harness) wallet(lamports uint64) solana.PrivateKey {
	h.t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(h.t, err)
	_, err = h.rt.RequestAirdrop(h.ctx, key.PublicKey(), lamports)
	require.NoError(h.t, err)
	return key
}

// ix unwraps an instruction builder
func (h *harness) ix(ix solana.Instruction, err error) solana.Instruction {
	h.t.Helper()
	require.NoError(h.t, err)
	return ix
}

func (h *harness) send(signer solana.PrivateKey, ix solana.Instruction) []string {
	h.t.Helper()
	hash, err := h.rt.GetLatestBlockhash(h.ctx)
	require.NoError(h.t, err)
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, hash, solana.TransactionPayer(signer.PublicKey()))
	require.NoError(h.t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	})
	require.NoError(h.t, err)
	sig, sendErr := h.rt.SendTransaction(h.ctx, tx)
	rec, err := h.rt.GetTransaction(h.ctx, sig)
	require.NoError(h.t, err)
	if sendErr != nil {
		h.t.Logf("transaction failed: %s", sendErr)
	}
	h.lastErr = sendErr
	return rec.Logs
}

func (h *harness) mustSend(signer solana.PrivateKey, ix solana.Instruction) []string {
	h.t.Helper()
	logs := h.send(signer, ix)
	require.NoError(h.t, h.lastErr)
	return logs
}

func (h *harness) sendErr(signer solana.PrivateKey, ix solana.Instruction) error {
	h.t.Helper()
	h.send(signer, ix)
	require.Error(h.t, h.lastErr)
	assert.True(h.t, ledger.IsProgramError(h.lastErr))
	return h.lastErr
}

func (h *harness) balance(addr solana.PublicKey) uint64 {
	h.t.Helper()
	balance, err := h.rt.GetBalance(h.ctx, addr)
	require.NoError(h.t, err)
	return balance
}

func (h *harness) challenge(authority solana.PublicKey) *program.Challenge {
	h.t.Helper()
	addr, _, err := program.ChallengePDA(authority)
	require.NoError(h.t, err)
	acct, err := h.rt.GetAccountInfo(h.ctx, addr)
	require.NoError(h.t, err)
	c, err := program.DecodeChallenge(acct.Data)
	require.NoError(h.t, err)
	return c
}

func (h *harness) treasury() (*program.Treasury, uint64) {
	h.t.Helper()
	addr, _, err := program.TreasuryPDA()
	require.NoError(h.t, err)
	acct, err := h.rt.GetAccountInfo(h.ctx, addr)
	require.NoError(h.t, err)
	tr, err := program.DecodeTreasury(acct.Data)
	require.NoError(h.t, err)
	return tr, acct.Lamports
}

// at moves the clock forward to when
func (h *harness) at(when time.Time) {
	h.t.Helper()
	require.False(h.t, when.Before(h.clock.Now()), "clock cannot go back")
	h.clock.Advance(when.Sub(h.clock.Now()))
}

// alarm returns 07:00 UTC plus offset on the given day after genesis
func alarm(day int, offset time.Duration) time.Time {
	return time.Date(2026, 3, 2+day, 7, 0, 0, 0, time.UTC).Add(offset)
}

func (h *harness) setupTreasury(funding uint64) solana.PrivateKey {
	h.t.Helper()
	admin := h.wallet(10 * sol)
	h.mustSend(admin, h.ix(program.NewInitializeTreasuryInstruction(admin.PublicKey())))
	if funding > 0 {
		h.mustSend(admin, h.ix(program.NewFundTreasuryInstruction(admin.PublicKey(), funding)))
	}
	return admin
}

func (h *harness) start(user solana.PrivateKey, hour, minute uint8, offset int16, amount uint64) {
	h.t.Helper()
	h.mustSend(user, h.ix(program.NewStartChallengeInstruction(user.PublicKey(), program.StartChallengeArgs{
		AlarmHour:      hour,
		AlarmMinute:    minute,
		TimezoneOffset: offset,
		StakeAmount:    amount,
	})))
}

func eventsIn(t *testing.T, logs []string, name string) []any {
	t.Helper()
	var ret []any
	for _, line := range logs {
		payload, ok := strings.CutPrefix(line, "Program data: ")
		if !ok {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		require.NoError(t, err)
		event, err := program.DecodeEvent(name, data)
		if err != nil {
			continue
		}
		ret = append(ret, event)
	}
	return ret
}

func TestInitializeTreasury(t *testing.T) {
	h := newHarness(t)
	admin := h.wallet(sol)
	logs := h.mustSend(admin, h.ix(program.NewInitializeTreasuryInstruction(admin.PublicKey())))
	tr, balance := h.treasury()
	assert.Equal(t, admin.PublicKey(), tr.Authority)
	assert.Equal(t, uint64(0), tr.TotalFunded)
	assert.Equal(t, uint64(0), balance)
	require.Len(t, eventsIn(t, logs, program.EventTreasuryInitialized), 1)

	other := h.wallet(sol)
	err := h.sendErr(other, h.ix(program.NewInitializeTreasuryInstruction(other.PublicKey())))
	require.ErrorIs(t, err, program.ErrAlreadyInitialized)
	assert.Equal(t, program.KindState, program.KindOf(err))
	tr, _ = h.treasury()
	assert.Equal(t, admin.PublicKey(), tr.Authority)
}

func TestFundTreasury(t *testing.T) {
	h := newHarness(t)
	funder := h.wallet(10 * sol)

	err := h.sendErr(funder, h.ix(program.NewFundTreasuryInstruction(funder.PublicKey(), sol)))
	require.ErrorIs(t, err, program.ErrTreasuryNotInitialized)

	h.setupTreasury(0)
	err = h.sendErr(funder, h.ix(program.NewFundTreasuryInstruction(funder.PublicKey(), 0)))
	require.ErrorIs(t, err, program.ErrInvalidAmount)
	assert.Equal(t, program.KindValidation, program.KindOf(err))

	err = h.sendErr(funder, h.ix(program.NewFundTreasuryInstruction(funder.PublicKey(), 11*sol)))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	logs := h.mustSend(funder, h.ix(program.NewFundTreasuryInstruction(funder.PublicKey(), 3*sol)))
	tr, balance := h.treasury()
	assert.Equal(t, uint64(3*sol), tr.TotalFunded)
	assert.Equal(t, uint64(3*sol), balance)
	assert.Equal(t, uint64(7*sol), h.balance(funder.PublicKey()))
	events := eventsIn(t, logs, program.EventTreasuryFunded)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(3*sol), events[0].(*program.TreasuryFunded).TotalFunded)
}

func TestFundingIsOrderIndependent(t *testing.T) {
	const a, b = 1_250_000, 7_000_000_000

	split := newHarness(t)
	split.setupTreasury(0)
	funder := split.wallet(10 * sol)
	split.mustSend(funder, split.ix(program.NewFundTreasuryInstruction(funder.PublicKey(), a)))
	split.mustSend(funder, split.ix(program.NewFundTreasuryInstruction(funder.PublicKey(), b)))
	splitTreasury, splitBalance := split.treasury()

	once := newHarness(t)
	once.setupTreasury(0)
	funder = once.wallet(10 * sol)
	once.mustSend(funder, once.ix(program.NewFundTreasuryInstruction(funder.PublicKey(), a+b)))
	onceTreasury, onceBalance := once.treasury()

	assert.Equal(t, onceTreasury.TotalFunded, splitTreasury.TotalFunded)
	assert.Equal(t, onceBalance, splitBalance)
	assert.Equal(t, uint64(a+b), splitTreasury.TotalFunded)
}

func TestStartChallengeValidation(t *testing.T) {
	h := newHarness(t)
	user := h.wallet(sol)
	testDefs := []struct {
		args     program.StartChallengeArgs
		expected error
	}{
		{args: program.StartChallengeArgs{AlarmHour: 24, StakeAmount: stake}, expected: program.ErrInvalidTimeValue},
		{args: program.StartChallengeArgs{AlarmMinute: 60, StakeAmount: stake}, expected: program.ErrInvalidTimeValue},
		{args: program.StartChallengeArgs{TimezoneOffset: 841, StakeAmount: stake}, expected: program.ErrInvalidTimeValue},
		{args: program.StartChallengeArgs{TimezoneOffset: -721, StakeAmount: stake}, expected: program.ErrInvalidTimeValue},
		{args: program.StartChallengeArgs{AlarmHour: 7}, expected: program.ErrInvalidStake},
		{args: program.StartChallengeArgs{AlarmHour: 7, StakeAmount: 2 * sol}, expected: ledger.ErrInsufficientFunds},
	}
	for _, testDef := range testDefs {
		err := h.sendErr(user, h.ix(program.NewStartChallengeInstruction(user.PublicKey(), testDef.args)))
		require.ErrorIs(t, err, testDef.expected, "%+v", testDef.args)
	}
	assert.Equal(t, uint64(sol), h.balance(user.PublicKey()))
	addr, _, err := program.ChallengePDA(user.PublicKey())
	require.NoError(t, err)
	_, err = h.rt.GetAccountInfo(h.ctx, addr)
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)

	h.start(user, 7, 0, 0, stake)
	err = h.sendErr(user, h.ix(program.NewStartChallengeInstruction(user.PublicKey(), program.StartChallengeArgs{AlarmHour: 8, StakeAmount: stake})))
	require.ErrorIs(t, err, program.ErrAlreadyActive)

	c := h.challenge(user.PublicKey())
	assert.Equal(t, user.PublicKey(), c.Authority)
	assert.Equal(t, uint8(7), c.AlarmHour)
	assert.Equal(t, uint64(stake), c.StakeAmount)
	assert.True(t, c.IsActive)
	assert.Equal(t, uint16(0), c.Streak)
	assert.Equal(t, genesis.Unix(), c.LastActionTimestamp)
	assert.Equal(t, uint64(stake), h.balance(addr))
	assert.Equal(t, uint64(sol-stake), h.balance(user.PublicKey()))
}

func TestStartChallengeWrongAddress(t *testing.T) {
	h := newHarness(t)
	user := h.wallet(sol)
	data := program.InstructionDiscriminator(program.InstructionStartChallenge)
	args := []byte{7, 0, 0, 0, 0xe1, 0xf5, 0x05, 0, 0, 0, 0, 0}
	ix := solana.NewInstruction(
		program.ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(solana.NewWallet().PublicKey()).WRITE(),
			solana.Meta(user.PublicKey()).WRITE().SIGNER(),
			solana.Meta(solana.SystemProgramID),
		},
		append(data[:], args...),
	)
	err := h.sendErr(user, ix)
	require.ErrorIs(t, err, program.ErrInvalidAccountAddress)
	assert.Equal(t, program.KindAuthority, program.KindOf(err))
}

func TestInvalidInstruction(t *testing.T) {
	h := newHarness(t)
	user := h.wallet(sol)
	ix := solana.NewInstruction(
		program.ProgramID,
		solana.AccountMetaSlice{solana.Meta(user.PublicKey()).WRITE().SIGNER()},
		[]byte{1, 2, 3},
	)
	err := h.sendErr(user, ix)
	require.ErrorIs(t, err, program.ErrInvalidInstruction)
}

func TestCompleteDayWindowAndDayRule(t *testing.T) {
	h := newHarness(t)
	h.setupTreasury(sol)
	user := h.wallet(sol)
	h.start(user, 7, 0, 0, stake)
	complete := h.ix(program.NewCompleteDayInstruction(user.PublicKey()))

	h.at(alarm(0, 0))
	logs := h.mustSend(user, complete)
	assert.Equal(t, uint16(1), h.challenge(user.PublicKey()).Streak)
	events := eventsIn(t, logs, program.EventDayCompleted)
	require.Len(t, events, 1)
	assert.Equal(t, uint16(1), events[0].(*program.DayCompleted).Streak)

	h.at(alarm(0, 3*time.Minute))
	err := h.sendErr(user, complete)
	require.ErrorIs(t, err, program.ErrAlreadyCompletedToday)
	assert.Equal(t, program.KindTemporal, program.KindOf(err))

	h.at(alarm(0, 2*time.Hour))
	err = h.sendErr(user, complete)
	require.ErrorIs(t, err, program.ErrOutsideAlarmWindow)
	assert.Equal(t, uint16(1), h.challenge(user.PublicKey()).Streak)

	// Early edge of the next morning's window
	h.at(alarm(1, -program.WakeTolerance))
	h.mustSend(user, complete)
	c := h.challenge(user.PublicKey())
	assert.Equal(t, uint16(2), c.Streak)
	assert.Equal(t, alarm(1, -program.WakeTolerance).Unix(), c.LastActionTimestamp)
}

func TestCompleteDayOutsideToleranceByOneMinute(t *testing.T) {
	h := newHarness(t)
	h.setupTreasury(sol)
	user := h.wallet(sol)
	h.start(user, 7, 0, 0, stake)
	complete := h.ix(program.NewCompleteDayInstruction(user.PublicKey()))

	h.at(alarm(0, program.WakeTolerance+time.Minute))
	require.ErrorIs(t, h.sendErr(user, complete), program.ErrOutsideAlarmWindow)
	h.at(alarm(1, -program.WakeTolerance-time.Minute))
	require.ErrorIs(t, h.sendErr(user, complete), program.ErrOutsideAlarmWindow)
	h.at(alarm(1, program.WakeTolerance))
	h.mustSend(user, complete)
}

func TestCompleteDayTimezone(t *testing.T) {
	h := newHarness(t)
	h.setupTreasury(sol)
	user := h.wallet(sol)
	// 07:00 at UTC+2 is 05:00 UTC
	h.start(user, 7, 0, 120, stake)
	complete := h.ix(program.NewCompleteDayInstruction(user.PublicKey()))

	h.at(alarm(1, -2*time.Hour))
	h.mustSend(user, complete)
	h.at(alarm(1, 0))
	require.ErrorIs(t, h.sendErr(user, complete), program.ErrOutsideAlarmWindow)
	assert.Equal(t, uint16(1), h.challenge(user.PublicKey()).Streak)
}

func TestCompleteDayAcrossMidnight(t *testing.T) {
	h := newHarness(t)
	h.setupTreasury(sol)
	user := h.wallet(sol)
	h.start(user, 0, 0, 0, stake)
	complete := h.ix(program.NewCompleteDayInstruction(user.PublicKey()))
	midnight := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	h.at(midnight.Add(-3 * time.Minute))
	h.mustSend(user, complete)
	h.at(midnight.Add(3 * time.Minute))
	require.ErrorIs(t, h.sendErr(user, complete), program.ErrAlreadyCompletedToday)
	h.at(midnight.Add(24*time.Hour - 2*time.Minute))
	h.mustSend(user, complete)
	assert.Equal(t, uint16(2), h.challenge(user.PublicKey()).Streak)
}

func TestCompleteDayByNonOwner(t *testing.T) {
	h := newHarness(t)
	h.setupTreasury(sol)
	victim := h.wallet(sol)
	attacker := h.wallet(sol)
	h.start(victim, 7, 0, 0, stake)
	victimChallenge, _, err := program.ChallengePDA(victim.PublicKey())
	require.NoError(t, err)
	treasury, _, err := program.TreasuryPDA()
	require.NoError(t, err)
	data := program.InstructionDiscriminator(program.InstructionCompleteDay)
	before := h.challenge(victim.PublicKey())

	attempts := []solana.Instruction{
		// Attacker signs for the victim's challenge
		solana.NewInstruction(
			program.ProgramID,
			solana.AccountMetaSlice{
				solana.Meta(victimChallenge).WRITE(),
				solana.Meta(treasury).WRITE(),
				solana.Meta(attacker.PublicKey()).WRITE().SIGNER(),
				solana.Meta(solana.SystemProgramID),
			},
			data[:],
		),
		// Victim listed as authority without signing
		solana.NewInstruction(
			program.ProgramID,
			solana.AccountMetaSlice{
				solana.Meta(victimChallenge).WRITE(),
				solana.Meta(treasury).WRITE(),
				solana.Meta(victim.PublicKey()).WRITE(),
				solana.Meta(solana.SystemProgramID),
			},
			data[:],
		),
	}
	for _, when := range []time.Time{alarm(0, 0), alarm(0, 6*time.Hour), alarm(1, 0)} {
		h.at(when)
		for _, ix := range attempts {
			err := h.sendErr(attacker, ix)
			require.ErrorIs(t, err, program.ErrUnauthorized)
			assert.Equal(t, program.KindAuthority, program.KindOf(err))
		}
		// The attacker's own challenge does not exist
		err := h.sendErr(attacker, h.ix(program.NewCompleteDayInstruction(attacker.PublicKey())))
		require.ErrorIs(t, err, program.ErrNotActive)
	}
	assert.Equal(t, before, h.challenge(victim.PublicKey()))
	assert.Equal(t, uint64(sol), h.balance(attacker.PublicKey()))
}

func TestMaturity(t *testing.T) {
	h := newHarness(t)
	h.setupTreasury(sol)
	user := h.wallet(sol)
	h.start(user, 7, 0, 0, stake)
	complete := h.ix(program.NewCompleteDayInstruction(user.PublicKey()))
	challengeAddr, _, err := program.ChallengePDA(user.PublicKey())
	require.NoError(t, err)

	var logs []string
	prev := uint16(0)
	for day := 0; day < program.MaturityDays; day++ {
		h.at(alarm(day, time.Minute))
		logs = h.mustSend(user, complete)
		c := h.challenge(user.PublicKey())
		assert.Equal(t, prev+1, c.Streak, "day %d", day)
		prev = c.Streak
		if day < program.MaturityDays-1 {
			assert.True(t, c.IsActive)
		}
	}
	bonus := program.Bonus(stake)
	assert.Equal(t, uint64(6_900_000), bonus)
	c := h.challenge(user.PublicKey())
	assert.False(t, c.IsActive)
	assert.Equal(t, program.OutcomeMatured, c.Outcome)
	assert.Equal(t, uint16(program.MaturityDays), c.Streak)
	assert.Equal(t, uint64(sol)+bonus, h.balance(user.PublicKey()))
	assert.Equal(t, uint64(0), h.balance(challengeAddr))
	tr, balance := h.treasury()
	assert.Equal(t, uint64(sol)-bonus, balance)
	assert.Equal(t, uint64(sol), tr.TotalFunded)
	matured := eventsIn(t, logs, program.EventChallengeMatured)
	require.Len(t, matured, 1)
	assert.Equal(t, bonus, matured[0].(*program.ChallengeMatured).Bonus)
	assert.Equal(t, uint64(stake), matured[0].(*program.ChallengeMatured).StakeReturned)

	h.at(alarm(program.MaturityDays, 0))
	err = h.sendErr(user, complete)
	require.ErrorIs(t, err, program.ErrNotActive)
	err = h.sendErr(user, h.ix(program.NewSlashInstruction(user.PublicKey(), user.PublicKey())))
	require.ErrorIs(t, err, program.ErrNotActive)
}

func TestMaturityPoolDepleted(t *testing.T) {
	h := newHarness(t)
	admin := h.setupTreasury(0)
	user := h.wallet(sol)
	h.start(user, 7, 0, 0, stake)
	complete := h.ix(program.NewCompleteDayInstruction(user.PublicKey()))
	challengeAddr, _, err := program.ChallengePDA(user.PublicKey())
	require.NoError(t, err)

	for day := 0; day < program.MaturityDays-1; day++ {
		h.at(alarm(day, 0))
		h.mustSend(user, complete)
	}
	h.at(alarm(program.MaturityDays-1, 0))
	before := h.challenge(user.PublicKey())
	err = h.sendErr(user, complete)
	require.ErrorIs(t, err, program.ErrPoolDepleted)
	require.ErrorIs(t, err, program.ErrInsufficientPool)
	assert.Equal(t, program.KindResource, program.KindOf(err))

	// Nothing moved, not even the principal
	assert.Equal(t, before, h.challenge(user.PublicKey()))
	assert.Equal(t, uint64(program.MaturityDays-1), uint64(before.Streak))
	assert.True(t, before.IsActive)
	assert.Equal(t, uint64(stake), h.balance(challengeAddr))
	assert.Equal(t, uint64(sol-stake), h.balance(user.PublicKey()))

	h.mustSend(admin, h.ix(program.NewFundTreasuryInstruction(admin.PublicKey(), program.Bonus(stake))))
	h.at(alarm(program.MaturityDays-1, time.Minute))
	h.mustSend(user, complete)
	assert.Equal(t, uint64(sol)+program.Bonus(stake), h.balance(user.PublicKey()))
	_, balance := h.treasury()
	assert.Equal(t, uint64(0), balance)
}

func TestSlash(t *testing.T) {
	h := newHarness(t)
	h.setupTreasury(sol)
	user := h.wallet(sol)
	keeper := h.wallet(sol)
	h.start(user, 7, 0, 0, stake)
	slashIx := h.ix(program.NewSlashInstruction(keeper.PublicKey(), user.PublicKey()))
	challengeAddr, _, err := program.ChallengePDA(user.PublicKey())
	require.NoError(t, err)

	err = h.sendErr(keeper, slashIx)
	require.ErrorIs(t, err, program.ErrNotSlashableYet)
	assert.Equal(t, program.KindTemporal, program.KindOf(err))

	h.at(genesis.Add(program.GracePeriod - time.Second))
	require.ErrorIs(t, h.sendErr(keeper, slashIx), program.ErrNotSlashableYet)
	assert.True(t, h.challenge(user.PublicKey()).IsActive)

	h.at(genesis.Add(program.GracePeriod))
	logs := h.mustSend(keeper, slashIx)
	c := h.challenge(user.PublicKey())
	assert.False(t, c.IsActive)
	assert.Equal(t, program.OutcomeSlashed, c.Outcome)
	assert.Equal(t, uint64(0), h.balance(challengeAddr))
	tr, balance := h.treasury()
	assert.Equal(t, uint64(sol+stake), tr.TotalFunded)
	assert.Equal(t, uint64(sol+stake), balance)
	assert.Equal(t, uint64(sol), h.balance(keeper.PublicKey()))
	assert.Equal(t, uint64(sol-stake), h.balance(user.PublicKey()))
	slashed := eventsIn(t, logs, program.EventChallengeSlashed)
	require.Len(t, slashed, 1)
	assert.Equal(t, keeper.PublicKey(), slashed[0].(*program.ChallengeSlashed).Caller)

	require.ErrorIs(t, h.sendErr(keeper, slashIx), program.ErrNotActive)
	h.at(alarm(2, 0))
	require.ErrorIs(t, h.sendErr(user, h.ix(program.NewCompleteDayInstruction(user.PublicKey()))), program.ErrNotActive)

	// A finished challenge can be started again from scratch
	h.start(user, 6, 30, 0, stake/2)
	c = h.challenge(user.PublicKey())
	assert.True(t, c.IsActive)
	assert.Equal(t, uint16(0), c.Streak)
	assert.Equal(t, program.OutcomeNone, c.Outcome)
	assert.Equal(t, uint64(stake/2), h.balance(challengeAddr))
}

// tip sends lamports from a stranger straight to the challenge escrow
func (h *harness) tip(authority solana.PublicKey, lamports uint64) {
	h.t.Helper()
	addr, _, err := program.ChallengePDA(authority)
	require.NoError(h.t, err)
	stranger := h.wallet(lamports)
	h.mustSend(stranger, system.NewTransferInstruction(lamports, stranger.PublicKey(), addr).Build())
}

func TestSlashSweepsEscrow(t *testing.T) {
	const extra = 1_234_567
	h := newHarness(t)
	h.setupTreasury(sol)
	user := h.wallet(sol)
	keeper := h.wallet(sol)
	h.start(user, 7, 0, 0, stake)
	h.tip(user.PublicKey(), extra)
	challengeAddr, _, err := program.ChallengePDA(user.PublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(stake+extra), h.balance(challengeAddr))

	h.at(genesis.Add(program.GracePeriod))
	logs := h.mustSend(keeper, h.ix(program.NewSlashInstruction(keeper.PublicKey(), user.PublicKey())))
	assert.Equal(t, uint64(0), h.balance(challengeAddr))
	tr, balance := h.treasury()
	assert.Equal(t, uint64(sol+stake+extra), balance)
	assert.Equal(t, uint64(sol+stake+extra), tr.TotalFunded)
	slashed := eventsIn(t, logs, program.EventChallengeSlashed)
	require.Len(t, slashed, 1)
	assert.Equal(t, uint64(stake+extra), slashed[0].(*program.ChallengeSlashed).Amount)

	// A restart escrows exactly the new stake
	h.start(user, 7, 0, 0, stake/2)
	assert.Equal(t, uint64(stake/2), h.balance(challengeAddr))
}

func TestMaturitySweepsEscrow(t *testing.T) {
	const extra = 7_654_321
	h := newHarness(t)
	h.setupTreasury(sol)
	user := h.wallet(sol)
	h.start(user, 7, 0, 0, stake)
	h.tip(user.PublicKey(), extra)
	complete := h.ix(program.NewCompleteDayInstruction(user.PublicKey()))
	challengeAddr, _, err := program.ChallengePDA(user.PublicKey())
	require.NoError(t, err)

	var logs []string
	for day := 0; day < program.MaturityDays; day++ {
		h.at(alarm(day, 0))
		logs = h.mustSend(user, complete)
	}
	bonus := program.Bonus(stake)
	assert.Equal(t, program.OutcomeMatured, h.challenge(user.PublicKey()).Outcome)
	assert.Equal(t, uint64(0), h.balance(challengeAddr))
	assert.Equal(t, uint64(sol)+extra+bonus, h.balance(user.PublicKey()))
	tr, balance := h.treasury()
	assert.Equal(t, uint64(sol)-bonus, balance)
	assert.Equal(t, uint64(sol), tr.TotalFunded)
	matured := eventsIn(t, logs, program.EventChallengeMatured)
	require.Len(t, matured, 1)
	assert.Equal(t, uint64(stake+extra), matured[0].(*program.ChallengeMatured).StakeReturned)
	assert.Equal(t, bonus, matured[0].(*program.ChallengeMatured).Bonus)
}

func TestSlashGraceRestartsOnCompletion(t *testing.T) {
	h := newHarness(t)
	h.setupTreasury(0)
	user := h.wallet(sol)
	h.start(user, 7, 0, 0, stake)
	h.at(alarm(0, 0))
	h.mustSend(user, h.ix(program.NewCompleteDayInstruction(user.PublicKey())))

	slashIx := h.ix(program.NewSlashInstruction(user.PublicKey(), user.PublicKey()))
	h.at(alarm(2, -time.Second))
	require.ErrorIs(t, h.sendErr(user, slashIx), program.ErrNotSlashableYet)
	h.at(alarm(2, 0))
	h.mustSend(user, slashIx)
	tr, _ := h.treasury()
	assert.Equal(t, uint64(stake), tr.TotalFunded)
}

func TestSlashUnknownChallenge(t *testing.T) {
	h := newHarness(t)
	h.setupTreasury(0)
	keeper := h.wallet(sol)
	err := h.sendErr(keeper, h.ix(program.NewSlashInstruction(keeper.PublicKey(), solana.NewWallet().PublicKey())))
	require.ErrorIs(t, err, program.ErrNotActive)
}

func TestStartChallengeEvent(t *testing.T) {
	h := newHarness(t)
	user := h.wallet(sol)
	logs := h.mustSend(user, h.ix(program.NewStartChallengeInstruction(user.PublicKey(), program.StartChallengeArgs{
		AlarmHour:      6,
		AlarmMinute:    45,
		TimezoneOffset: -300,
		StakeAmount:    stake,
	})))
	assert.Contains(t, logs, "Program log: Instruction: StartChallenge")
	events := eventsIn(t, logs, program.EventChallengeStarted)
	require.Len(t, events, 1)
	started := events[0].(*program.ChallengeStarted)
	assert.Equal(t, user.PublicKey(), started.Authority)
	assert.Equal(t, int16(-300), started.TimezoneOffset)
	assert.Equal(t, uint8(45), started.AlarmMinute)
	assert.Equal(t, uint64(stake), started.StakeAmount)
	assert.Equal(t, genesis.Unix(), started.Timestamp)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, program.KindInternal, program.KindOf(ledger.ErrInsufficientFunds))
	assert.Equal(t, program.KindInternal, program.KindOf(nil))
	assert.Equal(t, program.KindValidation, program.KindOf(program.ErrInvalidStake))
	assert.Equal(t, program.KindResource, program.KindOf(program.ErrPoolDepleted.WithCause(program.ErrInsufficientPool)))
	for i, e := range program.Errors {
		assert.Equal(t, uint32(6000+i), e.Code)
	}
}
