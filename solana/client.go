package wake_protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/holpsBot/proof-of-wake/ledger"
	"github.com/holpsBot/proof-of-wake/program"
)

// LamportsPerSol is the number of lamports in one SOL.
const LamportsPerSol = solana.LAMPORTS_PER_SOL

// ErrNoSigner is returned when a read-only client is asked to submit.
var ErrNoSigner = errors.New("client has no signer")

// Client is a client for the Proof of Wake protocol.
type Client struct {
	Ledger ledger.Service
	Signer solana.PrivateKey
	logger *slog.Logger
}

// NewClient creates a new Client that signs with signer.
func NewClient(svc ledger.Service, signer solana.PrivateKey, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		Ledger: svc,
		Signer: signer,
		logger: logger,
	}
}

// NewReadOnlyClient creates a client for read-only operations that don't
// require a signer.
func NewReadOnlyClient(svc ledger.Service, logger *slog.Logger) *Client {
	return NewClient(svc, nil, logger)
}

// PublicKey returns the address of the signer.
func (c *Client) PublicKey() solana.PublicKey {
	if len(c.Signer) == 0 {
		return solana.PublicKey{}
	}
	return c.Signer.PublicKey()
}

// GetTreasuryPDA returns the Program Derived Address for the treasury account.
func (c *Client) GetTreasuryPDA() (solana.PublicKey, uint8, error) {
	return program.TreasuryPDA()
}

// GetChallengePDA returns the Program Derived Address for the challenge of
// authority.
func (c *Client) GetChallengePDA(authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return program.ChallengePDA(authority)
}

// send signs instructions into one transaction with a fresh blockhash and
// submits it.
func (c *Client) send(ctx context.Context, instructions ...solana.Instruction) (solana.Signature, error) {
	if len(c.Signer) == 0 {
		return solana.Signature{}, ErrNoSigner
	}
	latestBlockhash, err := c.Ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(
		instructions,
		latestBlockhash,
		solana.TransactionPayer(c.Signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}
	_, err = tx.Sign(
		func(key solana.PublicKey) *solana.PrivateKey {
			if c.Signer.PublicKey().Equals(key) {
				return &c.Signer
			}
			return nil
		},
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	sig, err := c.Ledger.SendTransaction(ctx, tx)
	if err != nil {
		c.logger.Debug(
			fmt.Sprintf("transaction %s failed: %s", sig, err),
			"component", "client",
		)
		return sig, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// InitializeTreasury creates the global treasury with the signer as its
// authority.
func (c *Client) InitializeTreasury(ctx context.Context) (solana.Signature, error) {
	ix, err := program.NewInitializeTreasuryInstruction(c.PublicKey())
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create InitializeTreasury instruction: %w", err)
	}
	return c.send(ctx, ix)
}

// FundTreasury deposits amount lamports into the treasury.
func (c *Client) FundTreasury(ctx context.Context, amount uint64) (solana.Signature, error) {
	ix, err := program.NewFundTreasuryInstruction(c.PublicKey(), amount)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create FundTreasury instruction: %w", err)
	}
	return c.send(ctx, ix)
}

// StartChallenge escrows stakeAmount and starts the signer's challenge.
func (c *Client) StartChallenge(
	ctx context.Context,
	alarmHour uint8,
	alarmMinute uint8,
	timezoneOffset int16,
	stakeAmount uint64,
) (solana.Signature, error) {
	ix, err := program.NewStartChallengeInstruction(c.PublicKey(), program.StartChallengeArgs{
		AlarmHour:      alarmHour,
		AlarmMinute:    alarmMinute,
		TimezoneOffset: timezoneOffset,
		StakeAmount:    stakeAmount,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create StartChallenge instruction: %w", err)
	}
	return c.send(ctx, ix)
}

// CompleteDay submits the signer's proof of wake.
func (c *Client) CompleteDay(ctx context.Context) (solana.Signature, error) {
	ix, err := program.NewCompleteDayInstruction(c.PublicKey())
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create CompleteDay instruction: %w", err)
	}
	return c.send(ctx, ix)
}

// Slash forfeits the stake of the lapsed challenge owned by authority.
func (c *Client) Slash(ctx context.Context, authority solana.PublicKey) (solana.Signature, error) {
	ix, err := program.NewSlashInstruction(c.PublicKey(), authority)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create Slash instruction: %w", err)
	}
	return c.send(ctx, ix)
}

// SendSol transfers lamports from the signer to recipient.
func (c *Client) SendSol(ctx context.Context, recipient solana.PublicKey, lamports uint64) (solana.Signature, error) {
	ix := system.NewTransferInstruction(lamports, c.PublicKey(), recipient).Build()
	return c.send(ctx, ix)
}

// RequestAirdrop asks the ledger faucet for lamports.
func (c *Client) RequestAirdrop(ctx context.Context, lamports uint64) (solana.Signature, error) {
	sig, err := c.Ledger.RequestAirdrop(ctx, c.PublicKey(), lamports)
	if err != nil {
		return sig, fmt.Errorf("failed to request airdrop: %w", err)
	}
	return sig, nil
}

// GetBalance returns the lamport balance of publicKey.
func (c *Client) GetBalance(ctx context.Context, publicKey solana.PublicKey) (uint64, error) {
	balance, err := c.Ledger.GetBalance(ctx, publicKey)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// TreasuryState is the treasury record together with its pool balance.
type TreasuryState struct {
	Address solana.PublicKey `json:"address"`
	program.Treasury
	Balance uint64 `json:"balance"`
}

// FetchTreasury fetches the treasury. It returns nil, nil when the treasury
// has not been initialized.
func (c *Client) FetchTreasury(ctx context.Context) (*TreasuryState, error) {
	addr, _, err := c.GetTreasuryPDA()
	if err != nil {
		return nil, fmt.Errorf("failed to get treasury PDA: %w", err)
	}
	acct, err := c.Ledger.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get treasury account info: %w", err)
	}
	if !acct.Owner.Equals(program.ProgramID) {
		return nil, nil
	}
	t, err := program.DecodeTreasury(acct.Data)
	if err != nil {
		return nil, err
	}
	return &TreasuryState{Address: addr, Treasury: *t, Balance: acct.Lamports}, nil
}

// FetchChallenge fetches the challenge of authority. It returns nil, nil when
// no challenge was ever started.
func (c *Client) FetchChallenge(ctx context.Context, authority solana.PublicKey) (*program.Challenge, error) {
	addr, _, err := c.GetChallengePDA(authority)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge PDA: %w", err)
	}
	acct, err := c.Ledger.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get challenge account info: %w", err)
	}
	if !acct.Owner.Equals(program.ProgramID) {
		// Lamports sent to an unused challenge address
		return nil, nil
	}
	return program.DecodeChallenge(acct.Data)
}

// Progress is what the app shows for a challenge.
type Progress struct {
	Authority      solana.PublicKey `json:"authority"`
	Active         bool             `json:"active"`
	Outcome        string           `json:"outcome"`
	Day            uint16           `json:"day"`
	TotalDays      uint16           `json:"totalDays"`
	StakeAmount    uint64           `json:"stakeAmount"`
	PotentialBonus uint64           `json:"potentialBonus"`
	AlarmHour      uint8            `json:"alarmHour"`
	AlarmMinute    uint8            `json:"alarmMinute"`
	TimezoneOffset int16            `json:"timezoneOffset"`
	NextWindow     time.Time        `json:"nextWindow"`
	SlashableAt    time.Time        `json:"slashableAt"`
}

// NewProgress derives the progress view of a challenge as of now.
func NewProgress(ch *program.Challenge, now time.Time) *Progress {
	p := &Progress{
		Authority:      ch.Authority,
		Active:         ch.IsActive,
		Outcome:        ch.Outcome.String(),
		Day:            ch.Streak,
		TotalDays:      program.MaturityDays,
		StakeAmount:    ch.StakeAmount,
		PotentialBonus: program.Bonus(ch.StakeAmount),
		AlarmHour:      ch.AlarmHour,
		AlarmMinute:    ch.AlarmMinute,
		TimezoneOffset: ch.TimezoneOffset,
	}
	if ch.IsActive {
		next := program.NextWindow(now, ch.AlarmHour, ch.AlarmMinute, ch.TimezoneOffset, program.WakeTolerance)
		// The open window is spent once its occurrence has been completed
		alarm := program.LocalTime(next.Add(program.WakeTolerance).Unix(), ch.TimezoneOffset)
		if program.WakeDay(alarm, ch.AlarmHour, ch.AlarmMinute) <= ch.LastWakeDay {
			next = next.Add(24 * time.Hour)
		}
		p.NextWindow = next
		p.SlashableAt = time.Unix(ch.LastActionTimestamp, 0).UTC().Add(program.GracePeriod)
	}
	return p
}

// ChallengeProgress fetches the challenge of authority and derives its
// progress. It returns nil, nil when there is no challenge.
func (c *Client) ChallengeProgress(ctx context.Context, authority solana.PublicKey, now time.Time) (*Progress, error) {
	ch, err := c.FetchChallenge(ctx, authority)
	if err != nil || ch == nil {
		return nil, err
	}
	return NewProgress(ch, now), nil
}
