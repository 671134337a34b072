package wake_protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/holpsBot/proof-of-wake/program"
)

// ChallengeAccount is a challenge record and its address.
type ChallengeAccount struct {
	Address solana.PublicKey `json:"address"`
	*program.Challenge
	Balance uint64 `json:"balance"`
}

// FetchAllChallenges fetches every challenge account of the program.
func (c *Client) FetchAllChallenges(ctx context.Context) ([]*ChallengeAccount, error) {
	disc := program.AccountDiscriminator("Challenge")
	resp, err := c.Ledger.GetProgramAccounts(ctx, program.ProgramID, disc[:])
	if err != nil {
		return nil, fmt.Errorf("failed to get program accounts: %w", err)
	}
	var challenges []*ChallengeAccount
	for _, account := range resp {
		ch, err := program.DecodeChallenge(account.Account.Data)
		if err != nil {
			// Log the error but continue with other accounts
			c.logger.Warn(
				fmt.Sprintf("failed to deserialize challenge account %s: %s", account.Pubkey, err),
				"component", "client",
			)
			continue
		}
		challenges = append(challenges, &ChallengeAccount{
			Address:   account.Pubkey,
			Challenge: ch,
			Balance:   account.Account.Lamports,
		})
	}
	return challenges, nil
}

// SlashableChallenges returns the active challenges whose grace period has
// run out as of now.
func (c *Client) SlashableChallenges(ctx context.Context, now time.Time) ([]*ChallengeAccount, error) {
	all, err := c.FetchAllChallenges(ctx)
	if err != nil {
		return nil, err
	}
	var ret []*ChallengeAccount
	for _, ch := range all {
		if !ch.IsActive {
			continue
		}
		if now.Unix()-ch.LastActionTimestamp >= int64(program.GracePeriod.Seconds()) {
			ret = append(ret, ch)
		}
	}
	return ret, nil
}
