package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	wake_protocol "github.com/holpsBot/proof-of-wake/solana"
)

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Work with wake-up challenges",
}

var startFlags struct {
	alarm  string
	offset int16
	stake  string
}

var challengeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Stake SOL on waking at the alarm time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		hour, minute, err := parseAlarm(startFlags.alarm)
		if err != nil {
			return err
		}
		stake, err := parseSol(startFlags.stake)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			offset := startFlags.offset
			if !cmd.Flags().Changed("tz-offset") {
				offset = localOffsetMinutes(s.now().Local())
			}
			client, err := s.client()
			if err != nil {
				return err
			}
			sig, err := client.StartChallenge(ctx, hour, minute, offset, stake)
			if err != nil {
				return programError(err)
			}
			return printSignature(
				fmt.Sprintf("Challenge started: %02d:%02d %s, %s staked.", hour, minute, formatOffset(offset), formatSol(stake)),
				sig,
			)
		})
	},
}

var challengeCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Check in for today inside your wake window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			client, err := s.client()
			if err != nil {
				return err
			}
			sig, err := client.CompleteDay(ctx)
			if err != nil {
				return programError(err)
			}
			if err := printSignature("Good morning! Day recorded.", sig); err != nil || jsonOutput {
				return err
			}
			progress, err := client.ChallengeProgress(ctx, client.PublicKey(), s.now())
			if err != nil {
				return err
			}
			printProgress(progress)
			return nil
		})
	},
}

var challengeSlashCmd = &cobra.Command{
	Use:   "slash <authority>",
	Short: "Forfeit the stake of a challenge that missed its grace period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return fmt.Errorf("invalid authority %q: %w", args[0], err)
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			client, err := s.client()
			if err != nil {
				return err
			}
			sig, err := client.Slash(ctx, authority)
			if err != nil {
				return programError(err)
			}
			return printSignature("Stake forfeited to the treasury.", sig)
		})
	},
}

var challengeShowCmd = &cobra.Command{
	Use:   "show [authority]",
	Short: "Show the progress of a challenge, yours by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			var authority solana.PublicKey
			if len(args) == 1 {
				var err error
				if authority, err = solana.PublicKeyFromBase58(args[0]); err != nil {
					return fmt.Errorf("invalid authority %q: %w", args[0], err)
				}
			} else {
				key, err := s.signer()
				if err != nil {
					return err
				}
				authority = key.PublicKey()
			}
			progress, err := s.readOnlyClient().ChallengeProgress(ctx, authority, s.now())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(progress)
			}
			printProgress(progress)
			return nil
		})
	},
}

var listSlashable bool

var challengeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every challenge on the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			client := s.readOnlyClient()
			var (
				challenges []*wake_protocol.ChallengeAccount
				err        error
			)
			if listSlashable {
				challenges, err = client.SlashableChallenges(ctx, s.now())
			} else {
				challenges, err = client.FetchAllChallenges(ctx)
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(challenges)
			}
			if len(challenges) == 0 {
				fmt.Println(promptStyle.Render("No challenges found."))
				return nil
			}
			for _, ch := range challenges {
				status := ch.Outcome.String()
				if ch.IsActive {
					status = "active"
				}
				fmt.Printf("%s  %-8s  day %2d  %s  last check-in %s\n",
					ch.Authority, status, ch.Streak, formatSol(ch.StakeAmount),
					time.Unix(ch.LastActionTimestamp, 0).Local().Format("2006-01-02 15:04"))
			}
			return nil
		})
	},
}

func init() {
	challengeStartCmd.Flags().StringVar(&startFlags.alarm, "alarm", "", "alarm time as HH:MM")
	challengeStartCmd.Flags().Int16Var(&startFlags.offset, "tz-offset", 0, "timezone offset from UTC in minutes (default: local zone)")
	challengeStartCmd.Flags().StringVar(&startFlags.stake, "stake", "", "amount of SOL to stake")
	_ = challengeStartCmd.MarkFlagRequired("alarm")
	_ = challengeStartCmd.MarkFlagRequired("stake")
	challengeListCmd.Flags().BoolVar(&listSlashable, "slashable", false, "only list challenges past their grace period")

	challengeCmd.AddCommand(challengeStartCmd, challengeCompleteCmd, challengeSlashCmd, challengeShowCmd, challengeListCmd)
	rootCmd.AddCommand(challengeCmd)
}
