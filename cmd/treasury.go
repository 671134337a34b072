package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var treasuryCmd = &cobra.Command{
	Use:   "treasury",
	Short: "Manage the bonus treasury",
}

var treasuryInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the treasury with your wallet as its authority",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			client, err := s.client()
			if err != nil {
				return err
			}
			sig, err := client.InitializeTreasury(ctx)
			if err != nil {
				return programError(err)
			}
			return printSignature("Treasury initialized.", sig)
		})
	},
}

var treasuryFundCmd = &cobra.Command{
	Use:   "fund <amount-sol>",
	Short: "Deposit SOL into the treasury pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseSol(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			client, err := s.client()
			if err != nil {
				return err
			}
			sig, err := client.FundTreasury(ctx, amount)
			if err != nil {
				return programError(err)
			}
			return printSignature(fmt.Sprintf("Deposited %s.", formatSol(amount)), sig)
		})
	},
}

var treasuryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the treasury and its pool balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			treasury, err := s.readOnlyClient().FetchTreasury(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(treasury)
			}
			if treasury == nil {
				fmt.Println(promptStyle.Render("The treasury has not been initialized."))
				return nil
			}
			printTreasury(treasury)
			return nil
		})
	},
}

func init() {
	treasuryCmd.AddCommand(treasuryInitCmd, treasuryFundCmd, treasuryShowCmd)
	rootCmd.AddCommand(treasuryCmd)
}
