package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [address]",
	Short: "Show challenge activity and SOL transfers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			addr, err := addressArg(s, args)
			if err != nil {
				return err
			}
			history, err := s.readOnlyClient().GetHistory(ctx, addr)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(history)
			}
			printHistory(history)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
