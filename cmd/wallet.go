package cmd

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/holpsBot/proof-of-wake/config"
	"github.com/holpsBot/proof-of-wake/logger"
	"github.com/holpsBot/proof-of-wake/storage"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallet profiles and balances",
}

// withWalletStore opens the profile database for the duration of fn.
func withWalletStore(cmd *cobra.Command, fn func(db *storage.WalletStore) error) error {
	cfg := config.FromContext(cmd.Context())
	db, err := storage.Connect(cfg.DataDir, logger.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Debug))
	if err != nil {
		return fmt.Errorf("failed to connect to wallet storage: %w", err)
	}
	defer db.Close()
	return fn(db)
}

var walletCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new wallet profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return fmt.Errorf("failed to generate wallet: %w", err)
		}
		return withWalletStore(cmd, func(db *storage.WalletStore) error {
			if err := db.SaveWallet(args[0], key); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]string{"name": args[0], "address": key.PublicKey().String()})
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✅ Profile '%s' created.", args[0])))
			fmt.Printf("   Address: %s\n", key.PublicKey())
			return nil
		})
	},
}

var walletImportCmd = &cobra.Command{
	Use:   "import <name> <private-key-base58>",
	Short: "Import a private key as a wallet profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := solana.PrivateKeyFromBase58(args[1])
		if err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}
		return withWalletStore(cmd, func(db *storage.WalletStore) error {
			if err := db.SaveWallet(args[0], key); err != nil {
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✅ Profile '%s' imported.", args[0])))
			fmt.Printf("   Address: %s\n", key.PublicKey())
			return nil
		})
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wallet profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withWalletStore(cmd, func(db *storage.WalletStore) error {
			names, err := db.GetAllWalletNames()
			if err != nil {
				return err
			}
			type profile struct {
				Name    string           `json:"name"`
				Address solana.PublicKey `json:"address"`
			}
			profiles := make([]profile, 0, len(names))
			for _, name := range names {
				w, err := db.GetWallet(name)
				if err != nil {
					return err
				}
				key, err := w.Key()
				if err != nil {
					return fmt.Errorf("profile '%s' holds an invalid key: %w", name, err)
				}
				profiles = append(profiles, profile{Name: name, Address: key.PublicKey()})
			}
			if jsonOutput {
				return printJSON(profiles)
			}
			if len(profiles) == 0 {
				fmt.Println(promptStyle.Render("No profiles yet. Create one with `pow wallet create <name>`."))
				return nil
			}
			for _, p := range profiles {
				fmt.Printf("%-16s %s\n", p.Name, p.Address)
			}
			return nil
		})
	},
}

var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address of the active wallet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(_ context.Context, s *session) error {
			key, err := s.signer()
			if err != nil {
				return err
			}
			fmt.Println(key.PublicKey())
			return nil
		})
	},
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show the SOL balance of the active wallet or an address",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			addr, err := addressArg(s, args)
			if err != nil {
				return err
			}
			balance, err := s.readOnlyClient().GetBalance(ctx, addr)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]any{"address": addr, "lamports": balance})
			}
			fmt.Println(formatSol(balance))
			return nil
		})
	},
}

var walletAirdropCmd = &cobra.Command{
	Use:   "airdrop <amount-sol>",
	Short: "Request SOL from the development faucet",
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
			sig, err := client.RequestAirdrop(ctx, amount)
			if err != nil {
				return err
			}
			return printSignature(fmt.Sprintf("Received %s.", formatSol(amount)), sig)
		})
	},
}

var walletSendCmd = &cobra.Command{
	Use:   "send <recipient> <amount-sol>",
	Short: "Send SOL to another address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		recipient, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", args[0], err)
		}
		amount, err := parseSol(args[1])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session) error {
			client, err := s.client()
			if err != nil {
				return err
			}
			sig, err := client.SendSol(ctx, recipient, amount)
			if err != nil {
				return err
			}
			return printSignature(fmt.Sprintf("Sent %s to %s.", formatSol(amount), recipient), sig)
		})
	},
}

// addressArg is the address given on the command line, or the active
// wallet's.
func addressArg(s *session, args []string) (solana.PublicKey, error) {
	if len(args) > 0 {
		addr, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", args[0], err)
		}
		return addr, nil
	}
	key, err := s.signer()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}

func init() {
	walletCmd.AddCommand(
		walletCreateCmd,
		walletImportCmd,
		walletListCmd,
		walletAddressCmd,
		walletBalanceCmd,
		walletAirdropCmd,
		walletSendCmd,
	)
	rootCmd.AddCommand(walletCmd)
}
