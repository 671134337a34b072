package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	figure "github.com/common-nighthawk/go-figure"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/holpsBot/proof-of-wake/config"
	"github.com/holpsBot/proof-of-wake/storage"
)

var (
	configFile  string
	profileName string
	debug       bool
)

var errUserExited = errors.New("user exited")

var rootCmd = &cobra.Command{
	Use:   "pow",
	Short: "Proof of Wake: stake SOL on getting up when your alarm rings.",
	Long: `An interactive command-line interface to stake on a daily alarm and check in
each morning to earn the stake back with a bonus.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file (default ~/.pow/pow.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "wallet profile to sign with instead of the keypair file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
	}
	if cmd.Flags().Changed("profile") {
		cfg.Wallet = profileName
	}
	cmd.SetContext(config.WithContext(cmd.Context(), cfg))
	return nil
}

// run is the main entry point for the interactive CLI.
func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	db, err := storage.Connect(sess.cfg.DataDir, sess.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to wallet storage: %w", err)
	}
	defer db.Close()

	myFigure := figure.NewFigure("PROOF OF WAKE", "larry3d", true)
	fmt.Println(titleStyle.Render(myFigure.String()))

	for {
		signer, name, err := runProfileSelection(db)
		if err != nil {
			if errors.Is(err, errUserExited) || errors.Is(err, terminal.InterruptErr) {
				fmt.Println("Exiting Proof of Wake.")
				return nil
			}
			return err
		}
		runInteractive(ctx, sess, db, signer, name)
	}
}

// runProfileSelection handles the UI for choosing or creating a wallet profile.
func runProfileSelection(db *storage.WalletStore) (solana.PrivateKey, string, error) {
	profiles, err := db.GetAllWalletNames()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get wallet profiles: %w", err)
	}
	if len(profiles) == 0 {
		if err := runInit(db); err != nil {
			return nil, "", err
		}
	}

	for {
		profiles, err := db.GetAllWalletNames()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get wallet profiles: %w", err)
		}

		options := append(profiles, "Create New Profile", "Import Profile", "Exit")

		selection := ""
		prompt := &survey.Select{
			Message: promptStyle.Render("Choose a profile to continue:"),
			Options: options,
		}
		if err := survey.AskOne(prompt, &selection); err != nil {
			return nil, "", err
		}

		switch selection {
		case "Create New Profile":
			handleCreateProfile(db)
			continue
		case "Import Profile":
			handleImportProfile(db)
			continue
		case "Exit":
			return nil, "", errUserExited
		default:
			w, err := db.GetWallet(selection)
			if err != nil {
				return nil, "", fmt.Errorf("failed to get wallet for profile '%s': %w", selection, err)
			}
			signer, err := w.Key()
			if err != nil {
				return nil, "", fmt.Errorf("profile '%s' holds an invalid key: %w", selection, err)
			}
			return signer, selection, nil
		}
	}
}

// runInit creates the first profile.
func runInit(db *storage.WalletStore) error {
	fmt.Println(titleStyle.Render("Welcome! Let's create your first wallet profile."))
	name := ""
	prompt := &survey.Input{Message: "Profile name:", Default: "default"}
	if err := survey.AskOne(prompt, &name, survey.WithValidator(survey.Required)); err != nil {
		return err
	}
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return fmt.Errorf("failed to generate wallet: %w", err)
	}
	if err := db.SaveWallet(name, key); err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("\n✅ Profile '%s' created.", name)))
	fmt.Printf("   Address: %s\n\n", key.PublicKey())
	return nil
}

func handleCreateProfile(db *storage.WalletStore) {
	name := ""
	prompt := &survey.Input{Message: "Name for the new profile:"}
	if err := survey.AskOne(prompt, &name, survey.WithValidator(survey.Required)); err != nil {
		return
	}
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("Failed to generate wallet: %v", err)))
		return
	}
	if err := db.SaveWallet(name, key); err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("Failed to save profile: %v", err)))
		return
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("\n✅ Profile '%s' created.", name)))
	fmt.Printf("   Address: %s\n\n", key.PublicKey())
}

func handleImportProfile(db *storage.WalletStore) {
	name := ""
	if err := survey.AskOne(&survey.Input{Message: "Name for the imported profile:"}, &name, survey.WithValidator(survey.Required)); err != nil {
		return
	}
	encoded := ""
	if err := survey.AskOne(&survey.Password{Message: "Private key (base58):"}, &encoded, survey.WithValidator(survey.Required)); err != nil {
		return
	}
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		fmt.Println(warningStyle.Render("Invalid private key."))
		return
	}
	if err := db.SaveWallet(name, key); err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("Failed to save profile: %v", err)))
		return
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("\n✅ Profile '%s' imported.", name)))
	fmt.Printf("   Address: %s\n\n", key.PublicKey())
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(warningStyle.Render(err.Error()))
		os.Exit(1)
	}
}
