package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/gagliardetto/solana-go"

	"github.com/holpsBot/proof-of-wake/ledger"
	"github.com/holpsBot/proof-of-wake/program"
	wake_protocol "github.com/holpsBot/proof-of-wake/solana"
	"github.com/holpsBot/proof-of-wake/storage"
)

func runInteractive(ctx context.Context, sess *session, db *storage.WalletStore, signer solana.PrivateKey, name string) {
	client := wake_protocol.NewClient(sess.svc, signer, sess.logger)

	fmt.Printf("\n---\n")
	fmt.Println(titleStyle.Render(fmt.Sprintf("Operating with profile: %s", name)))
	fmt.Println(promptStyle.Render(fmt.Sprintf("Address: %s", signer.PublicKey())))
	fmt.Printf("---\n\n")

	for {
		menuOptions := []string{
			"View Progress",
			"Start Challenge",
			"Complete Day",
			"Slash a Missed Challenge",
			"Treasury",
			"Wallet Management",
			"View History",
			"Switch Profile",
		}
		menu := &survey.Select{
			Message: promptStyle.Render("Choose an action:"),
			Options: menuOptions,
			Help:    "Use the arrow keys to navigate, and press Enter to select.",
		}

		var choice string
		if err := survey.AskOne(menu, &choice); err != nil {
			fmt.Println(warningStyle.Render(err.Error()))
			return
		}

		switch choice {
		case "View Progress":
			viewProgress(ctx, sess, client)
		case "Start Challenge":
			handleStartChallenge(ctx, sess, client)
		case "Complete Day":
			handleCompleteDay(ctx, client)
		case "Slash a Missed Challenge":
			handleSlash(ctx, sess, client)
		case "Treasury":
			handleTreasury(ctx, client)
		case "Wallet Management":
			handleWalletManagement(ctx, db, client, signer, name)
		case "View History":
			viewHistory(ctx, client, signer.PublicKey())
		case "Switch Profile":
			return
		}
		fmt.Println()
	}
}

func viewProgress(ctx context.Context, sess *session, client *wake_protocol.Client) {
	progress, err := client.ChallengeProgress(ctx, client.PublicKey(), sess.now())
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ Failed to fetch challenge: %v", err)))
		return
	}
	printProgress(progress)
}

func printProgress(p *wake_protocol.Progress) {
	if p == nil {
		fmt.Println(promptStyle.Render("\nNo challenge started yet."))
		return
	}
	fmt.Println(titleStyle.Render("\n⏰ Challenge Progress"))
	status := "active"
	if !p.Active {
		status = p.Outcome
	}
	fmt.Printf("   Status:          %s\n", status)
	fmt.Printf("   Day:             %d / %d\n", p.Day, p.TotalDays)
	fmt.Printf("   Alarm:           %02d:%02d (%s)\n", p.AlarmHour, p.AlarmMinute, formatOffset(p.TimezoneOffset))
	fmt.Printf("   Stake:           %s\n", formatSol(p.StakeAmount))
	fmt.Printf("   Bonus at finish: %s\n", formatSol(p.PotentialBonus))
	if p.Active {
		fmt.Printf("   Next window:     %s\n", p.NextWindow.Local().Format("Mon Jan 2 15:04"))
		fmt.Printf("   Slashable at:    %s\n", p.SlashableAt.Local().Format("Mon Jan 2 15:04"))
	}
}

func handleStartChallenge(ctx context.Context, sess *session, client *wake_protocol.Client) {
	fmt.Println(promptStyle.Render("\n🌅 Start a Challenge"))
	fmt.Println(infoStyle.Render(fmt.Sprintf(
		"Wake within %s of your alarm for %d days in a row to get your stake back plus a bonus.",
		program.WakeTolerance, program.MaturityDays,
	)))

	alarmStr := ""
	alarmPrompt := &survey.Input{Message: "Alarm time (HH:MM):", Default: "07:00"}
	if err := survey.AskOne(alarmPrompt, &alarmStr, survey.WithValidator(survey.Required)); err != nil {
		return
	}
	hour, minute, err := parseAlarm(alarmStr)
	if err != nil {
		fmt.Println(warningStyle.Render(err.Error()))
		return
	}

	offsetStr := ""
	offsetPrompt := &survey.Input{
		Message: "Timezone offset from UTC in minutes:",
		Default: strconv.Itoa(int(localOffsetMinutes(sess.now().Local()))),
	}
	if err := survey.AskOne(offsetPrompt, &offsetStr, survey.WithValidator(survey.Required)); err != nil {
		return
	}
	offset, err := strconv.ParseInt(offsetStr, 10, 16)
	if err != nil {
		fmt.Println(warningStyle.Render("Invalid timezone offset."))
		return
	}

	stakeStr := ""
	if err := survey.AskOne(&survey.Input{Message: "Enter amount of SOL to stake:"}, &stakeStr, survey.WithValidator(survey.Required)); err != nil {
		return
	}
	stake, err := parseSol(stakeStr)
	if err != nil {
		fmt.Println(warningStyle.Render("Invalid amount entered."))
		return
	}

	confirm := false
	confirmPrompt := &survey.Confirm{
		Message: fmt.Sprintf(
			"Stake %s on waking at %02d:%02d %s for %d days?",
			formatSol(stake), hour, minute, formatOffset(int16(offset)), program.MaturityDays,
		),
		Default: false,
	}
	survey.AskOne(confirmPrompt, &confirm)
	if !confirm {
		fmt.Println(promptStyle.Render("\nChallenge cancelled."))
		return
	}

	fmt.Println(promptStyle.Render("\nSending transaction... Please wait."))
	sig, err := client.StartChallenge(ctx, hour, minute, int16(offset), stake)
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ Failed to start challenge: %v", err)))
		return
	}
	fmt.Println(successStyle.Render("\n✅ Challenge started. Good night!"))
	fmt.Printf("   Transaction Signature: %s\n", sig)
}

func handleCompleteDay(ctx context.Context, client *wake_protocol.Client) {
	fmt.Println(promptStyle.Render("\nSubmitting proof of wake... Please wait."))
	sig, err := client.CompleteDay(ctx)
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ %s", describeProgramError(err))))
		return
	}
	fmt.Println(successStyle.Render("\n✅ Good morning! Day recorded."))
	fmt.Printf("   Transaction Signature: %s\n", sig)
}

func handleSlash(ctx context.Context, sess *session, client *wake_protocol.Client) {
	fmt.Println(promptStyle.Render("\nLooking for lapsed challenges..."))
	lapsed, err := client.SlashableChallenges(ctx, sess.now())
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ Failed to list challenges: %v", err)))
		return
	}
	if len(lapsed) == 0 {
		fmt.Println(promptStyle.Render("No challenge can be slashed right now."))
		return
	}
	options := make([]string, 0, len(lapsed)+1)
	byLabel := make(map[string]solana.PublicKey, len(lapsed))
	for _, ch := range lapsed {
		label := fmt.Sprintf("%s (stake %s, day %d)", ch.Authority, formatSol(ch.StakeAmount), ch.Streak)
		options = append(options, label)
		byLabel[label] = ch.Authority
	}
	options = append(options, "Back to Main Menu")
	selection := ""
	survey.AskOne(&survey.Select{Message: "Choose a challenge to slash:", Options: options}, &selection)
	authority, ok := byLabel[selection]
	if !ok {
		return
	}
	sig, err := client.Slash(ctx, authority)
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ %s", describeProgramError(err))))
		return
	}
	fmt.Println(successStyle.Render("\n✅ Stake forfeited to the treasury."))
	fmt.Printf("   Transaction Signature: %s\n", sig)
}

func handleTreasury(ctx context.Context, client *wake_protocol.Client) {
	treasury, err := client.FetchTreasury(ctx)
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ Failed to fetch treasury: %v", err)))
		return
	}
	var options []string
	if treasury == nil {
		fmt.Println(promptStyle.Render("\nThe treasury has not been initialized."))
		options = []string{"Initialize Treasury", "Back to Main Menu"}
	} else {
		printTreasury(treasury)
		options = []string{"Fund Treasury", "Back to Main Menu"}
	}

	choice := ""
	survey.AskOne(&survey.Select{Message: "Treasury:", Options: options}, &choice)
	switch choice {
	case "Initialize Treasury":
		sig, err := client.InitializeTreasury(ctx)
		if err != nil {
			fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ %s", describeProgramError(err))))
			return
		}
		fmt.Println(successStyle.Render("\n✅ Treasury initialized."))
		fmt.Printf("   Transaction Signature: %s\n", sig)
	case "Fund Treasury":
		amountStr := ""
		survey.AskOne(&survey.Input{Message: "Enter amount of SOL to deposit:"}, &amountStr, survey.WithValidator(survey.Required))
		amount, err := parseSol(amountStr)
		if err != nil {
			fmt.Println(warningStyle.Render("Invalid amount entered."))
			return
		}
		sig, err := client.FundTreasury(ctx, amount)
		if err != nil {
			fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ %s", describeProgramError(err))))
			return
		}
		fmt.Println(successStyle.Render("\n✅ Treasury funded."))
		fmt.Printf("   Transaction Signature: %s\n", sig)
	}
}

func printTreasury(t *wake_protocol.TreasuryState) {
	fmt.Println(titleStyle.Render("\n🏦 Treasury"))
	fmt.Printf("   Address:      %s\n", t.Address)
	fmt.Printf("   Authority:    %s\n", t.Authority)
	fmt.Printf("   Pool balance: %s\n", formatSol(t.Balance))
	fmt.Printf("   Total funded: %s\n", formatSol(t.TotalFunded))
}

func handleWalletManagement(
	ctx context.Context,
	db *storage.WalletStore,
	client *wake_protocol.Client,
	signer solana.PrivateKey,
	name string,
) {
	walletMenu := &survey.Select{
		Message: "Wallet Management:",
		Options: []string{
			"View Address",
			"View Balance",
			"Request Airdrop",
			"Send SOL",
			"Export Wallet (UNSAFE)",
			"Delete Profile",
			"Back to Main Menu",
		},
	}
	choice := ""
	survey.AskOne(walletMenu, &choice)
	switch choice {
	case "View Address":
		fmt.Println(titleStyle.Render("\n🔑 Your Current Wallet Address:"))
		fmt.Println(signer.PublicKey().String())
	case "View Balance":
		viewBalance(ctx, client)
	case "Request Airdrop":
		requestAirdrop(ctx, client)
	case "Send SOL":
		sendSol(ctx, client)
	case "Export Wallet (UNSAFE)":
		exportWallet(signer)
	case "Delete Profile":
		deleteProfile(db, name)
	}
}

func viewBalance(ctx context.Context, client *wake_protocol.Client) {
	fmt.Println(promptStyle.Render("\nChecking balance... Please wait."))
	balance, err := client.GetBalance(ctx, client.PublicKey())
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ Failed to get balance: %v", err)))
		return
	}
	fmt.Println(titleStyle.Render("\n💰 Your Wallet Balance:"))
	fmt.Printf("   %s\n", formatSol(balance))
}

func requestAirdrop(ctx context.Context, client *wake_protocol.Client) {
	amountStr := ""
	survey.AskOne(&survey.Input{Message: "Enter amount of SOL to request:", Default: "1"}, &amountStr, survey.WithValidator(survey.Required))
	amount, err := parseSol(amountStr)
	if err != nil {
		fmt.Println(warningStyle.Render("Invalid amount entered."))
		return
	}
	sig, err := client.RequestAirdrop(ctx, amount)
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ Airdrop failed: %v", err)))
		return
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("\n✅ Received %s", formatSol(amount))))
	fmt.Printf("   Transaction Signature: %s\n", sig)
}

func sendSol(ctx context.Context, client *wake_protocol.Client) {
	fmt.Println(promptStyle.Render("\n💸 Send SOL"))
	recipientStr := ""
	survey.AskOne(&survey.Input{Message: "Enter recipient address:"}, &recipientStr, survey.WithValidator(survey.Required))
	recipient, err := solana.PublicKeyFromBase58(recipientStr)
	if err != nil {
		fmt.Println(warningStyle.Render("Invalid recipient address."))
		return
	}
	amountStr := ""
	survey.AskOne(&survey.Input{Message: "Enter amount of SOL to send:"}, &amountStr, survey.WithValidator(survey.Required))
	amount, err := parseSol(amountStr)
	if err != nil {
		fmt.Println(warningStyle.Render("Invalid amount entered."))
		return
	}
	confirm := false
	confirmPrompt := &survey.Confirm{
		Message: fmt.Sprintf("You are about to send %s to %s. Continue?", formatSol(amount), recipient),
		Default: false,
	}
	survey.AskOne(confirmPrompt, &confirm)
	if !confirm {
		fmt.Println(promptStyle.Render("\nSend cancelled."))
		return
	}
	fmt.Println(promptStyle.Render("\nSending transaction... Please wait."))
	sig, err := client.SendSol(ctx, recipient, amount)
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ Failed to send SOL: %v", err)))
		return
	}
	fmt.Println(successStyle.Render("\n✅ Transaction Sent Successfully!"))
	fmt.Printf("   Transaction Signature: %s\n", sig)
}

func exportWallet(signer solana.PrivateKey) {
	fmt.Println(warningStyle.Render("\n⚠️ WARNING: EXPORTING YOUR PRIVATE KEY ⚠️"))
	fmt.Println(promptStyle.Render("Sharing your private key can result in the permanent loss of your funds."))
	confirm := false
	survey.AskOne(&survey.Confirm{Message: "Are you absolutely sure?", Default: false}, &confirm)
	if !confirm {
		fmt.Println(promptStyle.Render("\nExport cancelled."))
		return
	}
	fmt.Println(titleStyle.Render("\n🔐 Your Private Key (Base58):"))
	fmt.Println(signer.String())
}

func deleteProfile(db *storage.WalletStore, name string) {
	fmt.Println(warningStyle.Render(fmt.Sprintf("\n⚠️ Deleting profile '%s' removes its key from this machine.", name)))
	confirm := false
	survey.AskOne(&survey.Confirm{Message: "Have you exported the key, and do you want to delete it?", Default: false}, &confirm)
	if !confirm {
		fmt.Println(promptStyle.Render("\nDelete cancelled."))
		return
	}
	if err := db.DeleteWallet(name); err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ Failed to delete profile: %v", err)))
		return
	}
	fmt.Println(successStyle.Render("\n✅ Profile deleted. Choose Switch Profile to continue."))
}

func viewHistory(ctx context.Context, client *wake_protocol.Client, address solana.PublicKey) {
	fmt.Println(promptStyle.Render("\nFetching history... Please wait."))
	history, err := client.GetHistory(ctx, address)
	if err != nil {
		fmt.Println(warningStyle.Render(fmt.Sprintf("\n❌ Failed to fetch history: %v", err)))
		return
	}
	printHistory(history)
}

func printHistory(h *wake_protocol.HistoryResult) {
	fmt.Println(titleStyle.Render("\n📜 Wake History"))
	if len(h.WakeHistory) == 0 {
		fmt.Println(promptStyle.Render("   No challenge activity."))
	}
	for _, e := range h.WakeHistory {
		line := fmt.Sprintf("   %s  %-18s", e.Timestamp.Local().Format("2006-01-02 15:04"), e.Type)
		if e.Amount > 0 {
			line += "  " + formatSol(e.Amount)
		}
		if e.Streak > 0 {
			line += fmt.Sprintf("  day %d", e.Streak)
		}
		fmt.Println(line)
	}
	fmt.Println(titleStyle.Render("\n💸 SOL Transfers"))
	if len(h.SolHistory) == 0 {
		fmt.Println(promptStyle.Render("   No transfers."))
	}
	for _, e := range h.SolHistory {
		counterparty := e.Recipient
		if e.Type != wake_protocol.EventSolTransferSent {
			counterparty = e.Sender
		}
		fmt.Printf("   %s  %-19s  %s  %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04"), e.Type, formatSol(e.Amount), counterparty)
	}
}

// describeProgramError renders a protocol error with the message the IDL
// gives for its code.
func describeProgramError(err error) string {
	var custom *ledger.CustomError
	if errors.As(err, &custom) {
		if idlErr, ok := wake_protocol.LookupError(custom.Code); ok {
			return fmt.Sprintf("%s: %s", idlErr.Name, idlErr.Msg)
		}
	}
	return err.Error()
}

func programError(err error) error {
	return errors.New(describeProgramError(err))
}
