package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

var jsonOutput bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSignature reports a submitted transaction.
func printSignature(message string, sig fmt.Stringer) error {
	if jsonOutput {
		return printJSON(map[string]string{"signature": sig.String()})
	}
	fmt.Println(successStyle.Render("✅ " + message))
	fmt.Printf("   Transaction Signature: %s\n", sig)
	return nil
}
