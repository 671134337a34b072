package wake_protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
)

const (
	powConfigDirName = ".pow"
	walletFileName   = "wallet.json"
)

// Wallet holds the Solana keypair for the CLI.
type Wallet struct {
	PrivateKey solana.PrivateKey
	Path       string
}

// PublicKey returns the public key of the wallet.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.PrivateKey.PublicKey()
}

// LoadOrCreateWallet loads the keypair at path, or creates and saves a new
// one if the file doesn't exist. An empty path means DefaultWalletPath. The
// bool result reports whether the wallet was created.
func LoadOrCreateWallet(path string) (*Wallet, bool, error) {
	if path == "" {
		var err error
		path, err = DefaultWalletPath()
		if err != nil {
			return nil, false, fmt.Errorf("failed to get wallet path: %w", err)
		}
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		w, err := createNewWallet(path)
		return w, true, err
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to check for wallet file: %w", err)
	}
	w, err := LoadWallet(path)
	return w, false, err
}

// createNewWallet generates a new private key and saves it to the specified path.
func createNewWallet(path string) (*Wallet, error) {
	wallet := &Wallet{
		PrivateKey: solana.NewWallet().PrivateKey,
		Path:       path,
	}
	if err := SaveWallet(wallet, path); err != nil {
		return nil, fmt.Errorf("failed to save new wallet: %w", err)
	}
	return wallet, nil
}

// LoadWallet loads a keypair file in the Solana CLI format, a JSON array of
// the 64 secret key bytes.
func LoadWallet(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}
	var keyInts []int
	if err := json.Unmarshal(data, &keyInts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet file: %w", err)
	}
	if len(keyInts) != ed25519PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: expected %d, got %d", ed25519PrivateKeySize, len(keyInts))
	}
	privateKey := make(solana.PrivateKey, len(keyInts))
	for i, v := range keyInts {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("invalid private key byte at %d: %d", i, v)
		}
		privateKey[i] = byte(v)
	}
	return &Wallet{PrivateKey: privateKey, Path: path}, nil
}

// SaveWallet writes the wallet's private key to path.
func SaveWallet(wallet *Wallet, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create wallet directory: %w", err)
	}
	// A []byte would marshal as base64, the keypair format is a number array
	ints := make([]int, len(wallet.PrivateKey))
	for i, b := range wallet.PrivateKey {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write wallet file: %w", err)
	}
	return nil
}

// DefaultWalletPath returns the default absolute path for the wallet file.
// e.g., /home/user/.pow/wallet.json
func DefaultWalletPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, powConfigDirName, walletFileName), nil
}

const ed25519PrivateKeySize = 64
