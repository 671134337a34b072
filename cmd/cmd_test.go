package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holpsBot/proof-of-wake/config"
	"github.com/holpsBot/proof-of-wake/ledger"
	"github.com/holpsBot/proof-of-wake/program"
	"github.com/holpsBot/proof-of-wake/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.WalletPath = filepath.Join(cfg.DataDir, "wallet.json")
	cfg.Faucet = true
	return cfg
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"treasury", "init"},
		{"treasury", "fund"},
		{"treasury", "show"},
		{"challenge", "start"},
		{"challenge", "complete"},
		{"challenge", "slash"},
		{"challenge", "show"},
		{"challenge", "list"},
		{"wallet", "create"},
		{"wallet", "import"},
		{"wallet", "address"},
		{"wallet", "balance"},
		{"wallet", "airdrop"},
		{"wallet", "send"},
		{"wallet", "list"},
		{"history"},
	} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestLocalSession(t *testing.T) {
	cfg := testConfig(t)
	ctx := config.WithContext(context.Background(), cfg)

	sess, err := openSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess.runtime)

	client, err := sess.client()
	require.NoError(t, err)
	assert.FileExists(t, cfg.WalletPath)

	_, err = client.RequestAirdrop(ctx, 2_000_000_000)
	require.NoError(t, err)
	_, err = client.InitializeTreasury(ctx)
	require.NoError(t, err)
	_, err = client.FundTreasury(ctx, 500_000_000)
	require.NoError(t, err)

	// The same wallet file signs again on the reopened ledger
	require.NoError(t, sess.Close())
	sess, err = openSession(ctx)
	require.NoError(t, err)
	defer sess.Close()
	client, err = sess.client()
	require.NoError(t, err)
	treasury, err := client.FetchTreasury(ctx)
	require.NoError(t, err)
	require.NotNil(t, treasury)
	assert.Equal(t, client.PublicKey(), treasury.Authority)
	assert.Equal(t, uint64(500_000_000), treasury.TotalFunded)

	_, err = client.InitializeTreasury(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, program.ErrAlreadyInitialized)
	assert.Contains(t, describeProgramError(err), "AlreadyInitialized")
}

func TestLocalSessionFaucetOffByDefault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Faucet = config.DefaultConfig().Faucet
	ctx := config.WithContext(context.Background(), cfg)

	sess, err := openSession(ctx)
	require.NoError(t, err)
	defer sess.Close()
	client, err := sess.client()
	require.NoError(t, err)
	_, err = client.RequestAirdrop(ctx, 1_000_000_000)
	assert.ErrorIs(t, err, ledger.ErrFaucetDisabled)
}

func TestSessionProfileSigner(t *testing.T) {
	cfg := testConfig(t)
	cfg.Wallet = "alice"
	ctx := config.WithContext(context.Background(), cfg)

	sess, err := openSession(ctx)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.signer()
	assert.ErrorIs(t, err, storage.ErrWalletNotFound)

	db, err := storage.Connect(cfg.DataDir, nil)
	require.NoError(t, err)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	require.NoError(t, db.SaveWallet("alice", key))
	require.NoError(t, db.Close())

	signer, err := sess.signer()
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), signer.PublicKey())
	assert.NoFileExists(t, cfg.WalletPath)
}
