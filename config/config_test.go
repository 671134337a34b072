package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holpsBot/proof-of-wake/config"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigLayers(t *testing.T) {
	// Keep ~/.pow and any .env out of the test
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	path := writeConfig(t, `
transport: http
rpcEndpoint: http://ledger.example:8899/rpc
bootstrapPeers:
  - /ip4/10.0.0.1/tcp/4001/p2p/QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N
faucet: false
`)
	t.Setenv("POW_LOG_FORMAT", "json")
	t.Setenv("POW_DEBUG", "true")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.TransportHTTP, cfg.Transport)
	assert.Equal(t, "http://ledger.example:8899/rpc", cfg.RpcEndpoint)
	assert.Len(t, cfg.BootstrapPeers, 1)
	assert.False(t, cfg.Faucet)
	assert.Equal(t, config.LogFormatJSON, cfg.LogFormat)
	assert.True(t, cfg.Debug)
	// Untouched defaults survive
	assert.Equal(t, "127.0.0.1:8899", cfg.ListenAddress)
	assert.True(t, cfg.EnableMDNS)
}

func TestLoadConfigDotEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("POW_LISTEN_ADDRESS=:9999\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("POW_LISTEN_ADDRESS") })

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddress)
	assert.Equal(t, config.TransportLocal, cfg.Transport)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	_, err := config.LoadConfig(writeConfig(t, "transport: carrier-pigeon\n"))
	require.Error(t, err)

	_, err = config.LoadConfig(writeConfig(t, "logFormat: xml\n"))
	require.Error(t, err)

	_, err = config.LoadConfig(writeConfig(t, "transport: p2p\n"))
	require.Error(t, err)

	_, err = config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestContext(t *testing.T) {
	cfg := config.DefaultConfig()
	ctx := config.WithContext(context.Background(), cfg)
	assert.Same(t, cfg, config.FromContext(ctx))
	assert.Nil(t, config.FromContext(context.Background()))
}

func TestDefaultConfigIsLocalOnly(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.False(t, cfg.Faucet)
	assert.Equal(t, "127.0.0.1:8899", cfg.ListenAddress)
	assert.Empty(t, cfg.CorsOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnablesFaucet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())
	t.Setenv("POW_FAUCET", "true")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.Faucet)
}
