package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "pow.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// Transport selects how the CLI reaches a ledger.
type Transport string

const (
	TransportLocal Transport = "local" // open the ledger in-process
	TransportHTTP  Transport = "http"  // JSON-RPC over HTTP
	TransportP2P   Transport = "p2p"   // JSON-RPC over libp2p streams
)

func (t Transport) Valid() bool {
	switch t {
	case TransportLocal, TransportHTTP, TransportP2P:
		return true
	default:
		return false
	}
}

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

const (
	configDirName  = ".pow"
	configFileName = "pow.yaml"
	envPrefix      = "POW"
)

type Config struct {
	Transport      Transport `yaml:"transport"`
	DataDir        string    `yaml:"dataDir"        split_words:"true"`
	RpcEndpoint    string    `yaml:"rpcEndpoint"    split_words:"true"`
	NodeAddress    string    `yaml:"nodeAddress"    split_words:"true"`
	WalletPath     string    `yaml:"walletPath"     split_words:"true"`
	Wallet         string    `yaml:"wallet"`
	ListenAddress  string    `yaml:"listenAddress"  split_words:"true"`
	P2PListenAddrs []string  `yaml:"p2pListenAddrs" envconfig:"P2P_LISTEN_ADDRS"`
	BootstrapPeers []string  `yaml:"bootstrapPeers" split_words:"true"`
	CorsOrigins    []string  `yaml:"corsOrigins"    split_words:"true"`
	EnableMDNS     bool      `yaml:"enableMdns"     envconfig:"ENABLE_MDNS"`
	EnableDHT      bool      `yaml:"enableDht"      envconfig:"ENABLE_DHT"`
	Faucet         bool      `yaml:"faucet"`
	LogFormat      string    `yaml:"logFormat"      split_words:"true"`
	Debug          bool      `yaml:"debug"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		Transport:      TransportLocal,
		RpcEndpoint:    "http://localhost:8899/rpc",
		ListenAddress:  "127.0.0.1:8899",
		P2PListenAddrs: []string{"/ip4/0.0.0.0/tcp/4001"},
		EnableMDNS:     true,
		LogFormat:      LogFormatText,
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		cfg.DataDir = filepath.Join(homeDir, configDirName)
	} else {
		cfg.DataDir = configDirName
	}
	return cfg
}

// LoadConfig layers the defaults, the YAML config file, a .env file in the
// working directory and the POW_* environment, later sources winning. With
// an empty configFile ~/.pow/pow.yaml is used when it exists.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, configDirName, configFileName)
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Variables already set in the environment take precedence over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have a fixed set of values.
func (c *Config) Validate() error {
	if !c.Transport.Valid() {
		return fmt.Errorf("invalid transport %q: must be one of local, http, p2p", c.Transport)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.LogFormat)
	}
	if c.Transport == TransportP2P && c.NodeAddress == "" {
		return errors.New("the p2p transport needs a node address")
	}
	return nil
}

// LedgerDir is where a local ledger keeps its data.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.DataDir, "ledger")
}
