package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holpsBot/proof-of-wake/api"
	"github.com/holpsBot/proof-of-wake/config"
	"github.com/holpsBot/proof-of-wake/ledger"
	"github.com/holpsBot/proof-of-wake/logger"
	"github.com/holpsBot/proof-of-wake/node"
	"github.com/holpsBot/proof-of-wake/program"
	wake_protocol "github.com/holpsBot/proof-of-wake/solana"
	"github.com/holpsBot/proof-of-wake/storage"
)

// session is a ledger connection opened according to the config.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	svc     ledger.Service
	runtime *ledger.Runtime // set for the local transport
	closers []io.Closer
}

func openSession(ctx context.Context) (*session, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, errors.New("no config loaded")
	}
	s := &session{
		cfg:    cfg,
		logger: logger.New(os.Stderr, cfg.LogFormat, cfg.Debug),
	}
	switch cfg.Transport {
	case config.TransportLocal:
		rt, store, err := openLocalLedger(cfg, s.logger, nil)
		if err != nil {
			return nil, err
		}
		s.svc = rt
		s.runtime = rt
		s.closers = append(s.closers, store)
	case config.TransportHTTP:
		s.svc = api.NewHTTPClient(cfg.RpcEndpoint)
	case config.TransportP2P:
		conn, err := node.Dial(ctx, cfg.NodeAddress)
		if err != nil {
			return nil, err
		}
		s.svc = conn
		s.closers = append(s.closers, conn)
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
	s.logger.Debug(
		fmt.Sprintf("opened %s ledger session", cfg.Transport),
		"component", "cli",
	)
	return s, nil
}

// openLocalLedger opens the on-disk ledger with the wake program loaded.
func openLocalLedger(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*ledger.Runtime, *ledger.Store, error) {
	storeOpts := []ledger.StoreOptionFunc{
		ledger.WithDataDir(cfg.LedgerDir()),
		ledger.WithLogger(logger),
	}
	runtimeOpts := []ledger.RuntimeOptionFunc{
		ledger.WithProgram(program.New(logger)),
		ledger.WithFaucet(cfg.Faucet),
		ledger.WithRuntimeLogger(logger),
	}
	if reg != nil {
		storeOpts = append(storeOpts, ledger.WithPromRegistry(reg))
		runtimeOpts = append(runtimeOpts, ledger.WithRuntimeRegistry(reg))
	}
	store, err := ledger.NewStore(storeOpts...)
	if err != nil {
		return nil, nil, err
	}
	rt, err := ledger.NewRuntime(store, runtimeOpts...)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return rt, store, nil
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// signer resolves the signing key: the configured wallet profile, or else
// the keypair file, which is created on first use.
func (s *session) signer() (solana.PrivateKey, error) {
	if s.cfg.Wallet != "" {
		db, err := storage.Connect(s.cfg.DataDir, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to wallet storage: %w", err)
		}
		defer db.Close()
		w, err := db.GetWallet(s.cfg.Wallet)
		if err != nil {
			return nil, err
		}
		return w.Key()
	}
	w, created, err := wake_protocol.LoadOrCreateWallet(s.cfg.WalletPath)
	if err != nil {
		return nil, err
	}
	if created {
		fmt.Println(infoStyle.Render(fmt.Sprintf("Created new keypair at %s", w.Path)))
	}
	return w.PrivateKey, nil
}

// client returns a protocol client that signs with the resolved wallet.
func (s *session) client() (*wake_protocol.Client, error) {
	key, err := s.signer()
	if err != nil {
		return nil, err
	}
	return wake_protocol.NewClient(s.svc, key, s.logger), nil
}

func (s *session) readOnlyClient() *wake_protocol.Client {
	return wake_protocol.NewReadOnlyClient(s.svc, s.logger)
}

// withSession opens a session for the duration of fn.
func withSession(cmd interface{ Context() context.Context }, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// now is the time progress is computed against: the ledger clock when the
// ledger is local.
func (s *session) now() time.Time {
	if s.runtime != nil {
		return s.runtime.Clock().Now()
	}
	return time.Now()
}
