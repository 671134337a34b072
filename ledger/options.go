package ledger

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

type StoreOptionFunc func(*Store)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) StoreOptionFunc {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) StoreOptionFunc {
	return func(s *Store) {
		s.promRegistry = registry
	}
}

// WithDataDir specifies the data directory to use for storage
func WithDataDir(dataDir string) StoreOptionFunc {
	return func(s *Store) {
		s.dataDir = dataDir
	}
}

// WithGc specifies whether value log garbage collection is enabled
func WithGc(enabled bool) StoreOptionFunc {
	return func(s *Store) {
		s.gcEnabled = enabled
	}
}

type RuntimeOptionFunc func(*Runtime)

// WithClock sets the trusted clock the runtime stamps transactions with
func WithClock(clock clockwork.Clock) RuntimeOptionFunc {
	return func(r *Runtime) {
		r.clock = clock
	}
}

// WithRuntimeLogger specifies the logger for the runtime
func WithRuntimeLogger(logger *slog.Logger) RuntimeOptionFunc {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithRuntimeRegistry specifies the prometheus registry for runtime metrics
func WithRuntimeRegistry(registry prometheus.Registerer) RuntimeOptionFunc {
	return func(r *Runtime) {
		r.promRegistry = registry
	}
}

// WithProgram registers an on-ledger program
func WithProgram(p Program) RuntimeOptionFunc {
	return func(r *Runtime) {
		r.programs[p.ProgramID()] = p
	}
}

// WithFaucet enables RequestAirdrop
func WithFaucet(enabled bool) RuntimeOptionFunc {
	return func(r *Runtime) {
		r.faucet = enabled
	}
}
