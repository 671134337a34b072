package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	accountKeyPrefix   = "acct:"
	signatureKeyPrefix = "sig:"
	addressKeyPrefix   = "addr:"
	tipKey             = "tip"
)

// Store keeps ledger state in badger. With no data dir the store is in-memory
// and nothing survives Close.
type Store struct {
	promRegistry prometheus.Registerer
	db           *badger.DB
	logger       *slog.Logger
	gcTicker     *time.Ticker
	gcStopCh     chan struct{}
	gcWg         sync.WaitGroup
	dataDir      string
	gcEnabled    bool
}

// NewStore opens the ledger store
func NewStore(opts ...StoreOptionFunc) (*Store, error) {
	s := &Store{
		gcEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var badgerOpts badger.Options
	if s.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true)
		// Nothing to collect in memory
		s.gcEnabled = false
	} else {
		if _, err := os.Stat(s.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(s.dataDir).
			WithCompression(options.Snappy)
	}
	badgerOpts = badgerOpts.
		WithLogger(newBadgerLogger(s.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %w", err)
	}
	s.db = db
	if s.promRegistry != nil {
		s.registerMetrics()
	}
	if s.gcEnabled {
		s.gcTicker = time.NewTicker(5 * time.Minute)
		s.gcStopCh = make(chan struct{})
		s.gcWg.Add(1)
		go s.valueLogGc(s.gcTicker, s.gcStopCh)
	}
	return s, nil
}

func (s *Store) valueLogGc(t *time.Ticker, stop <-chan struct{}) {
	defer s.gcWg.Done()
	for {
		select {
		case <-t.C:
			for {
				// Run it again if it just ran successfully
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Warn(
							fmt.Sprintf("ledger store: GC failure: %s", err),
							"component", "ledger",
						)
					}
					break
				}
			}
		case <-stop:
			return
		}
	}
}

func (s *Store) registerMetrics() {
	promautoFactory := promauto.With(s.promRegistry)
	promautoFactory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pow_ledger_store_lsm_bytes",
			Help: "size of the ledger store LSM tree",
		},
		func() float64 {
			lsm, _ := s.db.Size()
			return float64(lsm)
		},
	)
	promautoFactory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pow_ledger_store_vlog_bytes",
			Help: "size of the ledger store value log",
		},
		func() float64 {
			_, vlog := s.db.Size()
			return float64(vlog)
		},
	)
}

// Close stops background GC and closes badger
func (s *Store) Close() error {
	if s.gcTicker != nil {
		s.gcTicker.Stop()
		close(s.gcStopCh)
		s.gcWg.Wait()
		s.gcTicker = nil
	}
	return s.db.Close()
}

// storeTxn is one badger transaction over ledger keys.
type storeTxn struct {
	tx *badger.Txn
}

func (s *Store) newTxn(update bool) *storeTxn {
	return &storeTxn{tx: s.db.NewTransaction(update)}
}

func (t *storeTxn) commit() error {
	return t.tx.Commit()
}

func (t *storeTxn) discard() {
	t.tx.Discard()
}

func (t *storeTxn) get(key []byte) ([]byte, error) {
	item, err := t.tx.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func accountKey(addr solana.PublicKey) []byte {
	return append([]byte(accountKeyPrefix), addr[:]...)
}

// getAccount returns the stored account, or the empty system account when the
// address was never written.
func (t *storeTxn) getAccount(addr solana.PublicKey) (*Account, error) {
	val, err := t.get(accountKey(addr))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return emptyAccount(), nil
		}
		return nil, fmt.Errorf("failed to read account %s: %w", addr, err)
	}
	return decodeAccount(val)
}

func (t *storeTxn) setAccount(addr solana.PublicKey, a *Account) error {
	if a.IsEmpty() {
		if err := t.tx.Delete(accountKey(addr)); err != nil {
			return fmt.Errorf("failed to delete account %s: %w", addr, err)
		}
		return nil
	}
	val, err := encodeAccount(a)
	if err != nil {
		return err
	}
	if err := t.tx.Set(accountKey(addr), val); err != nil {
		return fmt.Errorf("failed to write account %s: %w", addr, err)
	}
	return nil
}

// programAccounts scans every account owned by owner whose data starts with
// dataPrefix.
func (t *storeTxn) programAccounts(owner solana.PublicKey, dataPrefix []byte) ([]KeyedAccount, error) {
	prefix := []byte(accountKeyPrefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.tx.NewIterator(opts)
	defer it.Close()
	var ret []KeyedAccount
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read account: %w", err)
		}
		acct, err := decodeAccount(val)
		if err != nil {
			return nil, err
		}
		if !acct.Owner.Equals(owner) || !bytes.HasPrefix(acct.Data, dataPrefix) {
			continue
		}
		key := item.KeyCopy(nil)
		ret = append(ret, KeyedAccount{
			Pubkey:  solana.PublicKeyFromBytes(key[len(prefix):]),
			Account: acct,
		})
	}
	return ret, nil
}

// badgerLogger routes badger's printf-style logging into slog
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (b *badgerLogger) Errorf(msg string, args ...any) {
	b.logger.Error(fmt.Sprintf(msg, args...), "component", "ledger")
}

func (b *badgerLogger) Warningf(msg string, args ...any) {
	b.logger.Warn(fmt.Sprintf(msg, args...), "component", "ledger")
}

func (b *badgerLogger) Infof(msg string, args ...any) {
	b.logger.Info(fmt.Sprintf(msg, args...), "component", "ledger")
}

func (b *badgerLogger) Debugf(msg string, args ...any) {
	b.logger.Debug(fmt.Sprintf(msg, args...), "component", "ledger")
}
