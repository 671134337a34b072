package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const walletDbFileName = "wallets.sqlite"

var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrWalletExists   = errors.New("a wallet with this name already exists")
	ErrInvalidName    = errors.New("wallet name must not be empty")
)

// WalletStore keeps named wallet profiles in sqlite.
type WalletStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Connect opens the wallet database under dataDir. An empty dataDir gives an
// in-memory database, useful for testing.
func Connect(dataDir string, logger *slog.Logger) (*WalletStore, error) {
	if logger == nil {
		// Create logger to throw away logs
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	gormConfig := &gorm.Config{
		Logger: gormlogger.Discard,
	}
	var dsn string
	if dataDir == "" {
		dsn = "file::memory:"
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf(
			"file:%s?_pragma=journal_mode(WAL)",
			filepath.Join(dataDir, walletDbFileName),
		)
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet database handle: %w", err)
	}
	// Every connection to file::memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	for _, model := range MigrateModels {
		logger.Debug(fmt.Sprintf("creating table: %T", model), "component", "storage")
		if err := db.AutoMigrate(model); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to migrate wallet database: %w", err)
		}
	}
	return &WalletStore{db: db, logger: logger}, nil
}

// SaveWallet stores privateKey under name.
func (s *WalletStore) SaveWallet(name string, privateKey solana.PrivateKey) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	var count int64
	if result := s.db.Model(&Wallet{}).Where("name = ?", name).Count(&count); result.Error != nil {
		return fmt.Errorf("failed to look up wallet: %w", result.Error)
	}
	if count > 0 {
		return ErrWalletExists
	}
	w := &Wallet{
		Name:       name,
		PrivateKey: privateKey.String(),
	}
	if result := s.db.Create(w); result.Error != nil {
		return fmt.Errorf("failed to save wallet: %w", result.Error)
	}
	s.logger.Debug(
		fmt.Sprintf("saved wallet %q (%s)", name, privateKey.PublicKey()),
		"component", "storage",
	)
	return nil
}

// GetWallet returns the wallet stored under name.
func (s *WalletStore) GetWallet(name string) (*Wallet, error) {
	var w Wallet
	result := s.db.Where("name = ?", name).First(&w)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", result.Error)
	}
	return &w, nil
}

// GetAllWalletNames lists the stored wallet names in creation order.
func (s *WalletStore) GetAllWalletNames() ([]string, error) {
	var names []string
	result := s.db.Model(&Wallet{}).Order("id").Pluck("name", &names)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", result.Error)
	}
	return names, nil
}

// DeleteWallet removes the wallet stored under name.
func (s *WalletStore) DeleteWallet(name string) error {
	result := s.db.Where("name = ?", name).Delete(&Wallet{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *WalletStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
