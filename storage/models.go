package storage

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Wallet is one named wallet profile. The private key is kept in base58, the
// format `solana-keygen` prints.
type Wallet struct {
	ID         uint   `gorm:"primarykey"`
	Name       string `gorm:"uniqueIndex;not null"`
	PrivateKey string `gorm:"not null"`
	CreatedAt  time.Time
}

func (Wallet) TableName() string {
	return "wallet"
}

// Key decodes the stored private key.
func (w *Wallet) Key() (solana.PrivateKey, error) {
	return solana.PrivateKeyFromBase58(w.PrivateKey)
}

// MigrateModels lists the models created at startup
var MigrateModels = []any{
	&Wallet{},
}
