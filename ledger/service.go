package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Service is the read and submit surface of a ledger node. The in-process
// Runtime implements it, as do the HTTP and libp2p clients; all of them
// surface the same error identities.
type Service interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetAccountInfo(ctx context.Context, addr solana.PublicKey) (*Account, error)
	GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	GetProgramAccounts(ctx context.Context, owner solana.PublicKey, dataPrefix []byte) ([]KeyedAccount, error)
	GetSignaturesForAddress(ctx context.Context, addr solana.PublicKey, limit int) ([]SignatureInfo, error)
	GetTransaction(ctx context.Context, sig solana.Signature) (*TransactionRecord, error)
	RequestAirdrop(ctx context.Context, to solana.PublicKey, lamports uint64) (solana.Signature, error)
}

// KeyedAccount is an account together with its address.
type KeyedAccount struct {
	Pubkey  solana.PublicKey `json:"pubkey"`
	Account *Account         `json:"account"`
}
