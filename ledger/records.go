package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const defaultSignatureLimit = 1000

// TransactionRecord is what the ledger keeps for every executed transaction,
// successful or not.
type TransactionRecord struct {
	Signature solana.Signature   `json:"signature"`
	Slot      uint64             `json:"slot"`
	BlockTime int64              `json:"blockTime"`
	Accounts  []solana.PublicKey `json:"accounts"`
	Message   []byte             `json:"message"`
	Logs      []string           `json:"logs"`
	Failed    bool               `json:"failed"`
	Err       ErrorInfo          `json:"err"`
}

// DecodeMessage parses the wire message the transaction carried.
func (r *TransactionRecord) DecodeMessage() (*solana.Message, error) {
	var msg solana.Message
	if err := msg.UnmarshalWithDecoder(bin.NewBinDecoder(r.Message)); err != nil {
		return nil, fmt.Errorf("failed to decode message of %s: %w", r.Signature, err)
	}
	return &msg, nil
}

// Error rebuilds the failure of the transaction, or nil if it succeeded.
func (r *TransactionRecord) Error() error {
	if !r.Failed {
		return nil
	}
	return DecodeError(&r.Err)
}

// SignatureInfo is one entry of an address's transaction history.
type SignatureInfo struct {
	Signature solana.Signature `json:"signature"`
	Slot      uint64           `json:"slot"`
	BlockTime int64            `json:"blockTime"`
	Err       *ErrorInfo       `json:"err,omitempty"`
}

// tipState is the head of the ledger: last slot, its blockhash and the
// history sequence counter.
type tipState struct {
	Slot      uint64
	Blockhash solana.Hash
	Seq       uint64
}

func signatureKey(sig solana.Signature) []byte {
	return append([]byte(signatureKeyPrefix), sig[:]...)
}

func addressPrefix(addr solana.PublicKey) []byte {
	return append([]byte(addressKeyPrefix), addr[:]...)
}

func addressKey(addr solana.PublicKey, seq uint64) []byte {
	key := addressPrefix(addr)
	return binary.BigEndian.AppendUint64(key, seq)
}

func (t *storeTxn) hasSignature(sig solana.Signature) (bool, error) {
	_, err := t.tx.Get(signatureKey(sig))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to look up signature: %w", err)
}

func (t *storeTxn) getRecord(sig solana.Signature) (*TransactionRecord, error) {
	val, err := t.get(signatureKey(sig))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to read transaction: %w", err)
	}
	var rec TransactionRecord
	if err := bin.UnmarshalBorsh(&rec, val); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return &rec, nil
}

// putRecord stores the record and indexes it under every account it touched.
func (t *storeTxn) putRecord(rec *TransactionRecord, seq uint64) error {
	val, err := bin.MarshalBorsh(rec)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	if err := t.tx.Set(signatureKey(rec.Signature), val); err != nil {
		return fmt.Errorf("failed to write transaction: %w", err)
	}
	seen := make(map[solana.PublicKey]struct{}, len(rec.Accounts))
	for _, addr := range rec.Accounts {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		if err := t.tx.Set(addressKey(addr, seq), rec.Signature[:]); err != nil {
			return fmt.Errorf("failed to index transaction: %w", err)
		}
	}
	return nil
}

// signaturesFor walks the address index newest first.
func (t *storeTxn) signaturesFor(addr solana.PublicKey, limit int) ([]solana.Signature, error) {
	if limit <= 0 || limit > defaultSignatureLimit {
		limit = defaultSignatureLimit
	}
	prefix := addressPrefix(addr)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := t.tx.NewIterator(opts)
	defer it.Close()
	ret := make([]solana.Signature, 0, limit)
	seekKey := append(append([]byte{}, prefix...), 0xff)
	for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read history: %w", err)
		}
		ret = append(ret, solana.SignatureFromBytes(val))
		if len(ret) >= limit {
			break
		}
	}
	return ret, nil
}

func (t *storeTxn) getTip() (*tipState, error) {
	val, err := t.get([]byte(tipKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ledger tip: %w", err)
	}
	var tip tipState
	if err := bin.UnmarshalBorsh(&tip, val); err != nil {
		return nil, fmt.Errorf("failed to decode ledger tip: %w", err)
	}
	return &tip, nil
}

func (t *storeTxn) setTip(tip *tipState) error {
	val, err := bin.MarshalBorsh(tip)
	if err != nil {
		return fmt.Errorf("failed to encode ledger tip: %w", err)
	}
	return t.tx.Set([]byte(tipKey), val)
}
