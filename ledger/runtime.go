package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/bits"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/sha3"
)

// MaxBlockhashAge is how many slots a blockhash stays usable for new
// transactions.
const MaxBlockhashAge = 150

// FaucetID is the account listed as the source of airdrops.
var FaucetID = solana.PublicKeyFromBytes(keccak256([]byte("proof-of-wake faucet")))

// Runtime executes transactions against the store. Execution is serialized:
// one transaction runs at a time and either commits completely or leaves no
// account changes behind.
type Runtime struct {
	mu           sync.Mutex
	store        *Store
	clock        clockwork.Clock
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	metrics      *runtimeMetrics
	programs     map[solana.PublicKey]Program
	faucet       bool
	tip          tipState
	recent       map[solana.Hash]uint64
}

var _ Service = (*Runtime)(nil)

// NewRuntime loads the ledger tip from the store, creating the genesis state
// on first use.
func NewRuntime(store *Store, opts ...RuntimeOptionFunc) (*Runtime, error) {
	r := &Runtime{
		store:    store,
		programs: map[solana.PublicKey]Program{},
		recent:   map[solana.Hash]uint64{},
	}
	r.programs[solana.SystemProgramID] = systemProgram{}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if r.promRegistry != nil {
		r.metrics = newRuntimeMetrics(r.promRegistry)
	}
	txn := store.newTxn(true)
	defer txn.discard()
	tip, err := txn.getTip()
	if err != nil {
		return nil, err
	}
	if tip == nil {
		tip = &tipState{Blockhash: solana.HashFromBytes(keccak256([]byte("proof-of-wake genesis")))}
		if err := txn.setTip(tip); err != nil {
			return nil, err
		}
		if err := txn.commit(); err != nil {
			return nil, fmt.Errorf("failed to write genesis: %w", err)
		}
	}
	r.tip = *tip
	r.recent[tip.Blockhash] = tip.Slot
	r.metrics.setSlot(tip.Slot)
	r.logger.Debug(
		fmt.Sprintf("ledger: loaded tip at slot %d", tip.Slot),
		"component", "ledger",
	)
	return r, nil
}

// Clock returns the trusted clock transactions are stamped with.
func (r *Runtime) Clock() clockwork.Clock {
	return r.clock
}

// Slot returns the current ledger slot.
func (r *Runtime) Slot() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tip.Slot
}

func (r *Runtime) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Hash{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tip.Blockhash, nil
}

func (r *Runtime) GetAccountInfo(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := r.store.newTxn(false)
	defer txn.discard()
	acct, err := txn.getAccount(addr)
	if err != nil {
		return nil, err
	}
	if acct.IsEmpty() {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

func (r *Runtime) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	txn := r.store.newTxn(false)
	defer txn.discard()
	acct, err := txn.getAccount(addr)
	if err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}

func (r *Runtime) GetProgramAccounts(
	ctx context.Context,
	owner solana.PublicKey,
	dataPrefix []byte,
) ([]KeyedAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := r.store.newTxn(false)
	defer txn.discard()
	return txn.programAccounts(owner, dataPrefix)
}

func (r *Runtime) GetTransaction(ctx context.Context, sig solana.Signature) (*TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := r.store.newTxn(false)
	defer txn.discard()
	return txn.getRecord(sig)
}

func (r *Runtime) GetSignaturesForAddress(
	ctx context.Context,
	addr solana.PublicKey,
	limit int,
) ([]SignatureInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := r.store.newTxn(false)
	defer txn.discard()
	sigs, err := txn.signaturesFor(addr, limit)
	if err != nil {
		return nil, err
	}
	ret := make([]SignatureInfo, 0, len(sigs))
	for _, sig := range sigs {
		rec, err := txn.getRecord(sig)
		if err != nil {
			return nil, err
		}
		info := SignatureInfo{
			Signature: rec.Signature,
			Slot:      rec.Slot,
			BlockTime: rec.BlockTime,
		}
		if rec.Failed {
			errInfo := rec.Err
			info.Err = &errInfo
		}
		ret = append(ret, info)
	}
	return ret, nil
}

// SendTransaction verifies and executes tx. The returned error is a
// *TransactionError; execution failures are still recorded under the
// signature and consume it.
func (r *Runtime) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	started := time.Now()
	if tx == nil || len(tx.Signatures) == 0 {
		r.metrics.observe("rejected", started, ErrSignatureVerification)
		return solana.Signature{}, &TransactionError{InstructionIndex: -1, Err: ErrSignatureVerification}
	}
	sig := tx.Signatures[0]

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sanitize(tx); err != nil {
		r.metrics.observe("rejected", started, err)
		return sig, &TransactionError{InstructionIndex: -1, Err: err}
	}
	txn := r.store.newTxn(true)
	defer func() { txn.discard() }()
	processed, err := txn.hasSignature(sig)
	if err != nil {
		return sig, err
	}
	if processed {
		r.metrics.observe("rejected", started, ErrAlreadyProcessed)
		return sig, &TransactionError{InstructionIndex: -1, Err: ErrAlreadyProcessed}
	}

	now := r.clock.Now()
	slot := r.tip.Slot + 1
	logs, execErr := r.execute(txn, tx, slot, now.Unix())
	if execErr != nil {
		// Throw away every account write and keep only the record
		txn.discard()
		txn = r.store.newTxn(true)
	}
	msgData, err := tx.Message.MarshalBinary()
	if err != nil {
		return sig, fmt.Errorf("failed to encode message: %w", err)
	}
	rec := &TransactionRecord{
		Signature: sig,
		Slot:      slot,
		BlockTime: now.Unix(),
		Accounts:  tx.Message.AccountKeys,
		Message:   msgData,
		Logs:      logs,
	}
	if execErr != nil {
		rec.Failed = true
		rec.Err = *EncodeError(execErr)
	}
	if err := r.commitRecord(txn, rec); err != nil {
		return sig, err
	}
	if execErr != nil {
		r.logger.Debug(
			fmt.Sprintf("ledger: transaction %s failed: %s", sig, execErr),
			"component", "ledger",
		)
		r.metrics.observe("failed", started, execErr)
		return sig, execErr
	}
	r.logger.Debug(
		fmt.Sprintf("ledger: transaction %s committed in slot %d", sig, slot),
		"component", "ledger",
	)
	r.metrics.observe("success", started, nil)
	return sig, nil
}

// RequestAirdrop mints lamports into a wallet. It is only available when the
// faucet is enabled.
func (r *Runtime) RequestAirdrop(
	ctx context.Context,
	to solana.PublicKey,
	lamports uint64,
) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	if !r.faucet {
		return solana.Signature{}, ErrFaucetDisabled
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	slot := r.tip.Slot + 1
	seed := make([]byte, 0, 32+32+16)
	seed = append(seed, r.tip.Blockhash[:]...)
	seed = append(seed, to[:]...)
	seed = binary.BigEndian.AppendUint64(seed, lamports)
	seed = binary.BigEndian.AppendUint64(seed, r.tip.Seq)
	h := sha3.NewLegacyKeccak512()
	h.Write(seed)
	sig := solana.SignatureFromBytes(h.Sum(nil))

	txn := r.store.newTxn(true)
	defer txn.discard()
	acct, err := txn.getAccount(to)
	if err != nil {
		return sig, err
	}
	sum, carry := bits.Add64(acct.Lamports, lamports, 0)
	if carry != 0 {
		return sig, ErrArithmeticOverflow
	}
	acct.Lamports = sum
	if err := txn.setAccount(to, acct); err != nil {
		return sig, err
	}
	// Recorded as a transfer from the faucet so history reads it like any
	// other incoming payment
	faucetTx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(lamports, FaucetID, to).Build()},
		r.tip.Blockhash,
		solana.TransactionPayer(FaucetID),
	)
	if err != nil {
		return sig, fmt.Errorf("failed to build airdrop message: %w", err)
	}
	msgData, err := faucetTx.Message.MarshalBinary()
	if err != nil {
		return sig, fmt.Errorf("failed to encode airdrop message: %w", err)
	}
	rec := &TransactionRecord{
		Signature: sig,
		Slot:      slot,
		BlockTime: now.Unix(),
		Accounts:  []solana.PublicKey{FaucetID, to},
		Message:   msgData,
		Logs:      []string{fmt.Sprintf("Program log: airdrop %d lamports to %s", lamports, to)},
	}
	if err := r.commitRecord(txn, rec); err != nil {
		return sig, err
	}
	r.metrics.airdrop()
	return sig, nil
}

// sanitize runs the checks that reject a transaction before execution.
func (r *Runtime) sanitize(tx *solana.Transaction) error {
	msg := &tx.Message
	if len(msg.Instructions) == 0 {
		return ErrEmptyTransaction
	}
	blockSlot, ok := r.recent[msg.RecentBlockhash]
	if !ok || r.tip.Slot-blockSlot > MaxBlockhashAge {
		return ErrBlockhashNotFound
	}
	if int(msg.Header.NumRequiredSignatures) != len(tx.Signatures) ||
		len(msg.AccountKeys) < int(msg.Header.NumRequiredSignatures) {
		return ErrSignatureVerification
	}
	if err := tx.VerifySignatures(); err != nil {
		return ErrSignatureVerification
	}
	for _, inst := range msg.Instructions {
		if int(inst.ProgramIDIndex) >= len(msg.AccountKeys) {
			return ErrNotEnoughAccountKeys
		}
		for _, idx := range inst.Accounts {
			if int(idx) >= len(msg.AccountKeys) {
				return ErrNotEnoughAccountKeys
			}
		}
	}
	return nil
}

// execute runs every instruction of tx in order against a working set of
// accounts and writes the working set to txn when all of them succeed.
func (r *Runtime) execute(
	txn *storeTxn,
	tx *solana.Transaction,
	slot uint64,
	unixTimestamp int64,
) ([]string, error) {
	msg := &tx.Message
	logs := []string{}
	working := make(map[solana.PublicKey]*AccountInfo, len(msg.AccountKeys))
	for idx, key := range msg.AccountKeys {
		acct, err := txn.getAccount(key)
		if err != nil {
			return logs, err
		}
		working[key] = &AccountInfo{
			Key:        key,
			IsSigner:   isSigner(msg, idx),
			IsWritable: isWritable(msg, idx),
			Account:    acct,
		}
	}
	for i, inst := range msg.Instructions {
		programID := msg.AccountKeys[inst.ProgramIDIndex]
		logs = append(logs, fmt.Sprintf("Program %s invoke [1]", programID))
		program, ok := r.programs[programID]
		if !ok {
			logs = append(logs, fmt.Sprintf("Program %s failed: %s", programID, ErrUnsupportedProgram))
			return logs, &TransactionError{InstructionIndex: i, Err: ErrUnsupportedProgram}
		}
		ictx := &InvokeContext{
			ProgramID:     programID,
			Accounts:      make([]*AccountInfo, 0, len(inst.Accounts)),
			Data:          inst.Data,
			Slot:          slot,
			UnixTimestamp: unixTimestamp,
			logs:          &logs,
			assigned:      map[solana.PublicKey]struct{}{},
		}
		pre := make(map[solana.PublicKey]*Account, len(inst.Accounts))
		for _, idx := range inst.Accounts {
			info := working[msg.AccountKeys[idx]]
			ictx.Accounts = append(ictx.Accounts, info)
			if _, ok := pre[info.Key]; !ok {
				pre[info.Key] = info.Account.clone()
			}
		}
		err := program.Process(ictx)
		if err == nil {
			err = verifyAccountChanges(programID, pre, working, ictx.assigned)
		}
		if err != nil {
			logs = append(logs, fmt.Sprintf("Program %s failed: %s", programID, err))
			return logs, &TransactionError{InstructionIndex: i, Err: err}
		}
		logs = append(logs, fmt.Sprintf("Program %s success", programID))
	}
	for idx, key := range msg.AccountKeys {
		if !isWritable(msg, idx) {
			continue
		}
		if err := txn.setAccount(key, working[key].Account); err != nil {
			return logs, err
		}
	}
	return logs, nil
}

// commitRecord stores rec, advances the tip past it and commits txn.
func (r *Runtime) commitRecord(txn *storeTxn, rec *TransactionRecord) error {
	tip := tipState{
		Slot:      rec.Slot,
		Blockhash: nextBlockhash(r.tip.Blockhash, rec.Slot, rec.Signature),
		Seq:       r.tip.Seq + 1,
	}
	if err := txn.putRecord(rec, tip.Seq); err != nil {
		return err
	}
	if err := txn.setTip(&tip); err != nil {
		return err
	}
	if err := txn.commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.tip = tip
	r.recent[tip.Blockhash] = tip.Slot
	for hash, slot := range r.recent {
		if tip.Slot-slot > MaxBlockhashAge {
			delete(r.recent, hash)
		}
	}
	r.metrics.setSlot(tip.Slot)
	return nil
}

func nextBlockhash(prev solana.Hash, slot uint64, sig solana.Signature) solana.Hash {
	buf := make([]byte, 0, 32+8+64)
	buf = append(buf, prev[:]...)
	buf = binary.BigEndian.AppendUint64(buf, slot)
	buf = append(buf, sig[:]...)
	return solana.HashFromBytes(keccak256(buf))
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func isSigner(msg *solana.Message, idx int) bool {
	return idx < int(msg.Header.NumRequiredSignatures)
}

func isWritable(msg *solana.Message, idx int) bool {
	numSigned := int(msg.Header.NumRequiredSignatures)
	if idx < numSigned {
		return idx < numSigned-int(msg.Header.NumReadonlySignedAccounts)
	}
	return idx < len(msg.AccountKeys)-int(msg.Header.NumReadonlyUnsignedAccounts)
}

// IsProgramError reports whether err came from executing an instruction, as
// opposed to the transaction being rejected before execution.
func IsProgramError(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr) && txErr.InstructionIndex >= 0
}
