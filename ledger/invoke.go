package ledger

import (
	"encoding/base64"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
)

// Program is an on-ledger program the runtime dispatches instructions to.
type Program interface {
	ProgramID() solana.PublicKey
	Process(ctx *InvokeContext) error
}

// InvokeContext is everything a program sees while processing one
// instruction. Account mutations are made directly on Accounts and are
// checked by the runtime once Process returns.
type InvokeContext struct {
	ProgramID     solana.PublicKey
	Accounts      []*AccountInfo
	Data          []byte
	Slot          uint64
	UnixTimestamp int64

	logs     *[]string
	assigned map[solana.PublicKey]struct{}
}

// Log appends a program log line to the transaction record.
func (c *InvokeContext) Log(format string, args ...any) {
	*c.logs = append(*c.logs, "Program log: "+fmt.Sprintf(format, args...))
}

// EmitEvent appends an encoded event to the transaction record.
func (c *InvokeContext) EmitEvent(data []byte) {
	*c.logs = append(*c.logs, "Program data: "+base64.StdEncoding.EncodeToString(data))
}

// Transfer moves lamports between two writable accounts. The source must be
// owned by the invoked program, or be a system account that signed.
func (c *InvokeContext) Transfer(from, to *AccountInfo, lamports uint64) error {
	if !from.IsWritable || !to.IsWritable {
		return ErrReadonlyLamportChange
	}
	switch {
	case from.Owner.Equals(c.ProgramID):
	case from.Owner.Equals(solana.SystemProgramID) && from.IsSigner:
	default:
		return ErrExternalAccountLamports
	}
	if from.Lamports < lamports {
		return ErrInsufficientFunds
	}
	if from.Key.Equals(to.Key) {
		return nil
	}
	sum, carry := bits.Add64(to.Lamports, lamports, 0)
	if carry != 0 {
		return ErrArithmeticOverflow
	}
	from.Lamports -= lamports
	to.Lamports = sum
	return nil
}

// Allocate assigns an unused system account at a program derived address to
// the invoked program and gives it space bytes of zeroed data. seeds must
// include the bump seed.
func (c *InvokeContext) Allocate(acct *AccountInfo, seeds [][]byte, space int) error {
	if !acct.IsWritable {
		return ErrReadonlyDataModified
	}
	addr, err := solana.CreateProgramAddress(seeds, c.ProgramID)
	if err != nil || !addr.Equals(acct.Key) {
		return ErrMissingRequiredSignature
	}
	if !acct.Owner.Equals(solana.SystemProgramID) || len(acct.Data) != 0 {
		return ErrExternalAccountData
	}
	acct.Owner = c.ProgramID
	acct.Data = make([]byte, space)
	c.assigned[acct.Key] = struct{}{}
	return nil
}

// verifyAccountChanges checks what one instruction did to its accounts
// against the snapshot taken before it ran.
func verifyAccountChanges(
	programID solana.PublicKey,
	pre map[solana.PublicKey]*Account,
	infos map[solana.PublicKey]*AccountInfo,
	assigned map[solana.PublicKey]struct{},
) error {
	var preSum, postSum uint64
	var carry uint64
	for key, before := range pre {
		after := infos[key]
		preSum, carry = bits.Add64(preSum, before.Lamports, 0)
		if carry != 0 {
			return ErrArithmeticOverflow
		}
		postSum, carry = bits.Add64(postSum, after.Lamports, 0)
		if carry != 0 {
			return ErrArithmeticOverflow
		}
		_, isAssigned := assigned[key]
		ownerChanged := !before.Owner.Equals(after.Owner)
		dataChanged := ownerChanged || string(before.Data) != string(after.Data)
		if !after.IsWritable {
			if after.Lamports != before.Lamports {
				return ErrReadonlyLamportChange
			}
			if dataChanged {
				return ErrReadonlyDataModified
			}
			continue
		}
		if ownerChanged && !isAssigned {
			return ErrExternalAccountData
		}
		if dataChanged && !after.Owner.Equals(programID) {
			return ErrExternalAccountData
		}
		if after.Lamports < before.Lamports {
			ownedByProgram := before.Owner.Equals(programID)
			systemSigner := before.Owner.Equals(solana.SystemProgramID) && after.IsSigner
			if !ownedByProgram && !systemSigner {
				return ErrExternalAccountLamports
			}
		}
	}
	if preSum != postSum {
		return ErrUnbalancedInstruction
	}
	return nil
}
