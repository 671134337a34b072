package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// systemProgram is the native program that owns wallets. Only lamport
// transfers are supported.
type systemProgram struct{}

func (systemProgram) ProgramID() solana.PublicKey {
	return solana.SystemProgramID
}

func (systemProgram) Process(ctx *InvokeContext) error {
	metas := make([]*solana.AccountMeta, 0, len(ctx.Accounts))
	for _, acct := range ctx.Accounts {
		metas = append(metas, solana.NewAccountMeta(acct.Key, acct.IsWritable, acct.IsSigner))
	}
	inst, err := system.DecodeInstruction(metas, ctx.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInstructionData, err)
	}
	switch ix := inst.Impl.(type) {
	case *system.Transfer:
		if len(ctx.Accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		if ix.Lamports == nil {
			return ErrInvalidInstructionData
		}
		from, to := ctx.Accounts[0], ctx.Accounts[1]
		if !from.IsSigner {
			return ErrMissingRequiredSignature
		}
		if len(from.Data) != 0 {
			return ErrExternalAccountData
		}
		if err := ctx.Transfer(from, to, *ix.Lamports); err != nil {
			return err
		}
		ctx.Log("transfer %d lamports from %s to %s", *ix.Lamports, from.Key, to.Key)
		return nil
	default:
		return fmt.Errorf("%w: unsupported system instruction %T", ErrInvalidInstructionData, inst.Impl)
	}
}
