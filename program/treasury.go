package program

import (
	"math/bits"

	"github.com/holpsBot/proof-of-wake/ledger"
)

func initializeTreasury(ctx *ledger.InvokeContext, g *grant) error {
	if g.treasury.Owner.Equals(ProgramID) {
		return ErrAlreadyInitialized
	}
	seeds := [][]byte{[]byte(TreasurySeed), {g.bump}}
	if err := ctx.Allocate(g.treasury, seeds, TreasurySize); err != nil {
		return err
	}
	t := Treasury{
		Authority: g.caller.Key,
		Bump:      g.bump,
	}
	if err := encodeInto(g.treasury.Data, t); err != nil {
		return err
	}
	ctx.Log("treasury initialized, authority %s", t.Authority)
	return emit(ctx, EventTreasuryInitialized, TreasuryInitialized{
		Treasury:  g.treasury.Key,
		Authority: t.Authority,
		Timestamp: ctx.UnixTimestamp,
	})
}

func fundTreasury(ctx *ledger.InvokeContext, g *grant, argData []byte) error {
	var args FundTreasuryArgs
	if err := decodeArgs(argData, &args); err != nil {
		return err
	}
	if args.Amount == 0 {
		return ErrInvalidAmount
	}
	t, err := loadTreasury(g.treasury)
	if err != nil {
		return err
	}
	if err := ctx.Transfer(g.caller, g.treasury, args.Amount); err != nil {
		return err
	}
	if err := t.credit(args.Amount); err != nil {
		return err
	}
	if err := encodeInto(g.treasury.Data, t); err != nil {
		return err
	}
	return emit(ctx, EventTreasuryFunded, TreasuryFunded{
		Funder:      g.caller.Key,
		Amount:      args.Amount,
		TotalFunded: t.TotalFunded,
		Timestamp:   ctx.UnixTimestamp,
	})
}

// credit counts a deposit into the pool
func (t *Treasury) credit(amount uint64) error {
	sum, carry := bits.Add64(t.TotalFunded, amount, 0)
	if carry != 0 {
		return ErrMathOverflow
	}
	t.TotalFunded = sum
	return nil
}

// disburse pays amount out of the pool. The pool is the treasury balance, so
// the check and the debit happen in the same instruction.
func disburse(ctx *ledger.InvokeContext, treasury, destination *ledger.AccountInfo, amount uint64) error {
	if treasury.Lamports < amount {
		return ErrInsufficientPool
	}
	return ctx.Transfer(treasury, destination, amount)
}
