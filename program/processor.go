package program

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/holpsBot/proof-of-wake/ledger"
)

// Program is the Proof of Wake on-ledger program.
type Program struct {
	logger *slog.Logger
}

var _ ledger.Program = (*Program)(nil)

func New(logger *slog.Logger) *Program {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Program{logger: logger}
}

func (p *Program) ProgramID() solana.PublicKey {
	return ProgramID
}

// Process runs one instruction. Every account is checked by the guard before
// a handler reads or changes it.
func (p *Program) Process(ctx *ledger.InvokeContext) error {
	name, argData, err := decodeInstruction(ctx.Data)
	if err != nil {
		return err
	}
	ctx.Log("Instruction: %s", pascalCase(name))
	g, err := authorize(name, ctx.Accounts)
	if err != nil {
		return err
	}
	switch name {
	case InstructionInitializeTreasury:
		if len(argData) != 0 {
			return ErrInvalidInstruction
		}
		err = initializeTreasury(ctx, g)
	case InstructionFundTreasury:
		err = fundTreasury(ctx, g, argData)
	case InstructionStartChallenge:
		err = startChallenge(ctx, g, argData)
	case InstructionCompleteDay:
		if len(argData) != 0 {
			return ErrInvalidInstruction
		}
		err = completeDay(ctx, g)
	case InstructionSlash:
		if len(argData) != 0 {
			return ErrInvalidInstruction
		}
		err = slash(ctx, g)
	}
	if err != nil {
		p.logger.Debug(
			fmt.Sprintf("program: %s by %s failed: %s", name, g.caller.Key, err),
			"component", "program",
		)
		return err
	}
	p.logger.Debug(
		fmt.Sprintf("program: %s by %s succeeded", name, g.caller.Key),
		"component", "program",
	)
	return nil
}

func emit(ctx *ledger.InvokeContext, name string, event any) error {
	data, err := EncodeEvent(name, event)
	if err != nil {
		return err
	}
	ctx.EmitEvent(data)
	return nil
}

func pascalCase(name string) string {
	parts := strings.Split(name, "_")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}
