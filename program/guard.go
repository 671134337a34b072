package program

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/holpsBot/proof-of-wake/ledger"
)

// grant is what the guard hands a handler once the caller and the accounts of
// an instruction have been checked. Handlers only reach accounts through it.
type grant struct {
	caller    *ledger.AccountInfo
	treasury  *ledger.AccountInfo
	challenge *ledger.AccountInfo
	// record is the decoded challenge when the instruction requires one
	record *Challenge
	bump   uint8
}

type accountRule struct {
	writable bool
	signer   bool
}

var instructionAccounts = map[string][]accountRule{
	InstructionInitializeTreasury: {{writable: true}, {writable: true, signer: true}, {}},
	InstructionFundTreasury:       {{writable: true}, {writable: true, signer: true}, {}},
	InstructionStartChallenge:     {{writable: true}, {writable: true, signer: true}, {}},
	InstructionCompleteDay:        {{writable: true}, {writable: true}, {writable: true, signer: true}, {}},
	InstructionSlash:              {{writable: true}, {writable: true}, {signer: true}},
}

// authorize checks the account list of an instruction and the caller's right
// to run it. Completion requires the caller to own the challenge; funding and
// slashing only require a signer.
func authorize(name string, accounts []*ledger.AccountInfo) (*grant, error) {
	rules := instructionAccounts[name]
	if len(accounts) < len(rules) {
		return nil, ledger.ErrNotEnoughAccountKeys
	}
	for i, rule := range rules {
		if rule.signer && !accounts[i].IsSigner {
			return nil, fmt.Errorf("%w: account %d must sign", ErrUnauthorized, i)
		}
		if rule.writable && !accounts[i].IsWritable {
			return nil, fmt.Errorf("%w: account %d must be writable", ErrInvalidInstruction, i)
		}
	}
	switch name {
	case InstructionInitializeTreasury, InstructionFundTreasury:
		g := &grant{treasury: accounts[0], caller: accounts[1]}
		if err := requireSystemProgram(accounts[2]); err != nil {
			return nil, err
		}
		bump, err := requireTreasuryAddress(g.treasury)
		if err != nil {
			return nil, err
		}
		g.bump = bump
		if name == InstructionFundTreasury {
			if err := requireTreasuryOwner(g.treasury); err != nil {
				return nil, err
			}
		}
		return g, nil
	case InstructionStartChallenge:
		g := &grant{challenge: accounts[0], caller: accounts[1]}
		if err := requireSystemProgram(accounts[2]); err != nil {
			return nil, err
		}
		addr, bump, err := ChallengePDA(g.caller.Key)
		if err != nil {
			return nil, err
		}
		if !addr.Equals(g.challenge.Key) {
			return nil, fmt.Errorf("%w: challenge", ErrInvalidAccountAddress)
		}
		g.bump = bump
		return g, nil
	case InstructionCompleteDay:
		g := &grant{challenge: accounts[0], treasury: accounts[1], caller: accounts[2]}
		if err := requireSystemProgram(accounts[3]); err != nil {
			return nil, err
		}
		if _, err := requireTreasuryAddress(g.treasury); err != nil {
			return nil, err
		}
		// The caller only holds the capability for the challenge derived from
		// their own key
		addr, _, err := ChallengePDA(g.caller.Key)
		if err != nil {
			return nil, err
		}
		if !addr.Equals(g.challenge.Key) {
			return nil, ErrUnauthorized
		}
		record, err := loadChallenge(g.challenge)
		if err != nil {
			return nil, err
		}
		if !record.Authority.Equals(g.caller.Key) {
			return nil, ErrUnauthorized
		}
		if err := requireTreasuryOwner(g.treasury); err != nil {
			return nil, err
		}
		g.record = record
		return g, nil
	case InstructionSlash:
		g := &grant{challenge: accounts[0], treasury: accounts[1], caller: accounts[2]}
		if _, err := requireTreasuryAddress(g.treasury); err != nil {
			return nil, err
		}
		record, err := loadChallenge(g.challenge)
		if err != nil {
			return nil, err
		}
		addr, _, err := ChallengePDA(record.Authority)
		if err != nil {
			return nil, err
		}
		if !addr.Equals(g.challenge.Key) {
			return nil, fmt.Errorf("%w: challenge", ErrInvalidAccountAddress)
		}
		if err := requireTreasuryOwner(g.treasury); err != nil {
			return nil, err
		}
		g.record = record
		return g, nil
	default:
		return nil, ErrInvalidInstruction
	}
}

func requireSystemProgram(acct *ledger.AccountInfo) error {
	if !acct.Key.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: system program", ErrInvalidAccountAddress)
	}
	return nil
}

func requireTreasuryAddress(acct *ledger.AccountInfo) (uint8, error) {
	addr, bump, err := TreasuryPDA()
	if err != nil {
		return 0, err
	}
	if !addr.Equals(acct.Key) {
		return 0, fmt.Errorf("%w: treasury", ErrInvalidAccountAddress)
	}
	return bump, nil
}

func requireTreasuryOwner(acct *ledger.AccountInfo) error {
	if acct.Owner.Equals(solana.SystemProgramID) {
		return ErrTreasuryNotInitialized
	}
	if !acct.Owner.Equals(ProgramID) {
		return fmt.Errorf("%w: treasury", ErrInvalidAccountOwner)
	}
	return nil
}

// loadChallenge decodes a challenge account. An account the program never
// created reads as an inactive challenge.
func loadChallenge(acct *ledger.AccountInfo) (*Challenge, error) {
	if acct.Owner.Equals(solana.SystemProgramID) {
		return nil, ErrNotActive
	}
	if !acct.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("%w: challenge", ErrInvalidAccountOwner)
	}
	return DecodeChallenge(acct.Data)
}

func loadTreasury(acct *ledger.AccountInfo) (*Treasury, error) {
	if err := requireTreasuryOwner(acct); err != nil {
		return nil, err
	}
	return DecodeTreasury(acct.Data)
}
