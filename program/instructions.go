package program

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	InstructionInitializeTreasury = "initialize_treasury"
	InstructionFundTreasury       = "fund_treasury"
	InstructionStartChallenge     = "start_challenge"
	InstructionCompleteDay        = "complete_day"
	InstructionSlash              = "slash"
)

var instructionNames = map[discriminator]string{}

func init() {
	for _, name := range []string{
		InstructionInitializeTreasury,
		InstructionFundTreasury,
		InstructionStartChallenge,
		InstructionCompleteDay,
		InstructionSlash,
	} {
		instructionNames[InstructionDiscriminator(name)] = name
	}
}

type FundTreasuryArgs struct {
	Amount uint64
}

type StartChallengeArgs struct {
	AlarmHour      uint8
	AlarmMinute    uint8
	TimezoneOffset int16
	StakeAmount    uint64
}

func instructionData(name string, args any) ([]byte, error) {
	disc := InstructionDiscriminator(name)
	if args == nil {
		return disc[:], nil
	}
	data, err := bin.MarshalBorsh(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s args: %w", name, err)
	}
	return append(disc[:], data...), nil
}

// decodeInstruction splits instruction data into its name and argument bytes.
func decodeInstruction(data []byte) (string, []byte, error) {
	if len(data) < 8 {
		return "", nil, ErrInvalidInstruction
	}
	var disc discriminator
	copy(disc[:], data[:8])
	name, ok := instructionNames[disc]
	if !ok {
		return "", nil, ErrInvalidInstruction
	}
	return name, data[8:], nil
}

func decodeArgs(data []byte, args any) error {
	decoder := bin.NewBorshDecoder(data)
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInstruction, err)
	}
	if decoder.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidInstruction, decoder.Remaining())
	}
	return nil
}

// NewInitializeTreasuryInstruction creates the treasury with authority as its
// administrator.
func NewInitializeTreasuryInstruction(authority solana.PublicKey) (solana.Instruction, error) {
	treasury, _, err := TreasuryPDA()
	if err != nil {
		return nil, err
	}
	data, err := instructionData(InstructionInitializeTreasury, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(treasury).WRITE(),
			solana.Meta(authority).WRITE().SIGNER(),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	), nil
}

// NewFundTreasuryInstruction deposits amount lamports from funder into the
// treasury.
func NewFundTreasuryInstruction(funder solana.PublicKey, amount uint64) (solana.Instruction, error) {
	treasury, _, err := TreasuryPDA()
	if err != nil {
		return nil, err
	}
	data, err := instructionData(InstructionFundTreasury, FundTreasuryArgs{Amount: amount})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(treasury).WRITE(),
			solana.Meta(funder).WRITE().SIGNER(),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	), nil
}

// NewStartChallengeInstruction escrows the stake of authority and starts its
// challenge.
func NewStartChallengeInstruction(authority solana.PublicKey, args StartChallengeArgs) (solana.Instruction, error) {
	challenge, _, err := ChallengePDA(authority)
	if err != nil {
		return nil, err
	}
	data, err := instructionData(InstructionStartChallenge, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(challenge).WRITE(),
			solana.Meta(authority).WRITE().SIGNER(),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	), nil
}

// NewCompleteDayInstruction records a wake-up for the challenge of authority.
func NewCompleteDayInstruction(authority solana.PublicKey) (solana.Instruction, error) {
	challenge, _, err := ChallengePDA(authority)
	if err != nil {
		return nil, err
	}
	treasury, _, err := TreasuryPDA()
	if err != nil {
		return nil, err
	}
	data, err := instructionData(InstructionCompleteDay, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(challenge).WRITE(),
			solana.Meta(treasury).WRITE(),
			solana.Meta(authority).WRITE().SIGNER(),
			solana.Meta(solana.SystemProgramID),
		},
		data,
	), nil
}

// NewSlashInstruction forfeits the stake of the challenge owned by
// challengeAuthority. Any caller may sign it.
func NewSlashInstruction(caller, challengeAuthority solana.PublicKey) (solana.Instruction, error) {
	challenge, _, err := ChallengePDA(challengeAuthority)
	if err != nil {
		return nil, err
	}
	treasury, _, err := TreasuryPDA()
	if err != nil {
		return nil, err
	}
	data, err := instructionData(InstructionSlash, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(challenge).WRITE(),
			solana.Meta(treasury).WRITE(),
			solana.Meta(caller).SIGNER(),
		},
		data,
	), nil
}
