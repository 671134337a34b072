package program

import (
	"crypto/sha256"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the address the Proof of Wake program is deployed at.
var ProgramID = solana.MustPublicKeyFromBase58("2KhoiLTRRzVn4EoEcbHgdtoU4PNJrTxydTb2Mpm1VJbD")

const (
	TreasurySeed  = "treasury"
	ChallengeSeed = "challenge"
)

const (
	// MaturityDays is the streak at which a challenge pays out.
	MaturityDays = 21
	// GracePeriod is how long a challenge may go without a completion before
	// anyone can slash it.
	GracePeriod = 48 * time.Hour
	// WakeTolerance is the distance from the alarm time, either side, within
	// which a completion counts.
	WakeTolerance = 5 * time.Minute
	// BonusPerMille is the maturity bonus as a share of the stake.
	BonusPerMille = 69

	MinTimezoneOffset = -12 * 60
	MaxTimezoneOffset = 14 * 60
)

// TreasuryPDA returns the address of the global treasury and its bump seed.
func TreasuryPDA() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(TreasurySeed)}, ProgramID)
}

// ChallengePDA returns the address of the challenge owned by authority and
// its bump seed.
func ChallengePDA(authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(ChallengeSeed), authority[:]},
		ProgramID,
	)
}

type discriminator [8]byte

func sighash(namespace, name string) discriminator {
	var ret discriminator
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	copy(ret[:], sum[:8])
	return ret
}

// AccountDiscriminator returns the 8 byte prefix of an account record type.
func AccountDiscriminator(name string) [8]byte {
	return sighash("account", name)
}

// InstructionDiscriminator returns the 8 byte prefix of an instruction.
func InstructionDiscriminator(name string) [8]byte {
	return sighash("global", name)
}

// EventDiscriminator returns the 8 byte prefix of an event.
func EventDiscriminator(name string) [8]byte {
	return sighash("event", name)
}
