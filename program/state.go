package program

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	treasuryDiscriminator  = AccountDiscriminator("Treasury")
	challengeDiscriminator = AccountDiscriminator("Challenge")
)

const (
	// TreasurySize is the length of an encoded Treasury record.
	TreasurySize = 8 + 32 + 8 + 1
	// ChallengeSize is the length of an encoded Challenge record.
	ChallengeSize = 8 + 32 + 1 + 1 + 2 + 8 + 2 + 1 + 1 + 8 + 8 + 8 + 1
)

// Outcome is how a challenge that is no longer active ended.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeMatured
	OutcomeSlashed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatured:
		return "matured"
	case OutcomeSlashed:
		return "slashed"
	default:
		return "none"
	}
}

// Treasury is the global reward pool record. The pool itself is the
// account's lamport balance; TotalFunded only counts deposits.
type Treasury struct {
	Authority   solana.PublicKey `json:"authority"`
	TotalFunded uint64           `json:"totalFunded"`
	Bump        uint8            `json:"bump"`
}

func (t Treasury) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(treasuryDiscriminator[:], false); err != nil {
		return err
	}
	if err := encoder.Encode(t.Authority); err != nil {
		return err
	}
	if err := encoder.WriteUint64(t.TotalFunded, bin.LE); err != nil {
		return err
	}
	return encoder.WriteUint8(t.Bump)
}

func (t *Treasury) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if err := readDiscriminator(decoder, treasuryDiscriminator); err != nil {
		return err
	}
	if err := decoder.Decode(&t.Authority); err != nil {
		return err
	}
	var err error
	if t.TotalFunded, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	t.Bump, err = decoder.ReadUint8()
	return err
}

// Challenge is one participant's commitment record. While IsActive the
// account's balance holds the stake in escrow.
type Challenge struct {
	Authority           solana.PublicKey `json:"authority"`
	AlarmHour           uint8            `json:"alarmHour"`
	AlarmMinute         uint8            `json:"alarmMinute"`
	TimezoneOffset      int16            `json:"timezoneOffset"`
	StakeAmount         uint64           `json:"stakeAmount"`
	Streak              uint16           `json:"streak"`
	IsActive            bool             `json:"isActive"`
	Outcome             Outcome          `json:"outcome"`
	StartTimestamp      int64            `json:"startTimestamp"`
	LastActionTimestamp int64            `json:"lastActionTimestamp"`
	// LastWakeDay is the alarm occurrence of the latest completion, -1 when
	// there has been none since start.
	LastWakeDay int64 `json:"lastWakeDay"`
	Bump        uint8 `json:"bump"`
}

func (c Challenge) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(challengeDiscriminator[:], false); err != nil {
		return err
	}
	if err := encoder.Encode(c.Authority); err != nil {
		return err
	}
	if err := encoder.WriteUint8(c.AlarmHour); err != nil {
		return err
	}
	if err := encoder.WriteUint8(c.AlarmMinute); err != nil {
		return err
	}
	if err := encoder.WriteInt16(c.TimezoneOffset, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint64(c.StakeAmount, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint16(c.Streak, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteBool(c.IsActive); err != nil {
		return err
	}
	if err := encoder.WriteUint8(uint8(c.Outcome)); err != nil {
		return err
	}
	if err := encoder.WriteInt64(c.StartTimestamp, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteInt64(c.LastActionTimestamp, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteInt64(c.LastWakeDay, bin.LE); err != nil {
		return err
	}
	return encoder.WriteUint8(c.Bump)
}

func (c *Challenge) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if err = readDiscriminator(decoder, challengeDiscriminator); err != nil {
		return err
	}
	if err = decoder.Decode(&c.Authority); err != nil {
		return err
	}
	if c.AlarmHour, err = decoder.ReadUint8(); err != nil {
		return err
	}
	if c.AlarmMinute, err = decoder.ReadUint8(); err != nil {
		return err
	}
	if c.TimezoneOffset, err = decoder.ReadInt16(bin.LE); err != nil {
		return err
	}
	if c.StakeAmount, err = decoder.ReadUint64(bin.LE); err != nil {
		return err
	}
	if c.Streak, err = decoder.ReadUint16(bin.LE); err != nil {
		return err
	}
	if c.IsActive, err = decoder.ReadBool(); err != nil {
		return err
	}
	outcome, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	c.Outcome = Outcome(outcome)
	if c.StartTimestamp, err = decoder.ReadInt64(bin.LE); err != nil {
		return err
	}
	if c.LastActionTimestamp, err = decoder.ReadInt64(bin.LE); err != nil {
		return err
	}
	if c.LastWakeDay, err = decoder.ReadInt64(bin.LE); err != nil {
		return err
	}
	c.Bump, err = decoder.ReadUint8()
	return err
}

func readDiscriminator(decoder *bin.Decoder, expected discriminator) error {
	got, err := decoder.ReadNBytes(8)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, expected[:]) {
		return fmt.Errorf("wrong discriminator: wanted %x, got %x", expected[:], got)
	}
	return nil
}

// DecodeTreasury parses a Treasury record from account data.
func DecodeTreasury(data []byte) (*Treasury, error) {
	var t Treasury
	if err := t.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccountData, err)
	}
	return &t, nil
}

// DecodeChallenge parses a Challenge record from account data.
func DecodeChallenge(data []byte) (*Challenge, error) {
	var c Challenge
	if err := c.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccountData, err)
	}
	return &c, nil
}

// encodeInto writes v over dst, which must be exactly the encoded length.
func encodeInto(dst []byte, v interface {
	MarshalWithEncoder(*bin.Encoder) error
}) error {
	buf := new(bytes.Buffer)
	if err := v.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAccountData, err)
	}
	if buf.Len() != len(dst) {
		return fmt.Errorf("%w: encoded %d bytes into %d", ErrInvalidAccountData, buf.Len(), len(dst))
	}
	copy(dst, buf.Bytes())
	return nil
}
