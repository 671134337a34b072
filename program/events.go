package program

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	EventTreasuryInitialized = "TreasuryInitialized"
	EventTreasuryFunded      = "TreasuryFunded"
	EventChallengeStarted    = "ChallengeStarted"
	EventDayCompleted        = "DayCompleted"
	EventChallengeMatured    = "ChallengeMatured"
	EventChallengeSlashed    = "ChallengeSlashed"
)

type TreasuryInitialized struct {
	Treasury  solana.PublicKey
	Authority solana.PublicKey
	Timestamp int64
}

type TreasuryFunded struct {
	Funder      solana.PublicKey
	Amount      uint64
	TotalFunded uint64
	Timestamp   int64
}

type ChallengeStarted struct {
	Authority      solana.PublicKey
	Challenge      solana.PublicKey
	AlarmHour      uint8
	AlarmMinute    uint8
	TimezoneOffset int16
	StakeAmount    uint64
	Timestamp      int64
}

type DayCompleted struct {
	Authority solana.PublicKey
	Streak    uint16
	WakeDay   int64
	Timestamp int64
}

type ChallengeMatured struct {
	Authority     solana.PublicKey
	StakeReturned uint64
	Bonus         uint64
	Timestamp     int64
}

type ChallengeSlashed struct {
	Authority solana.PublicKey
	Caller    solana.PublicKey
	Amount    uint64
	Streak    uint16
	Timestamp int64
}

var eventTypes = map[string]func() any{
	EventTreasuryInitialized: func() any { return &TreasuryInitialized{} },
	EventTreasuryFunded:      func() any { return &TreasuryFunded{} },
	EventChallengeStarted:    func() any { return &ChallengeStarted{} },
	EventDayCompleted:        func() any { return &DayCompleted{} },
	EventChallengeMatured:    func() any { return &ChallengeMatured{} },
	EventChallengeSlashed:    func() any { return &ChallengeSlashed{} },
}

// EventNames lists the events the program emits.
func EventNames() []string {
	return []string{
		EventTreasuryInitialized,
		EventTreasuryFunded,
		EventChallengeStarted,
		EventDayCompleted,
		EventChallengeMatured,
		EventChallengeSlashed,
	}
}

// EncodeEvent prefixes the borsh encoding of event with its discriminator.
func EncodeEvent(name string, event any) ([]byte, error) {
	disc := EventDiscriminator(name)
	buf := bytes.NewBuffer(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(event); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// DecodeEvent parses the payload of a "Program data:" log line emitted as
// name. The discriminator must match.
func DecodeEvent(name string, data []byte) (any, error) {
	newEvent, ok := eventTypes[name]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", name)
	}
	disc := EventDiscriminator(name)
	if len(data) < 8 || !bytes.Equal(data[:8], disc[:]) {
		return nil, fmt.Errorf("data is not a %s event", name)
	}
	event := newEvent()
	if err := bin.NewBorshDecoder(data[8:]).Decode(event); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return event, nil
}
