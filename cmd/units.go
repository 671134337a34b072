package cmd

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	wake_protocol "github.com/holpsBot/proof-of-wake/solana"
)

var errInvalidAmount = errors.New("invalid amount")

// parseSol converts a SOL amount such as "0.25" into lamports.
func parseSol(s string) (uint64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	lamports := math.Round(f * float64(wake_protocol.LamportsPerSol))
	if lamports <= 0 || lamports >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	return uint64(lamports), nil
}

func formatSol(lamports uint64) string {
	return fmt.Sprintf("%.9f SOL", float64(lamports)/float64(wake_protocol.LamportsPerSol))
}

// parseAlarm reads an alarm time as HH:MM.
func parseAlarm(s string) (uint8, uint8, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid alarm time %q: use HH:MM", s)
	}
	return uint8(t.Hour()), uint8(t.Minute()), nil //nolint:gosec
}

// localOffsetMinutes is the UTC offset of the local zone at t, in minutes.
func localOffsetMinutes(t time.Time) int16 {
	_, offset := t.Zone()
	return int16(offset / 60) //nolint:gosec
}

func formatOffset(minutes int16) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, minutes/60, minutes%60)
}
