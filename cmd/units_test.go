package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSol(t *testing.T) {
	lamports, err := parseSol("1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), lamports)

	lamports, err = parseSol(" 0.1 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), lamports)

	lamports, err = parseSol("0.000000001")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), lamports)

	for _, bad := range []string{"", "abc", "0", "-1", "NaN", "Inf", "1e30"} {
		_, err := parseSol(bad)
		assert.ErrorIs(t, err, errInvalidAmount, bad)
	}
}

func TestFormatSol(t *testing.T) {
	assert.Equal(t, "1.500000000 SOL", formatSol(1_500_000_000))
	assert.Equal(t, "0.000000001 SOL", formatSol(1))
}

func TestParseAlarm(t *testing.T) {
	hour, minute, err := parseAlarm("07:05")
	require.NoError(t, err)
	assert.Equal(t, uint8(7), hour)
	assert.Equal(t, uint8(5), minute)

	_, _, err = parseAlarm("24:00")
	assert.Error(t, err)
	_, _, err = parseAlarm("7am")
	assert.Error(t, err)
}

func TestOffsets(t *testing.T) {
	assert.Equal(t, "UTC+05:30", formatOffset(330))
	assert.Equal(t, "UTC-08:00", formatOffset(-480))
	assert.Equal(t, "UTC+00:00", formatOffset(0))

	zone := time.FixedZone("IST", 330*60)
	assert.Equal(t, int16(330), localOffsetMinutes(time.Date(2026, 3, 2, 7, 0, 0, 0, zone)))
}
