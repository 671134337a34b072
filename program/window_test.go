package program_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/holpsBot/proof-of-wake/program"
)

func localAt(day int64, hour, minute, second int) int64 {
	return day*86400 + int64(hour)*3600 + int64(minute)*60 + int64(second)
}

func TestInWindowAtTarget(t *testing.T) {
	for hour := uint8(0); hour < 24; hour++ {
		for minute := uint8(0); minute < 60; minute++ {
			now := localAt(20000, int(hour), int(minute), 0)
			for _, tolerance := range []time.Duration{0, time.Minute, program.WakeTolerance, time.Hour} {
				assert.True(t, program.InWindow(now, hour, minute, tolerance), "%02d:%02d tolerance %s", hour, minute, tolerance)
			}
		}
	}
}

func TestInWindowOutsideTolerance(t *testing.T) {
	tolerance := program.WakeTolerance
	outside := int64((tolerance + time.Minute) / time.Second)
	for hour := uint8(0); hour < 24; hour++ {
		for minute := uint8(0); minute < 60; minute++ {
			target := localAt(20000, int(hour), int(minute), 0)
			assert.False(t, program.InWindow(target+outside, hour, minute, tolerance), "%02d:%02d late", hour, minute)
			assert.False(t, program.InWindow(target-outside, hour, minute, tolerance), "%02d:%02d early", hour, minute)
			edge := int64(tolerance / time.Second)
			assert.True(t, program.InWindow(target+edge, hour, minute, tolerance), "%02d:%02d late edge", hour, minute)
			assert.True(t, program.InWindow(target-edge, hour, minute, tolerance), "%02d:%02d early edge", hour, minute)
		}
	}
}

func TestWindowMidnightWrap(t *testing.T) {
	testDefs := []struct {
		now      int64
		hour     uint8
		minute   uint8
		expected time.Duration
	}{
		{now: localAt(1, 23, 55, 0), hour: 0, minute: 0, expected: 5 * time.Minute},
		{now: localAt(1, 0, 3, 0), hour: 23, minute: 58, expected: 5 * time.Minute},
		{now: localAt(1, 12, 0, 0), hour: 0, minute: 0, expected: 12 * time.Hour},
		{now: localAt(-3, 7, 1, 30), hour: 7, minute: 0, expected: 90 * time.Second},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.expected, program.WindowDistance(testDef.now, testDef.hour, testDef.minute))
	}
	assert.True(t, program.InWindow(localAt(1, 23, 55, 0), 0, 0, program.WakeTolerance))
	assert.False(t, program.InWindow(localAt(1, 23, 54, 59), 0, 0, program.WakeTolerance))
}

func TestWakeDay(t *testing.T) {
	// Either side of a midnight alarm is the same occurrence
	assert.Equal(t, program.WakeDay(localAt(10, 23, 57, 0), 0, 0), program.WakeDay(localAt(11, 0, 4, 0), 0, 0))
	// Consecutive mornings are consecutive occurrences
	assert.Equal(t, program.WakeDay(localAt(10, 7, 0, 0), 7, 0)+1, program.WakeDay(localAt(11, 6, 56, 0), 7, 0))
	assert.Equal(t, int64(10), program.WakeDay(localAt(10, 7, 0, 0), 7, 0))
	assert.Equal(t, int64(-1), program.WakeDay(localAt(-1, 7, 0, 0), 7, 0))
}

func TestLocalTime(t *testing.T) {
	utc := time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC).Unix()
	local := program.LocalTime(utc, 120)
	assert.True(t, program.InWindow(local, 7, 0, 0))
	local = program.LocalTime(utc, -300)
	assert.True(t, program.InWindow(local, 0, 0, 0))
}

func TestNextWindow(t *testing.T) {
	tol := program.WakeTolerance
	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 55, 0, 0, time.UTC), program.NextWindow(now, 7, 0, 0, tol))

	now = time.Date(2026, 3, 2, 7, 3, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 55, 0, 0, time.UTC), program.NextWindow(now, 7, 0, 0, tol))

	now = time.Date(2026, 3, 2, 7, 6, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 3, 6, 55, 0, 0, time.UTC), program.NextWindow(now, 7, 0, 0, tol))

	// UTC+2 alarm at 07:00 local is 05:00 UTC
	now = time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 4, 55, 0, 0, time.UTC), program.NextWindow(now, 7, 0, 120, tol))

	// Window still open from the previous local day
	now = time.Date(2026, 3, 3, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 23, 53, 0, 0, time.UTC), program.NextWindow(now, 23, 58, 0, tol))
}

func TestBonus(t *testing.T) {
	assert.Equal(t, uint64(6_900_000), program.Bonus(100_000_000))
	assert.Equal(t, uint64(0), program.Bonus(14))
	assert.Equal(t, uint64(1), program.Bonus(15))
	// No overflow on the widest stake
	assert.Equal(t, uint64(1272825341085959061), program.Bonus(^uint64(0)))
}
