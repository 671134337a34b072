package program

import "time"

const (
	secondsPerDay     = 24 * 60 * 60
	secondsPerHalfDay = secondsPerDay / 2
)

// LocalTime shifts a ledger unix timestamp by a timezone offset in minutes
// east of UTC. The result counts seconds like a unix timestamp would if the
// participant's wall clock were UTC.
func LocalTime(unix int64, timezoneOffset int16) int64 {
	return unix + int64(timezoneOffset)*60
}

func alarmSeconds(alarmHour, alarmMinute uint8) int64 {
	return int64(alarmHour)*3600 + int64(alarmMinute)*60
}

// WindowDistance is the circular distance between the local time of day and
// the alarm, so 23:55 is five minutes from 00:00.
func WindowDistance(nowLocal int64, alarmHour, alarmMinute uint8) time.Duration {
	diff := floorMod(nowLocal, secondsPerDay) - alarmSeconds(alarmHour, alarmMinute)
	if diff < 0 {
		diff = -diff
	}
	if diff > secondsPerHalfDay {
		diff = secondsPerDay - diff
	}
	return time.Duration(diff) * time.Second
}

// InWindow reports whether nowLocal is within tolerance of the alarm time,
// inclusive at the bound.
func InWindow(nowLocal int64, alarmHour, alarmMinute uint8, tolerance time.Duration) bool {
	return WindowDistance(nowLocal, alarmHour, alarmMinute) <= tolerance
}

// WakeDay numbers alarm occurrences. It returns the index of the occurrence
// nearest to nowLocal, so a completion a few minutes before a midnight alarm
// counts for the same day as one a few minutes after it.
func WakeDay(nowLocal int64, alarmHour, alarmMinute uint8) int64 {
	return floorDiv(nowLocal-alarmSeconds(alarmHour, alarmMinute)+secondsPerHalfDay, secondsPerDay)
}

// NextWindow returns the start of the alarm window open at now, or of the
// next one if none is open.
func NextWindow(now time.Time, alarmHour, alarmMinute uint8, timezoneOffset int16, tolerance time.Duration) time.Time {
	local := LocalTime(now.Unix(), timezoneOffset)
	day := floorDiv(local, secondsPerDay)
	tol := int64(tolerance / time.Second)
	var alarm int64
	// A window near midnight can still be open from the previous local day
	for i := int64(-1); i <= 1; i++ {
		alarm = (day+i)*secondsPerDay + alarmSeconds(alarmHour, alarmMinute)
		if alarm+tol >= local {
			break
		}
	}
	return time.Unix(alarm-tol-int64(timezoneOffset)*60, 0).UTC()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
