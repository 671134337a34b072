package program

import (
	"errors"
	"math/bits"

	"github.com/holpsBot/proof-of-wake/ledger"
)

// Bonus returns the maturity bonus for a stake.
func Bonus(stake uint64) uint64 {
	hi, lo := bits.Mul64(stake, BonusPerMille)
	q, _ := bits.Div64(hi, lo, 1000)
	return q
}

func validateStart(args StartChallengeArgs) error {
	if args.AlarmHour >= 24 || args.AlarmMinute >= 60 {
		return ErrInvalidTimeValue
	}
	if args.TimezoneOffset < MinTimezoneOffset || args.TimezoneOffset > MaxTimezoneOffset {
		return ErrInvalidTimeValue
	}
	if args.StakeAmount == 0 {
		return ErrInvalidStake
	}
	return nil
}

func startChallenge(ctx *ledger.InvokeContext, g *grant, argData []byte) error {
	var args StartChallengeArgs
	if err := decodeArgs(argData, &args); err != nil {
		return err
	}
	if err := validateStart(args); err != nil {
		return err
	}
	if g.challenge.Owner.Equals(ProgramID) {
		// A finished challenge is restarted in place
		prev, err := DecodeChallenge(g.challenge.Data)
		if err != nil {
			return err
		}
		if prev.IsActive {
			return ErrAlreadyActive
		}
	} else {
		authority := g.caller.Key
		seeds := [][]byte{[]byte(ChallengeSeed), authority[:], {g.bump}}
		if err := ctx.Allocate(g.challenge, seeds, ChallengeSize); err != nil {
			return err
		}
	}
	if err := ctx.Transfer(g.caller, g.challenge, args.StakeAmount); err != nil {
		return err
	}
	c := Challenge{
		Authority:           g.caller.Key,
		AlarmHour:           args.AlarmHour,
		AlarmMinute:         args.AlarmMinute,
		TimezoneOffset:      args.TimezoneOffset,
		StakeAmount:         args.StakeAmount,
		IsActive:            true,
		Outcome:             OutcomeNone,
		StartTimestamp:      ctx.UnixTimestamp,
		LastActionTimestamp: ctx.UnixTimestamp,
		LastWakeDay:         -1,
		Bump:                g.bump,
	}
	if err := encodeInto(g.challenge.Data, c); err != nil {
		return err
	}
	ctx.Log("challenge started, alarm %02d:%02d offset %d stake %d", c.AlarmHour, c.AlarmMinute, c.TimezoneOffset, c.StakeAmount)
	return emit(ctx, EventChallengeStarted, ChallengeStarted{
		Authority:      c.Authority,
		Challenge:      g.challenge.Key,
		AlarmHour:      c.AlarmHour,
		AlarmMinute:    c.AlarmMinute,
		TimezoneOffset: c.TimezoneOffset,
		StakeAmount:    c.StakeAmount,
		Timestamp:      c.StartTimestamp,
	})
}

func completeDay(ctx *ledger.InvokeContext, g *grant) error {
	c := g.record
	if !c.IsActive {
		return ErrNotActive
	}
	local := LocalTime(ctx.UnixTimestamp, c.TimezoneOffset)
	if !InWindow(local, c.AlarmHour, c.AlarmMinute, WakeTolerance) {
		return ErrOutsideAlarmWindow
	}
	day := WakeDay(local, c.AlarmHour, c.AlarmMinute)
	if c.LastWakeDay >= day {
		return ErrAlreadyCompletedToday
	}
	c.Streak++
	c.LastActionTimestamp = ctx.UnixTimestamp
	c.LastWakeDay = day
	var bonus, returned uint64
	matured := c.Streak >= MaturityDays
	if matured {
		if _, err := loadTreasury(g.treasury); err != nil {
			return err
		}
		bonus = Bonus(c.StakeAmount)
		if err := disburse(ctx, g.treasury, g.caller, bonus); err != nil {
			if errors.Is(err, ErrInsufficientPool) {
				return ErrPoolDepleted.WithCause(ErrInsufficientPool)
			}
			return err
		}
		// The escrow is emptied, including anything sent to it besides the stake
		returned = g.challenge.Lamports
		if err := ctx.Transfer(g.challenge, g.caller, returned); err != nil {
			return err
		}
		c.IsActive = false
		c.Outcome = OutcomeMatured
	}
	if err := encodeInto(g.challenge.Data, c); err != nil {
		return err
	}
	ctx.Log("day completed, streak %d", c.Streak)
	if err := emit(ctx, EventDayCompleted, DayCompleted{
		Authority: c.Authority,
		Streak:    c.Streak,
		WakeDay:   day,
		Timestamp: ctx.UnixTimestamp,
	}); err != nil {
		return err
	}
	if !matured {
		return nil
	}
	ctx.Log("challenge matured, returned %d plus bonus %d", returned, bonus)
	return emit(ctx, EventChallengeMatured, ChallengeMatured{
		Authority:     c.Authority,
		StakeReturned: returned,
		Bonus:         bonus,
		Timestamp:     ctx.UnixTimestamp,
	})
}

func slash(ctx *ledger.InvokeContext, g *grant) error {
	c := g.record
	if !c.IsActive {
		return ErrNotActive
	}
	if ctx.UnixTimestamp-c.LastActionTimestamp < int64(GracePeriod.Seconds()) {
		return ErrNotSlashableYet
	}
	t, err := loadTreasury(g.treasury)
	if err != nil {
		return err
	}
	swept := g.challenge.Lamports
	if err := ctx.Transfer(g.challenge, g.treasury, swept); err != nil {
		return err
	}
	if err := t.credit(swept); err != nil {
		return err
	}
	c.IsActive = false
	c.Outcome = OutcomeSlashed
	if err := encodeInto(g.treasury.Data, t); err != nil {
		return err
	}
	if err := encodeInto(g.challenge.Data, c); err != nil {
		return err
	}
	ctx.Log("challenge of %s slashed, %d moved to treasury", c.Authority, swept)
	return emit(ctx, EventChallengeSlashed, ChallengeSlashed{
		Authority: c.Authority,
		Caller:    g.caller.Key,
		Amount:    swept,
		Streak:    c.Streak,
		Timestamp: ctx.UnixTimestamp,
	})
}
