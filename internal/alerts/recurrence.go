package alerts

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Rule builds the recurrence rule for a daily or weekly trigger anchored at
// midnight of start's day in loc.
func Rule(t Trigger, start time.Time, loc *time.Location) (*rrule.RRule, error) {
	if loc == nil {
		loc = time.Local
	}
	start = start.In(loc)
	dtstart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	opt := rrule.ROption{
		Dtstart:  dtstart,
		Byhour:   []int{t.Hour},
		Byminute: []int{t.Minute},
		Bysecond: []int{0},
	}

	switch t.Kind {
	case KindDaily:
		opt.Freq = rrule.DAILY
	case KindWeekly:
		wd, ok := rruleWeekdays[t.Weekday]
		if !ok {
			return nil, fmt.Errorf("invalid weekday %d", t.Weekday)
		}
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{wd}
	default:
		return nil, fmt.Errorf("%s trigger has no recurrence rule", t.Kind)
	}

	return rrule.NewRRule(opt)
}

// NextFire returns the first firing strictly after after, or the zero time if
// the trigger never fires again.
func NextFire(t Trigger, after time.Time, loc *time.Location) (time.Time, error) {
	if t.Kind == KindOneShot {
		if t.At.After(after) {
			return t.At, nil
		}
		return time.Time{}, nil
	}

	r, err := Rule(t, after, loc)
	if err != nil {
		return time.Time{}, err
	}
	return r.After(after, false), nil
}
