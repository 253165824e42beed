// Package analytics computes time-windowed aggregates, budget progress
// with one-month rollover, and month-over-month trends. Every function is
// a pure reduction over a snapshot of records; nothing here caches state
// between calls.
package analytics

import (
	"time"

	"tally/internal/core"
)

type WindowKind string

const (
	WindowToday  WindowKind = "today"
	WindowWeek   WindowKind = "week"
	WindowMonth  WindowKind = "month"
	WindowYear   WindowKind = "year"
	WindowCustom WindowKind = "custom"
	WindowAll    WindowKind = "all"
)

// Window is a filter descriptor. Start/End are inclusive YYYY-MM-DD
// strings, only meaningful for WindowCustom.
type Window struct {
	Kind  WindowKind
	Start string
	End   string
}

// Interval is a closed [Start, End] calendar-day range. A nil *Interval
// means unscoped: no filtering applied.
type Interval struct {
	Start core.Date
	End   core.Date
}

// Contains reports whether d falls inside the closed interval.
func (iv Interval) Contains(d core.Date) bool {
	return !d.Before(iv.Start) && !d.After(iv.End)
}

// Days returns the number of calendar days in the interval, inclusive.
func (iv Interval) Days() int {
	days := 0
	for d := iv.Start; !d.After(iv.End); d = d.Next() {
		days++
	}
	return days
}

// Resolve maps the descriptor to a concrete interval anchored at now.
// Weeks start on Monday. A custom window with a missing or unparsable
// bound degrades to nil (no filter) rather than erroring.
func (w Window) Resolve(now time.Time) *Interval {
	today := core.DateOf(now)

	switch w.Kind {
	case WindowToday:
		return &Interval{Start: today, End: today}

	case WindowWeek:
		// Monday-based offset: Sunday counts as six days in.
		offset := (int(now.Weekday()) + 6) % 7
		start := core.Date{Time: today.AddDate(0, 0, -offset)}
		end := core.Date{Time: start.AddDate(0, 0, 6)}
		return &Interval{Start: start, End: end}

	case WindowMonth:
		start := core.NewDate(now.Year(), int(now.Month()), 1)
		end := core.Date{Time: start.AddDate(0, 1, -1)}
		return &Interval{Start: start, End: end}

	case WindowYear:
		return &Interval{
			Start: core.NewDate(now.Year(), 1, 1),
			End:   core.NewDate(now.Year(), 12, 31),
		}

	case WindowCustom:
		start, err := core.ParseDate(w.Start)
		if err != nil {
			return nil
		}
		end, err := core.ParseDate(w.End)
		if err != nil {
			return nil
		}
		if end.Before(start) {
			return nil
		}
		return &Interval{Start: start, End: end}

	default: // WindowAll and anything unrecognized
		return nil
	}
}

// MonthInterval returns the closed interval spanning a "YYYY-MM" month.
func MonthInterval(month string) (Interval, error) {
	first, err := core.ParseMonth(month)
	if err != nil {
		return Interval{}, err
	}
	last := core.Date{Time: first.AddDate(0, 1, -1)}
	return Interval{Start: first, End: last}, nil
}
