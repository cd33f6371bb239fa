package recur

import (
	"fmt"
	"math"
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
)

// Next computes the next occurrence of rec strictly after anchor.
// The anchor's time-of-day and location carry through to the result.
func Next(anchor time.Time, rec *model.Recurrence) (time.Time, error) {
	interval := rec.Interval
	if interval < 1 {
		interval = 1
	}

	switch rec.Rule {
	case model.RuleDaily:
		return anchor.AddDate(0, 0, interval), nil

	case model.RuleWeekly:
		if len(rec.ByDay) == 0 {
			return anchor.AddDate(0, 0, 7*interval), nil
		}
		return nextWeekly(anchor, parseByDay(rec.ByDay), interval)

	case model.RuleMonthly:
		if len(rec.ByDay) > 0 {
			return nextMonthlyByDay(anchor, parseByDay(rec.ByDay), interval)
		}
		if len(rec.ByMonthDay) > 0 {
			return nextMonthlyByMonthDay(anchor, rec.ByMonthDay, interval)
		}
		return addMonthsClamped(anchor, interval), nil

	case model.RuleYearly:
		return addMonthsClamped(anchor, 12*interval), nil
	}

	return time.Time{}, fmt.Errorf("unknown recurrence rule %q", rec.Rule)
}

// NextStamp computes the next occurrence for a date-bearing field
// value, preserving the value's shape: date-only stays date-only,
// zoned stays zoned, naive local stays naive local.
func NextStamp(anchor string, rec *model.Recurrence) (string, error) {
	t, layout, err := model.ParseStamp(anchor)
	if err != nil {
		return "", fmt.Errorf("invalid recurrence anchor: %w", err)
	}
	next, err := Next(t, rec)
	if err != nil {
		return "", err
	}
	return model.FormatStamp(next, layout), nil
}

// nextWeekly finds the earliest byDay weekday strictly after anchor,
// considering only weeks whose index from the anchor's week is a
// multiple of interval. Weeks start on Monday.
func nextWeekly(anchor time.Time, days []ordinalWeekday, interval int) (time.Time, error) {
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("weekly rule has no usable BYDAY tokens")
	}

	anchorWeek := startOfWeek(anchor)
	limit := 7 * (interval + 1)
	for offset := 1; offset <= limit; offset++ {
		candidate := anchor.AddDate(0, 0, offset)
		// Rounding absorbs the DST hour when a transition falls inside
		// the scanned range.
		weekIdx := int(math.Round(startOfWeek(candidate).Sub(anchorWeek).Hours() / (24 * 7)))
		if weekIdx%interval != 0 {
			continue
		}
		for _, d := range days {
			if candidate.Weekday() == d.weekday {
				return candidate, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("no weekly occurrence within %d days", limit)
}

// nextMonthlyByDay scans forward month by month (stepping by interval)
// for the earliest ordinal-weekday candidate strictly after anchor.
// Bare tokens contribute every matching weekday of each month.
func nextMonthlyByDay(anchor time.Time, days []ordinalWeekday, interval int) (time.Time, error) {
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("monthly rule has no usable BYDAY tokens")
	}

	// 5 years of months bounds the scan even for sparse rules like
	// FREQ=MONTHLY;INTERVAL=11;BYDAY=5SU.
	for step := 0; step <= 60; step += interval {
		month := monthStart(anchor).AddDate(0, step, 0)
		var best time.Time
		for _, d := range days {
			for _, candidate := range monthlyCandidates(month, d, anchor) {
				if candidate.After(anchor) && (best.IsZero() || candidate.Before(best)) {
					best = candidate
				}
			}
		}
		if !best.IsZero() {
			return best, nil
		}
	}
	return time.Time{}, fmt.Errorf("no monthly occurrence found")
}

// monthlyCandidates lists the dates in month matching an ordinal
// weekday token, carrying the anchor's time-of-day.
func monthlyCandidates(month time.Time, d ordinalWeekday, anchor time.Time) []time.Time {
	var out []time.Time
	n := daysInMonth(month)
	at := func(day int) time.Time {
		return time.Date(month.Year(), month.Month(), day,
			anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(),
			anchor.Location())
	}

	switch {
	case d.ordinal == 0:
		for day := 1; day <= n; day++ {
			if at(day).Weekday() == d.weekday {
				out = append(out, at(day))
			}
		}
	case d.ordinal > 0:
		count := 0
		for day := 1; day <= n; day++ {
			if at(day).Weekday() == d.weekday {
				count++
				if count == d.ordinal {
					out = append(out, at(day))
					break
				}
			}
		}
	default:
		count := 0
		for day := n; day >= 1; day-- {
			if at(day).Weekday() == d.weekday {
				count--
				if count == d.ordinal {
					out = append(out, at(day))
					break
				}
			}
		}
	}
	return out
}

// nextMonthlyByMonthDay scans forward month by month for the earliest
// listed day-of-month strictly after anchor, clamping each day to the
// month's actual length.
func nextMonthlyByMonthDay(anchor time.Time, monthDays []int, interval int) (time.Time, error) {
	for step := 0; step <= 60; step += interval {
		month := monthStart(anchor).AddDate(0, step, 0)
		n := daysInMonth(month)
		var best time.Time
		for _, day := range monthDays {
			if day < 1 {
				continue
			}
			if day > n {
				day = n
			}
			candidate := time.Date(month.Year(), month.Month(), day,
				anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(),
				anchor.Location())
			if candidate.After(anchor) && (best.IsZero() || candidate.Before(best)) {
				best = candidate
			}
		}
		if !best.IsZero() {
			return best, nil
		}
	}
	return time.Time{}, fmt.Errorf("no monthly occurrence found")
}

// addMonthsClamped adds n months, clamping the day to the target
// month's last valid day. Jan 31 + 1 month lands on Feb 28 (or 29),
// unlike time.AddDate which would roll into March.
func addMonthsClamped(t time.Time, n int) time.Time {
	target := monthStart(t).AddDate(0, n, 0)
	day := t.Day()
	if last := daysInMonth(target); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// startOfWeek returns local midnight of the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	shift := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -shift)
}

// monthStart returns the first of t's month at t's time-of-day.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in t's month.
func daysInMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}
