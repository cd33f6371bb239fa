// Package recur computes recurring-task rollovers: parsing compact
// recurrence rule strings, finding the next occurrence of a rule from
// an anchor date with calendar-correct arithmetic, and building the
// follow-up task emitted when a recurring task completes.
package recur

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
)

// weekdayTokens maps the two-letter weekday tokens used in BYDAY lists.
var weekdayTokens = map[string]time.Weekday{
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
	"SU": time.Sunday,
}

var ruleNames = map[string]string{
	"DAILY":   model.RuleDaily,
	"WEEKLY":  model.RuleWeekly,
	"MONTHLY": model.RuleMonthly,
	"YEARLY":  model.RuleYearly,
}

// ordinalWeekday is a parsed BYDAY token: 1MO is the first Monday,
// -1FR the last Friday, and a bare SU (ordinal 0) every Sunday.
type ordinalWeekday struct {
	ordinal int
	weekday time.Weekday
}

// ParseRule parses a compact rule string of the form
//
//	FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,FR
//	FREQ=MONTHLY;BYMONTHDAY=1,15
//	FREQ=MONTHLY;BYDAY=-1FR
//
// into a recurrence descriptor. Unknown keys are ignored so rules
// written by newer clients still parse. The strategy defaults to
// strict; a STRATEGY=FLUID component overrides it.
func ParseRule(raw string) (*model.Recurrence, error) {
	rec := &model.Recurrence{Strategy: model.StrategyStrict, Interval: 1}
	seenFreq := false

	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed rule component %q", part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "FREQ":
			rule, ok := ruleNames[strings.ToUpper(value)]
			if !ok {
				return nil, fmt.Errorf("unknown frequency %q", value)
			}
			rec.Rule = rule
			seenFreq = true
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid interval %q", value)
			}
			rec.Interval = n
		case "BYDAY":
			for _, token := range strings.Split(value, ",") {
				token = strings.TrimSpace(token)
				if token == "" {
					continue
				}
				if _, err := parseByDayToken(token); err != nil {
					return nil, err
				}
				rec.ByDay = append(rec.ByDay, strings.ToUpper(token))
			}
		case "BYMONTHDAY":
			for _, field := range strings.Split(value, ",") {
				field = strings.TrimSpace(field)
				if field == "" {
					continue
				}
				n, err := strconv.Atoi(field)
				if err != nil || n < 1 || n > 31 {
					return nil, fmt.Errorf("invalid month day %q", field)
				}
				rec.ByMonthDay = append(rec.ByMonthDay, n)
			}
		case "STRATEGY":
			switch strings.ToLower(value) {
			case model.StrategyStrict:
				rec.Strategy = model.StrategyStrict
			case model.StrategyFluid:
				rec.Strategy = model.StrategyFluid
			default:
				return nil, fmt.Errorf("unknown strategy %q", value)
			}
		}
	}

	if !seenFreq {
		return nil, fmt.Errorf("rule is missing FREQ")
	}
	return rec, nil
}

// parseByDayToken parses tokens like MO, 2TU, -1FR.
func parseByDayToken(token string) (ordinalWeekday, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if len(token) < 2 {
		return ordinalWeekday{}, fmt.Errorf("invalid weekday token %q", token)
	}
	name := token[len(token)-2:]
	wd, ok := weekdayTokens[name]
	if !ok {
		return ordinalWeekday{}, fmt.Errorf("invalid weekday token %q", token)
	}
	prefix := token[:len(token)-2]
	if prefix == "" {
		return ordinalWeekday{weekday: wd}, nil
	}
	ord, err := strconv.Atoi(prefix)
	if err != nil || ord == 0 || ord > 5 || ord < -5 {
		return ordinalWeekday{}, fmt.Errorf("invalid weekday ordinal %q", token)
	}
	return ordinalWeekday{ordinal: ord, weekday: wd}, nil
}

// parseByDay converts a descriptor's token list, skipping tokens that
// no longer parse (a descriptor may predate validation).
func parseByDay(tokens []string) []ordinalWeekday {
	out := make([]ordinalWeekday, 0, len(tokens))
	for _, token := range tokens {
		ow, err := parseByDayToken(token)
		if err != nil {
			continue
		}
		out = append(out, ow)
	}
	return out
}

// Normalize fills descriptor defaults in place: interval at least 1,
// strategy defaulting to strict.
func Normalize(rec *model.Recurrence) {
	if rec.Interval < 1 {
		rec.Interval = 1
	}
	if rec.Strategy != model.StrategyFluid {
		rec.Strategy = model.StrategyStrict
	}
}
