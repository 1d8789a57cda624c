// Package duration parses and formats durations with calendar units on
// top of Go's native syntax. time.ParseDuration stops at hours, but
// retention and timeout settings read better as "7d" or "2w", so Parse
// accepts days, weeks, months and years as fixed-length units alongside
// everything the standard parser understands.
package duration

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Fixed-length calendar units. Months and years are the conventional
// 30 and 365 days; this package does not do calendar arithmetic.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

var calendarUnits = map[string]time.Duration{
	"d": Day, "day": Day, "days": Day,
	"w": Week, "wk": Week, "week": Week, "weeks": Week,
	"mo": Month, "month": Month, "months": Month,
	"y": Year, "yr": Year, "year": Year, "years": Year,
}

// calendarPattern matches one value/unit pair for the units above. A bare
// "m" is deliberately absent so minutes fall through to time.ParseDuration.
var calendarPattern = regexp.MustCompile(`(?i)(\d+)\s*(years?|yr|y|months?|mo|weeks?|wk|w|days?|d)`)

// Parse reads a duration string. Calendar units may be mixed with native
// ones, so "1w2d12h" and "90m" both parse. A leading "-" negates the
// whole value.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	var total time.Duration
	rest := calendarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := calendarPattern.FindStringSubmatch(match)
		value, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return match
		}
		total += time.Duration(value) * calendarUnits[strings.ToLower(parts[2])]
		return ""
	})

	rest = strings.Join(strings.Fields(rest), "")
	if rest != "" {
		native, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += native
	}

	if negative {
		total = -total
	}
	return total, nil
}

var formatUnits = []struct {
	size time.Duration
	name string
}{
	{Year, "y"},
	{Month, "mo"},
	{Week, "w"},
	{Day, "d"},
	{time.Hour, "h"},
	{time.Minute, "m"},
	{time.Second, "s"},
}

// Format renders d largest-unit-first with zero components omitted, so
// 195h becomes "1w1d3h". The output round-trips through Parse.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	for _, unit := range formatUnits {
		if n := d / unit.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, unit.name)
			d -= n * unit.size
		}
	}
	if d > 0 {
		// Sub-second remainder; the native formatting is already exact.
		b.WriteString(d.String())
	}
	return b.String()
}
