// Package bytesize parses and formats byte sizes for configuration
// values such as batch and buffer limits. Units are binary, so "1KB" is
// 1024 bytes; the explicit "KiB" spellings are accepted as aliases.
package bytesize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size int64

const (
	B  Size = 1
	KB      = 1024 * B
	MB      = 1024 * KB
	GB      = 1024 * MB
	TB      = 1024 * GB
	PB      = 1024 * TB
)

var units = map[string]Size{
	"": B, "b": B,
	"k": KB, "kb": KB, "kib": KB,
	"m": MB, "mb": MB, "mib": MB,
	"g": GB, "gb": GB, "gib": GB,
	"t": TB, "tb": TB, "tib": TB,
	"p": PB, "pb": PB, "pib": PB,
}

var sizePattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([a-zA-Z]*)$`)

// Parse reads a size string such as "512KB", "1.5 GB" or "1024". A bare
// number is bytes. Fractional values round to the nearest byte.
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}

	match := sizePattern.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	unit, ok := units[strings.ToLower(match[2])]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q", match[2])
	}
	return Size(math.Round(value * float64(unit))), nil
}

var formatUnits = []struct {
	size Size
	name string
}{
	{PB, "PB"},
	{TB, "TB"},
	{GB, "GB"},
	{MB, "MB"},
	{KB, "KB"},
}

// Format renders s using the largest unit it reaches, so 524288 becomes
// "512KB" and 1536 becomes "1.5KB". Values are shown with at most two
// decimal places.
func Format(s Size) string {
	if s == 0 {
		return "0B"
	}

	negative := s < 0
	if negative {
		s = -s
	}

	var out string
	for _, unit := range formatUnits {
		if s >= unit.size {
			out = trimZeros(float64(s)/float64(unit.size)) + unit.name
			break
		}
	}
	if out == "" {
		out = strconv.FormatInt(int64(s), 10) + "B"
	}
	if negative {
		out = "-" + out
	}
	return out
}

func trimZeros(v float64) string {
	formatted := strconv.FormatFloat(v, 'f', 2, 64)
	formatted = strings.TrimRight(formatted, "0")
	return strings.TrimSuffix(formatted, ".")
}

// String implements fmt.Stringer.
func (s Size) String() string {
	return Format(s)
}
