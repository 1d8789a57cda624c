package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "30s", 30 * time.Second, false},
		{"minutes", "90m", 90 * time.Minute, false},
		{"hours", "720h", 720 * time.Hour, false},
		{"days", "7d", 7 * Day, false},
		{"weeks", "2w", 2 * Week, false},
		{"months", "1mo", Month, false},
		{"years", "1y", Year, false},
		{"mixed calendar and native", "1w2d12h", Week + 2*Day + 12*time.Hour, false},
		{"word units", "30 days", 30 * Day, false},
		{"word units plural weeks", "2 weeks", 2 * Week, false},
		{"milliseconds pass through", "250ms", 250 * time.Millisecond, false},
		{"negative", "-12h", -12 * time.Hour, false},
		{"negative calendar", "-1d", -Day, false},
		{"zero", "0", 0, false},
		{"surrounding whitespace", "  7d  ", 7 * Day, false},
		{"empty", "", 0, true},
		{"garbage", "banana", 0, true},
		{"unknown unit", "12parsecs", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		input time.Duration
		want  string
	}{
		{"zero", 0, "0s"},
		{"seconds", 45 * time.Second, "45s"},
		{"minutes and seconds", 90 * time.Second, "1m30s"},
		{"day", Day, "1d"},
		{"day and hours", 36 * time.Hour, "1d12h"},
		{"week and day", 8 * Day, "1w1d"},
		{"month", Month, "1mo"},
		{"year", Year, "1y"},
		{"sub-second remainder", 1500 * time.Millisecond, "1s500ms"},
		{"negative", -Day, "-1d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.input))
		})
	}
}

func TestFormatRoundTripsThroughParse(t *testing.T) {
	for _, d := range []time.Duration{
		30 * time.Second,
		90 * time.Minute,
		36 * time.Hour,
		8 * Day,
		2*Week + 3*Day + 4*time.Hour,
		Year + Month + Week,
	} {
		parsed, err := Parse(Format(d))
		require.NoError(t, err)
		assert.Equal(t, d, parsed, "round trip of %s", d)
	}
}
