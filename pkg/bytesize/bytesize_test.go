package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Size
		wantErr bool
	}{
		{"bare bytes", "1024", 1024, false},
		{"explicit bytes", "512B", 512, false},
		{"kilobytes", "512KB", 512 * KB, false},
		{"megabytes", "1MB", MB, false},
		{"gigabytes", "2GB", 2 * GB, false},
		{"terabytes", "1TB", TB, false},
		{"petabytes", "1PB", PB, false},
		{"binary alias", "2GiB", 2 * GB, false},
		{"short unit", "5M", 5 * MB, false},
		{"fractional", "1.5GB", GB + 512*MB, false},
		{"lowercase", "512kb", 512 * KB, false},
		{"space before unit", "1.5 GB", GB + 512*MB, false},
		{"surrounding whitespace", "  1MB  ", MB, false},
		{"empty", "", 0, true},
		{"unknown unit", "5XB", 0, true},
		{"no value", "GB", 0, true},
		{"garbage", "abc", 0, true},
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
		input Size
		want  string
	}{
		{"zero", 0, "0B"},
		{"bytes", 512, "512B"},
		{"kilobytes", KB, "1KB"},
		{"fractional kilobytes", 1536, "1.5KB"},
		{"megabytes", 5 * MB, "5MB"},
		{"config batch bytes", 512 * KB, "512KB"},
		{"gigabytes", GB + 512*MB, "1.5GB"},
		{"terabytes", 2 * TB, "2TB"},
		{"negative", -KB, "-1KB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.input))
		})
	}
}

func TestSizeString(t *testing.T) {
	assert.Equal(t, "512KB", (512 * KB).String())
	assert.Equal(t, "100B", Size(100).String())
}
