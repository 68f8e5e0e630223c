package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input string
		want  ByteSize
	}{
		{"0", 0},
		{"1024", 1024},
		{"1Ki", KiB},
		{"1KiB", KiB},
		{"512Mi", 512 * MiB},
		{"2Gi", 2 * GiB},
		{"1Ti", TiB},
		{"1K", KB},
		{"100MB", 100 * MB},
		{"3GB", 3 * GB},
		{"2TB", 2 * TB},
		{"64B", 64},
		{"  128Mi  ", 128 * MiB},
		{"1gib", GiB}, // case-insensitive
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseByteSize_Invalid(t *testing.T) {
	for _, input := range []string{"", "  ", "Gi", "12X", "-5Mi", "1.5Gi", "Mi12"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseByteSize(input)
			assert.Error(t, err)
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("256Mi")))
	assert.Equal(t, 256*MiB, b)

	assert.Error(t, b.UnmarshalText([]byte("bogus")))
}

func TestString(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{KiB, "1.00KiB"},
		{1280 * KiB, "1.25MiB"},
		{3 * GiB, "3.00GiB"},
		{2 * TiB, "2.00TiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.size.String())
	}
}
