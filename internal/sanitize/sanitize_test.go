package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInput_SizeLimit(t *testing.T) {
	limit := 4096

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Input(strings.Repeat("a", tt.inputSize), 0)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInput_ExplicitLimit(t *testing.T) {
	got, err := Input("book a ticket", 4)
	assert.ErrorIs(t, err, ErrInputTooLarge)
	assert.Equal(t, "book", got)
}

func TestInput_TruncatesAtRuneBoundary(t *testing.T) {
	// "é" is two bytes; a limit of 2 splits it.
	got, err := Input("aé", 2)
	assert.ErrorIs(t, err, ErrInputTooLarge)
	assert.Equal(t, "a", got)
}

func TestInput_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "book a ticket", "book a ticket"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31m12718\x1b[0m", "[31m12718[0m"},
		{"Null Byte", "12\x00718", "12718"},
		{"Bell", "sleeper\x07", "sleeper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Input(tt.input, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInput_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")

	_, err := Input("12345678901", 0)
	assert.Error(t, err)

	_, err = Input("12345", 0)
	assert.NoError(t, err)
}

func TestInput_InvalidUTF8(t *testing.T) {
	got, err := Input("book \xff ticket", 0)
	require.NoError(t, err)
	assert.Equal(t, "book  ticket", got)

	got, err = Input("\xbd\xb2\x3d\xbc\x20\xe2\x8c\x98", 0)
	require.NoError(t, err)
	assert.Equal(t, "= \u2318", got)
}
