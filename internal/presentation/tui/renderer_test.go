package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlain(t *testing.T) {
	out, err := Plain("Hello\n\n")
	require.NoError(t, err)
	assert.Equal(t, "Hello\n", out)
}

func TestFormatTurn(t *testing.T) {
	got := FormatTurn("Choose a class.", []Option{{Key: "1", Label: "Sleeper"}, {Key: "*", Label: "Main menu"}})
	assert.Equal(t, "Choose a class.\n\n- `1` Sleeper\n- `*` Main menu\n", got)

	assert.Equal(t, "Goodbye!", FormatTurn("Goodbye!", nil))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0\n")
	assert.Contains(t, buf.String(), "Train enquiry line simulator 0.1.0")
}
