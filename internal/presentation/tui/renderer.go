package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer formats what the IVR says before it is printed.
type Renderer func(text string) (string, error)

// NewRenderer returns a glamour renderer when stdout is a terminal, and plain text otherwise.
func NewRenderer() Renderer {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return Plain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return Plain
	}
	return func(text string) (string, error) {
		return r.Render(text)
	}
}

// Plain renders text unchanged, newline terminated.
func Plain(text string) (string, error) {
	return strings.TrimRight(text, "\n") + "\n", nil
}

// FormatTurn renders a system message and its menu as markdown.
func FormatTurn(message string, options []Option) string {
	var sb strings.Builder
	sb.WriteString(message)
	if len(options) > 0 {
		sb.WriteString("\n\n")
		for _, o := range options {
			sb.WriteString("- `" + o.Key + "` " + o.Label + "\n")
		}
	}
	return sb.String()
}

// Option is a menu entry shown under a message.
type Option struct {
	Key   string
	Label string
}
