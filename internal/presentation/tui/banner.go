package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the console banner with the release version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	// Saffron to green, top to bottom
	lines := []struct {
		text  string
		color string
	}{
		{"  ___ __     __ ____  ", "#ff9933"},
		{" |_ _|\\ \\   / /|  _ \\ ", "#ffb366"},
		{"  | |  \\ \\ / / | |_) |", "#f5f5f5"},
		{"  | |   \\ V /  |  _ < ", "#7fbf7f"},
		{" |___|   \\_/   |_| \\_\\", "#138808"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  Train enquiry line simulator "+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
