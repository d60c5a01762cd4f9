// Package sanitize cleans caller input before it reaches the state machine.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
)

var (
	// DefaultMaxInputSize is 4KB, far more than any spoken utterance.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "IVR_MAX_INPUT_SIZE"
)

// ErrInputTooLarge reports input over the size limit. Input still returns the cleaned prefix.
var ErrInputTooLarge = errors.New("input exceeds maximum allowed size")

// Input drops invalid UTF-8 bytes, strips control characters and enforces the size limit.
// Oversized input is cut at a rune boundary and returned together with ErrInputTooLarge.
// A limit of zero or less uses MaxInputSize.
func Input(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = MaxInputSize()
	}

	size := len(input)
	if size > limit {
		input = input[:limit]
	}
	input = strings.ToValidUTF8(input, "")

	// Newline, tab and carriage return survive; ESC, NUL, BEL and friends do not.
	if strings.IndexFunc(input, unsafeControl) >= 0 {
		input = strings.Map(func(r rune) rune {
			if unsafeControl(r) {
				return -1
			}
			return r
		}, input)
	}

	if size > limit {
		return input, fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, size, limit)
	}
	return input, nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && !isSafeControl(r)
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

// MaxInputSize reads EnvMaxInputSize, falling back to DefaultMaxInputSize.
func MaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
