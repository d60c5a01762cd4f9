package intent

import (
	"strings"
	"unicode"
)

var fillers = map[string]struct{}{
	"please": {}, "pls": {}, "plz": {}, "kindly": {},
	"um": {}, "umm": {}, "uh": {}, "uhh": {}, "er": {}, "erm": {}, "hmm": {}, "ah": {},
}

// Normalize lower-cases text, turns punctuation into spaces, drops filler
// words and collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if _, skip := fillers[w]; !skip {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
// Both arguments must already be normalized.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
