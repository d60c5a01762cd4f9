package intent

import "strings"

// Ratio is the InDel similarity of two strings: 2*LCS / (len(a)+len(b)),
// measured in runes. Two empty strings are identical.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return float64(2*lcs(ra, rb)) / float64(total)
}

func lcs(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// windowRatio scores phrase against the whole text and every run of words
// in text as long as the phrase, returning the best score.
func windowRatio(text string, words []string, phrase string) float64 {
	best := Ratio(text, phrase)
	n := len(strings.Fields(phrase))
	if n == 0 || n >= len(words) {
		return best
	}
	for i := 0; i+n <= len(words); i++ {
		if r := Ratio(strings.Join(words[i:i+n], " "), phrase); r > best {
			best = r
		}
	}
	return best
}
