package intent

import (
	"sort"
	"strings"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

type greetingPhrase struct {
	words []string
	kind  domain.GreetingKind
}

var greetingPhrases = buildGreetings(map[domain.GreetingKind][]string{
	domain.GreetingHello: {
		"hi", "hii", "hello", "helo", "hey", "hiya", "namaste", "namaskar", "greetings",
		"good morning", "good afternoon", "good evening", "good day",
	},
	domain.GreetingHowAreYou: {
		"how are you", "how are you doing", "how r u", "how do you do", "how is it going",
	},
	domain.GreetingThanks: {
		"thanks", "thank you", "thankyou", "thx", "thanks a lot", "thank you so much",
		"many thanks", "much appreciated",
	},
})

// courtesy words may accompany a greeting without making it a request.
var courtesy = map[string]struct{}{
	"there": {}, "sir": {}, "madam": {}, "maam": {}, "ji": {}, "friend": {}, "again": {},
}

func buildGreetings(src map[domain.GreetingKind][]string) []greetingPhrase {
	var out []greetingPhrase
	for kind, phrases := range src {
		for _, p := range phrases {
			out = append(out, greetingPhrase{words: strings.Fields(p), kind: kind})
		}
	}
	// Longest first so "thank you so much" wins over "thank you".
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].words) != len(out[j].words) {
			return len(out[i].words) > len(out[j].words)
		}
		return strings.Join(out[i].words, " ") < strings.Join(out[j].words, " ")
	})
	return out
}

// DetectGreeting reports whether normalized text is made up entirely of
// greeting phrases. A question about wellbeing outranks thanks, which
// outranks a plain hello.
func DetectGreeting(text string) (domain.GreetingKind, bool) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return "", false
	}

	seen := map[domain.GreetingKind]bool{}
	for i := 0; i < len(words); {
		if _, ok := courtesy[words[i]]; ok {
			i++
			continue
		}
		n, kind := matchGreetingAt(words, i)
		if n == 0 {
			return "", false
		}
		seen[kind] = true
		i += n
	}

	switch {
	case seen[domain.GreetingHowAreYou]:
		return domain.GreetingHowAreYou, true
	case seen[domain.GreetingThanks]:
		return domain.GreetingThanks, true
	case seen[domain.GreetingHello]:
		return domain.GreetingHello, true
	}
	return "", false
}

func matchGreetingAt(words []string, i int) (int, domain.GreetingKind) {
	for _, p := range greetingPhrases {
		if i+len(p.words) > len(words) {
			continue
		}
		ok := true
		for j, w := range p.words {
			if words[i+j] != w {
				ok = false
				break
			}
		}
		if ok {
			return len(p.words), p.kind
		}
	}
	return 0, ""
}
