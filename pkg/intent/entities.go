package intent

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// Field names produced by the built-in recognizers.
const (
	FieldTrainNumber = "train_number"
	FieldPNR         = "pnr"
	FieldClass       = "class"
	FieldSource      = "source_station"
	FieldDestination = "destination_station"
	FieldTravelDate  = "travel_date"
)

const (
	strictConfidence = 1.0
	looseConfidence  = 0.8
)

var (
	trainNumberRe = regexp.MustCompile(`\b\d{5}\b`)
	looseTrainRe  = regexp.MustCompile(`\b\d{4,6}\b`)
	pnrDigitsRe   = regexp.MustCompile(`\b\d{10}\b`)
	pnrKeywordRe  = regexp.MustCompile(`\bpnr(?: number| no| code| is)*\s+([a-z0-9]{6,10})\b`)
)

// Station is a catalog entry the station recognizer resolves to.
type Station struct {
	Name    string
	Aliases []string
}

type stationPhrase struct {
	phrase    string
	words     int
	canonical string
}

type classPhrase struct {
	words []string
	code  string
}

var classPhrases = buildClassPhrases(map[string][]string{
	"first_ac":  {"first ac", "first class", "1a", "ac first class", "ac 1 tier", "1 tier"},
	"ac_2_tier": {"ac 2 tier", "ac two tier", "2 tier", "two tier", "second ac", "2a"},
	"ac_3_tier": {"ac 3 tier", "ac three tier", "3 tier", "three tier", "third ac", "3a"},
	"sleeper":   {"sleeper", "sleeper class", "sl"},
	"tatkal":    {"tatkal", "tatkaal"},
	"general":   {"general", "unreserved"},
	"ac":        {"ac", "air conditioned", "ac class"},
})

func buildClassPhrases(src map[string][]string) []classPhrase {
	var out []classPhrase
	for code, phrases := range src {
		for _, p := range phrases {
			out = append(out, classPhrase{words: strings.Fields(p), code: code})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].words) != len(out[j].words) {
			return len(out[i].words) > len(out[j].words)
		}
		return strings.Join(out[i].words, " ") < strings.Join(out[j].words, " ")
	})
	return out
}

var datePhrases = []struct {
	phrase, value string
}{
	{"day after tomorrow", "day after tomorrow"},
	{"tomorrow", "tomorrow"},
	{"today", "today"},
	{"tonight", "today"},
	{"monday", "monday"}, {"tuesday", "tuesday"}, {"wednesday", "wednesday"},
	{"thursday", "thursday"}, {"friday", "friday"}, {"saturday", "saturday"}, {"sunday", "sunday"},
}

// Extract runs every recognizer over raw. Hints name the fields the current
// state is waiting for; hinted fields get looser recognition.
// Extract(Normalize(s)) returns the same entities as Extract(s).
func (c *Classifier) Extract(raw string, hints ...string) map[string]domain.Entity {
	return c.extract(Normalize(raw), hints)
}

func (c *Classifier) extract(text string, hints []string) map[string]domain.Entity {
	if text == "" {
		return nil
	}
	hinted := make(map[string]bool, len(hints))
	for _, h := range hints {
		hinted[h] = true
	}

	out := make(map[string]domain.Entity)
	words := strings.Fields(text)

	extractPNR(text, words, hinted[FieldPNR], out)
	extractTrainNumber(text, hinted[FieldTrainNumber], out)
	extractClass(words, out)
	c.extractStations(words, hints, out)
	extractDate(text, out)

	if len(out) == 0 {
		return nil
	}
	return out
}

func extractTrainNumber(text string, hinted bool, out map[string]domain.Entity) {
	if m := trainNumberRe.FindString(text); m != "" {
		out[FieldTrainNumber] = domain.Entity{Value: m, Confidence: strictConfidence, Recognizer: "train_number"}
		return
	}
	if !hinted {
		return
	}
	if m := looseTrainRe.FindString(text); m != "" {
		out[FieldTrainNumber] = domain.Entity{Value: m, Confidence: looseConfidence, Recognizer: "train_number_loose"}
	}
}

func extractPNR(text string, words []string, hinted bool, out map[string]domain.Entity) {
	if m := pnrDigitsRe.FindString(text); m != "" {
		out[FieldPNR] = domain.Entity{Value: m, Confidence: strictConfidence, Recognizer: "pnr"}
		return
	}
	if m := pnrKeywordRe.FindStringSubmatch(text); m != nil && hasDigit(m[1]) {
		out[FieldPNR] = domain.Entity{Value: strings.ToUpper(m[1]), Confidence: strictConfidence, Recognizer: "pnr"}
		return
	}
	if !hinted {
		return
	}
	// Spoken digits often arrive in groups: "451 267 8901".
	var digits strings.Builder
	for _, w := range words {
		if isDigits(w) {
			digits.WriteString(w)
		}
	}
	if digits.Len() == 10 {
		out[FieldPNR] = domain.Entity{Value: digits.String(), Confidence: 0.9, Recognizer: "pnr_grouped"}
		return
	}
	for _, w := range words {
		if n := len(w); n >= 6 && n <= 10 && hasDigit(w) && isAlnum(w) {
			out[FieldPNR] = domain.Entity{Value: strings.ToUpper(w), Confidence: looseConfidence, Recognizer: "pnr_loose"}
			return
		}
	}
}

func extractClass(words []string, out map[string]domain.Entity) {
	for i := range words {
		for _, p := range classPhrases {
			if hasWordsAt(words, i, p.words) {
				out[FieldClass] = domain.Entity{Value: p.code, Confidence: strictConfidence, Recognizer: "class"}
				return
			}
		}
	}
}

func extractDate(text string, out map[string]domain.Entity) {
	for _, d := range datePhrases {
		if containsPhrase(text, d.phrase) {
			out[FieldTravelDate] = domain.Entity{Value: d.value, Confidence: strictConfidence, Recognizer: "travel_date"}
			return
		}
	}
}

type stationMention struct {
	start      int
	name       string
	confidence float64
}

func (c *Classifier) extractStations(words []string, hints []string, out map[string]domain.Entity) {
	if len(c.stations) == 0 {
		return
	}

	var mentions []stationMention
	for i := 0; i < len(words); {
		m, n := c.stationAt(words, i)
		if n == 0 {
			i++
			continue
		}
		mentions = append(mentions, m)
		i += n
	}

	var queue []string
	for _, h := range hints {
		if h == FieldSource || h == FieldDestination {
			queue = append(queue, h)
		}
	}
	queue = append(queue, FieldSource, FieldDestination)

	put := func(field string, m stationMention) {
		if _, taken := out[field]; taken {
			return
		}
		out[field] = domain.Entity{Value: m.name, Confidence: m.confidence, Recognizer: "station"}
	}

	var uncued []stationMention
	for _, m := range mentions {
		cue := ""
		if m.start > 0 {
			cue = words[m.start-1]
		}
		switch cue {
		case "from", "between":
			put(FieldSource, m)
		case "to", "and", "till", "until":
			put(FieldDestination, m)
		default:
			uncued = append(uncued, m)
		}
	}
	for _, m := range uncued {
		for _, field := range queue {
			if _, taken := out[field]; !taken {
				put(field, m)
				break
			}
		}
	}
}

// stationAt returns the best station starting at word i and how many words it spans.
func (c *Classifier) stationAt(words []string, i int) (stationMention, int) {
	var best stationMention
	span := 0
	for _, s := range c.stations {
		if i+s.words > len(words) {
			continue
		}
		window := strings.Join(words[i:i+s.words], " ")
		score := 0.0
		switch {
		case window == s.phrase:
			score = strictConfidence
		case len([]rune(window)) >= c.cfg.MinFuzzyLength && len([]rune(s.phrase)) >= c.cfg.MinFuzzyLength && !hasDigit(window):
			if r := Ratio(window, s.phrase); r+epsilon >= c.cfg.StationFloor {
				score = r
			}
		}
		if score > best.confidence {
			best = stationMention{start: i, name: s.canonical, confidence: score}
			span = s.words
		}
	}
	return best, span
}

func newStationPhrases(stations []Station) []stationPhrase {
	var out []stationPhrase
	for _, s := range stations {
		for _, p := range append([]string{s.Name}, s.Aliases...) {
			n := Normalize(p)
			if n == "" {
				continue
			}
			out = append(out, stationPhrase{phrase: n, words: len(strings.Fields(n)), canonical: s.Name})
		}
	}
	return out
}

func hasWordsAt(words []string, i int, phrase []string) bool {
	if i+len(phrase) > len(words) {
		return false
	}
	for j, w := range phrase {
		if words[i+j] != w {
			return false
		}
	}
	return true
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func isDigits(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}

func isAlnum(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) < 0
}
