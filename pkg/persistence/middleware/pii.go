package middleware

import (
	"context"
	"regexp"

	"github.com/praveen131106/ivr-modern/pkg/domain"
	"github.com/praveen131106/ivr-modern/pkg/ports"
)

// Mask replaces sensitive values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SummaryArchive
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates an archive middleware that masks the collected fields
// whose names match the patterns, in the data and wherever the value appears in the transcript.
func NewPIIMiddleware(patternStrings []string) ArchiveMiddleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SummaryArchive) ports.SummaryArchive {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, summary *domain.Summary) error {
	// Copy so the caller's summary keeps the real values.
	masked := *summary
	masked.CollectedData = make(map[string]string, len(summary.CollectedData))
	masked.Transcript = append([]domain.TranscriptEntry(nil), summary.Transcript...)

	var secrets []string
	for k, v := range summary.CollectedData {
		if m.sensitive(k) {
			masked.CollectedData[k] = Mask
			if v != "" {
				secrets = append(secrets, v)
			}
			continue
		}
		masked.CollectedData[k] = v
	}

	for i := range masked.Transcript {
		for _, s := range secrets {
			masked.Transcript[i].Text = replaceFold(masked.Transcript[i].Text, s)
		}
	}

	return m.next.Save(ctx, &masked)
}

func (m *piiMiddleware) Get(ctx context.Context, sessionID string) (*domain.Summary, error) {
	return m.next.Get(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context, limit int) ([]*domain.Summary, error) {
	return m.next.List(ctx, limit)
}

func (m *piiMiddleware) Close() error {
	return m.next.Close()
}

func (m *piiMiddleware) sensitive(field string) bool {
	for _, p := range m.patterns {
		if p.MatchString(field) {
			return true
		}
	}
	return false
}

// replaceFold masks every case-insensitive occurrence of secret in text.
func replaceFold(text, secret string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(secret))
	if !re.MatchString(text) {
		return text
	}
	return re.ReplaceAllString(text, Mask)
}

