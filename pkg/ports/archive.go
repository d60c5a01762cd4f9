package ports

import (
	"context"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// SummaryArchive stores the summaries of ended calls.
type SummaryArchive interface {
	Save(ctx context.Context, summary *domain.Summary) error
	// Get returns domain.ErrSessionNotFound for unknown sessions.
	Get(ctx context.Context, sessionID string) (*domain.Summary, error)
	// List returns the most recent summaries first, at most limit of them.
	List(ctx context.Context, limit int) ([]*domain.Summary, error)
	Close() error
}
