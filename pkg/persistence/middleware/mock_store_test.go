package middleware_test

import (
	"context"
	"sort"

	"github.com/praveen131106/ivr-modern/pkg/domain"
	"github.com/praveen131106/ivr-modern/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.SessionState
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.SessionState),
	}
}

func (s *MockStore) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	s.data[sessionID] = state
	return nil
}

func (s *MockStore) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	state, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return state, nil
}

func (s *MockStore) Delete(ctx context.Context, sessionID string) error {
	delete(s.data, sessionID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ ports.SessionStore = (*MockStore)(nil)

// MockArchive keeps summaries in memory.
type MockArchive struct {
	data map[string]*domain.Summary
}

func NewMockArchive() *MockArchive {
	return &MockArchive{data: make(map[string]*domain.Summary)}
}

func (a *MockArchive) Save(ctx context.Context, s *domain.Summary) error {
	a.data[s.SessionID] = s
	return nil
}

func (a *MockArchive) Get(ctx context.Context, id string) (*domain.Summary, error) {
	s, ok := a.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (a *MockArchive) List(ctx context.Context, limit int) ([]*domain.Summary, error) {
	var out []*domain.Summary
	for _, s := range a.data {
		out = append(out, s)
	}
	return out, nil
}

func (a *MockArchive) Close() error { return nil }

var _ ports.SummaryArchive = (*MockArchive)(nil)
