package ivr

import (
	"log/slog"
	"sync"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// streamBuffer is the per-subscriber backlog before diffs are dropped.
const streamBuffer = 16

// streamManager fans session diffs out to live subscribers.
type streamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *domain.SessionDiff]struct{}
	logger      *slog.Logger
}

func newStreamManager(logger *slog.Logger) *streamManager {
	return &streamManager{
		subscribers: make(map[string]map[chan *domain.SessionDiff]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for sessionID. It does not check that the
// session exists; the returned cancel must be called to release it.
func (sm *streamManager) Subscribe(sessionID string) (<-chan *domain.SessionDiff, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan *domain.SessionDiff, streamBuffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan *domain.SessionDiff]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { sm.remove(sessionID, ch) })
	}
}

func (sm *streamManager) remove(sessionID string, ch chan *domain.SessionDiff) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	subs, ok := sm.subscribers[sessionID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(sm.subscribers, sessionID)
	}
}

// Broadcast never blocks: a full subscriber misses the diff.
func (sm *streamManager) Broadcast(diff *domain.SessionDiff) {
	if diff == nil {
		return
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[diff.SessionID] {
		select {
		case ch <- diff:
		default:
			sm.logger.Warn("Subscriber buffer full, dropping diff", "session_id", diff.SessionID)
		}
	}
}

// Close ends every subscription of a session.
func (sm *streamManager) Close(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers[sessionID] {
		close(ch)
	}
	delete(sm.subscribers, sessionID)
}
