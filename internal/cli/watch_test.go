package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveen131106/ivr-modern/internal/logging"
)

func TestWatchFlows(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchFlows(ctx, dir, logging.NewNop(), func() error {
			changes <- struct{}{}
			return nil
		})
	}()

	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.yaml"), []byte("name: hello\n"), 0o644))

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after a flow document changed")
	}

	select {
	case <-changes:
		t.Fatal("one burst of writes must reload once")
	case <-time.After(3 * debounce):
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchFlows_MissingDir(t *testing.T) {
	err := WatchFlows(context.Background(), filepath.Join(t.TempDir(), "missing"), logging.NewNop(), func() error { return nil })
	assert.Error(t, err)
}
