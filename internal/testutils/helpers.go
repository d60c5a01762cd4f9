package testutils

import (
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFlowDir creates a temporary flows directory holding one file per entry.
// Keys are file names relative to the directory. It fails the test immediately on error.
func WriteFlowDir(t *testing.T, docs map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, body := range docs {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "Failed to create %s", filepath.Dir(path))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644), "Failed to write %s", name)
	}
	return dir
}

// SequentialIDs returns a goroutine-safe ID generator yielding prefix-1, prefix-2 and so on.
func SequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return prefix + "-" + strconv.FormatInt(n.Add(1), 10)
	}
}
