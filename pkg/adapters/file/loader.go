package file

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/praveen131106/ivr-modern/internal/compiler"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// Loader implements ports.FlowLoader over a directory of JSON or YAML documents.
type Loader struct {
	fsys fs.FS
}

// NewLoader reads flow documents from the root of fsys (an embed.FS works too).
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// NewDirLoader reads flow documents from a directory on disk.
func NewDirLoader(dir string) *Loader {
	return NewLoader(os.DirFS(dir))
}

var documentExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// LoadFlows parses every document. Any unreadable or malformed document fails the whole load.
func (l *Loader) LoadFlows() ([]*domain.FlowDefinition, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read flow directory: %w", err)
	}

	parser := compiler.NewParser()
	seen := make(map[string]string)
	var flows []*domain.FlowDefinition
	for _, entry := range entries {
		name := entry.Name()
		ext := path.Ext(name)
		if entry.IsDir() || !documentExts[ext] {
			continue
		}

		data, err := fs.ReadFile(l.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		flow, err := parser.Parse(data, strings.TrimSuffix(name, ext))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, dup := seen[flow.Name]; dup {
			return nil, fmt.Errorf("flow %q defined in both %s and %s", flow.Name, prev, name)
		}
		seen[flow.Name] = name
		flows = append(flows, flow)
	}

	if len(flows) == 0 {
		return nil, fmt.Errorf("no flow documents found")
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Name < flows[j].Name })
	return flows, nil
}
