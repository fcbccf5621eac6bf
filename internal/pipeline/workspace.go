package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the request-scoped directory every transient artifact lives in
type Workspace struct {
	Dir string
}

// NewWorkspace creates root/id. The directory must not exist yet, so two
// requests never share a namespace.
func NewWorkspace(root, id string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transient root: %w", err)
	}

	dir := filepath.Join(root, id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Reclaim removes the workspace and everything in it
func (w *Workspace) Reclaim() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}
