// Package storage provides the per-request temporary workspace under a
// shared temp root, and an optional archive sink for rendered reels.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Archiver stores a copy of a rendered reel outside the provider.
type Archiver interface {
	// Archive uploads data under the given key and returns its URL.
	Archive(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// TempRoot manages per-request workspaces under one shared directory.
// Each compilation request gets its own uniquely named workspace; the
// root is opportunistically removed once it empties out.
type TempRoot struct {
	root string
}

// NewTempRoot creates the shared temp root directory if needed.
func NewTempRoot(root string) (*TempRoot, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "clipforge")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("storage: create temp root: %w", err)
	}
	return &TempRoot{root: root}, nil
}

// Root returns the shared temp root path.
func (t *TempRoot) Root() string {
	return t.root
}

// CreateWorkspace allocates a fresh workspace directory, never reused
// across requests.
func (t *TempRoot) CreateWorkspace() (string, error) {
	// The root may have been opportunistically removed by a previous
	// request's cleanup.
	if err := os.MkdirAll(t.root, 0750); err != nil {
		return "", fmt.Errorf("storage: recreate temp root: %w", err)
	}
	dir := filepath.Join(t.root, "reel-"+uuid.NewString())
	if err := os.Mkdir(dir, 0750); err != nil {
		return "", fmt.Errorf("storage: create workspace: %w", err)
	}
	return dir, nil
}

// RemoveWorkspace deletes a workspace and its contents, then removes the
// shared root if it is empty. A root that is non-empty or already gone
// is not an error.
func (t *TempRoot) RemoveWorkspace(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("storage: remove workspace: %w", err)
	}
	// Remove fails when another request still owns a workspace in the
	// root, or when a concurrent cleanup already won the race.
	_ = os.Remove(t.root)
	return nil
}
