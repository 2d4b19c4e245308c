// Package fs confines file writes to a single root directory. Generated
// artifacts are named by server-side code, but every path still goes through
// the traversal guard before touching the disk.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrPathEscapesRoot = errors.New("path escapes the outputs root")

// Dir is a directory all artifact files live under. Paths handed to it are
// relative; anything resolving outside the root is rejected.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve outputs root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create outputs root: %w", err)
	}
	return &Dir{root: absRoot}, nil
}

func (d *Dir) Root() string {
	return d.root
}

// Resolve maps a relative artifact name to an absolute path under the root.
func (d *Dir) Resolve(name string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	normalized = strings.TrimPrefix(normalized, "./")
	normalized = strings.TrimPrefix(normalized, "/")
	if normalized == "" || normalized == "." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	abs := filepath.Clean(filepath.Join(d.root, filepath.FromSlash(normalized)))
	rel, err := filepath.Rel(d.root, abs)
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, name)
	}
	return abs, nil
}

// WriteFile writes an artifact and returns its absolute path.
func (d *Dir) WriteFile(name string, content []byte) (string, error) {
	abs, err := d.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return abs, nil
}

// Create opens an artifact for streaming writes, such as a video download.
func (d *Dir) Create(name string) (*os.File, error) {
	abs, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directories: %w", err)
	}
	f, err := os.Create(abs)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	return f, nil
}

// Remove deletes an artifact, tolerating one that never existed.
func (d *Dir) Remove(name string) error {
	abs, err := d.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}
