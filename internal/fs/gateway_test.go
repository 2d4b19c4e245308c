package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndReadBack(t *testing.T) {
	dir, err := NewDir(filepath.Join(t.TempDir(), "outputs"))
	if err != nil {
		t.Fatalf("new dir: %v", err)
	}

	abs, err := dir.WriteFile("p1_render_request.json", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != `{"ok":true}` {
		t.Fatalf("unexpected content: %s", content)
	}
	if filepath.Dir(abs) != dir.Root() {
		t.Fatalf("artifact written outside root: %s", abs)
	}
}

func TestTraversalRejected(t *testing.T) {
	dir, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir: %v", err)
	}

	for _, name := range []string{"../escape.mp4", "a/../../escape.mp4", "", "."} {
		if _, err := dir.Resolve(name); err == nil {
			t.Fatalf("expected rejection for %q", name)
		}
	}
	if _, err := dir.Resolve("../escape.mp4"); !errors.Is(err, ErrPathEscapesRoot) {
		t.Fatalf("expected ErrPathEscapesRoot, got %v", err)
	}

	if _, err := dir.Resolve("nested/clip.mp4"); err != nil {
		t.Fatalf("nested names should resolve: %v", err)
	}
}

func TestRemoveMissingIsFine(t *testing.T) {
	dir, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("new dir: %v", err)
	}
	if err := dir.Remove("never_written.mp4"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}
