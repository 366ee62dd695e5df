package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSweepReclaimsOrphanDirs(t *testing.T) {
	root := t.TempDir()
	orphan := filepath.Join(root, workDirPrefix+"abc123")
	if err := os.MkdirAll(orphan, 0o700); err != nil {
		t.Fatal(err)
	}
	unrelated := filepath.Join(root, "keep-me")
	if err := os.MkdirAll(unrelated, 0o700); err != nil {
		t.Fatal(err)
	}

	n, err := Sweep(root, nil)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 1 {
		t.Errorf("reclaimed = %d, want 1", n)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan directory should have been removed")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated directory should have been left alone")
	}
}

func TestSweepNonexistentRootIsNotAnError(t *testing.T) {
	n, err := Sweep(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 0 {
		t.Errorf("reclaimed = %d, want 0", n)
	}
}
