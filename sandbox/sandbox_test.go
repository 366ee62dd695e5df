package sandbox

import (
	"os"
	"testing"

	executor "github.com/avb-is-me/codespace-executor"
)

func TestNewCreatesWorkDir(t *testing.T) {
	root := t.TempDir()
	sb, err := New(root, executor.ModeDirect, Limits{}, "", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sb.Close()

	if _, err := os.Stat(sb.WorkDir); err != nil {
		t.Errorf("WorkDir should exist: %v", err)
	}
}

func TestCloseRemovesWorkDir(t *testing.T) {
	root := t.TempDir()
	sb, err := New(root, executor.ModeDirect, Limits{}, "", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := sb.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(sb.WorkDir); !os.IsNotExist(err) {
		t.Error("WorkDir should be removed after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	root := t.TempDir()
	sb, err := New(root, executor.ModeDirect, Limits{}, "", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := sb.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := sb.Close(); err != nil {
		t.Fatalf("second Close() should be a no-op, got error = %v", err)
	}
}

func TestDeadlineDefaultsWhenUnset(t *testing.T) {
	sb := &Sandbox{Limits: Limits{}}
	if sb.Deadline() <= 0 {
		t.Error("Deadline() should return a positive default")
	}
}
