package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureStateDirs(t *testing.T) {
	root := t.TempDir()
	p, err := EnsureStateDirs(root)
	if err != nil {
		t.Fatalf("EnsureStateDirs: %v", err)
	}
	for _, dir := range []string{p.WALDir, p.State, p.Backups} {
		fi, err := os.Stat(dir)
		if err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	if want := filepath.Join(root, "wal", "transaction.log"); p.WAL != want {
		t.Fatalf("wal path = %s, want %s", p.WAL, want)
	}

	// second call is a no-op
	if _, err := EnsureStateDirs(root); err != nil {
		t.Fatalf("second EnsureStateDirs: %v", err)
	}
}

func TestEnsureStateDirsRequiresRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if _, err := EnsureStateDirs(missing); err == nil {
		t.Fatalf("expected error for missing data dir")
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Fatalf("data dir must not be created")
	}
}

func TestEnsureStateDirsRejectsSymlink(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()
	if err := os.Symlink(target, filepath.Join(root, "wal")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, err := EnsureStateDirs(root); err == nil {
		t.Fatalf("expected symlinked wal dir to be rejected")
	}
}
