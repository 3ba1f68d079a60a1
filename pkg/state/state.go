// Package state owns the on-disk layout under a server's data directory.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"codeuchat/pkg/wal"
)

// Paths lists the locations derived from a data directory.
type Paths struct {
	Root    string
	WALDir  string
	WAL     string
	State   string
	Backups string
}

func PathsFor(dataDir string) Paths {
	state := filepath.Join(dataDir, "state")
	walDir := filepath.Join(dataDir, "wal")
	return Paths{
		Root:    dataDir,
		WALDir:  walDir,
		WAL:     filepath.Join(walDir, wal.FileName),
		State:   state,
		Backups: filepath.Join(state, "backups"),
	}
}

// EnsureStateDirs creates the layout under an existing data directory. The
// root itself is never created. Each directory must not be a symlink, must
// not be group/other writable and must accept new files.
func EnsureStateDirs(dataDir string) (Paths, error) {
	p := PathsFor(dataDir)
	fi, err := os.Stat(p.Root)
	if err != nil {
		return p, fmt.Errorf("data dir: %w", err)
	}
	if !fi.IsDir() {
		return p, fmt.Errorf("data dir is not a directory: %s", p.Root)
	}

	for _, dir := range []string{p.WALDir, p.State, p.Backups} {
		if fi, err := os.Lstat(dir); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return p, fmt.Errorf("path is a symlink: %s", dir)
			}
			if !fi.IsDir() {
				return p, fmt.Errorf("path exists and is not a directory: %s", dir)
			}
			if fi.Mode().Perm()&0o022 != 0 {
				return p, fmt.Errorf("path has permissive mode (group/other write): %s", dir)
			}
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return p, fmt.Errorf("cannot create path %s: %w", dir, err)
		}
		tmp, err := os.CreateTemp(dir, ".validate-*")
		if err != nil {
			return p, fmt.Errorf("path not writable: %s: %w", dir, err)
		}
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	return p, nil
}
