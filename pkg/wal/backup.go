package wal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"
)

const backupPrefix = "transaction-"

// Backup copies the log file into a directory on a cron schedule and keeps
// the newest Keep copies.
type Backup struct {
	Source string
	Dir    string
	Cron   string
	Keep   int
	Log    *slog.Logger
}

// Next returns the first scheduled run strictly after now.
func (b *Backup) Next(now time.Time) (time.Time, error) {
	return gronx.NextTickAfter(b.Cron, now, false)
}

// Run snapshots the log. A log that does not exist yet is not an error and
// produces no snapshot.
func (b *Backup) Run(now time.Time) (string, error) {
	src, err := os.Open(b.Source)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open wal for backup: %w", err)
	}
	defer src.Close()

	name := filepath.Join(b.Dir, backupPrefix+now.UTC().Format("20060102T150405.000Z")+".log")
	dst, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		os.Remove(name)
		return "", fmt.Errorf("copy backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close backup: %w", err)
	}
	b.Log.Info("wal_backup_written", "path", name, "size", humanize.IBytes(uint64(n)))

	if err := b.prune(); err != nil {
		b.Log.Warn("wal_backup_prune_failed", "dir", b.Dir, "error", err)
	}
	return name, nil
}

// List returns existing snapshots, oldest first.
func (b *Backup) List() ([]string, error) {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		out = append(out, filepath.Join(b.Dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (b *Backup) prune() error {
	if b.Keep <= 0 {
		return nil
	}
	files, err := b.List()
	if err != nil {
		return err
	}
	for len(files) > b.Keep {
		if err := os.Remove(files[0]); err != nil {
			return err
		}
		b.Log.Debug("wal_backup_pruned", "path", files[0])
		files = files[1:]
	}
	return nil
}
