// Package wal keeps the transaction log: committed mutations are queued in
// memory and appended to a text file in batches, then replayed in file
// order at startup.
//
// A Log is not safe for concurrent use. It is driven from timeline tasks.
package wal

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

const (
	DefaultThreshold = 5
	FileName         = "transaction.log"
)

type Log struct {
	path      string
	threshold int
	log       *slog.Logger

	pending []string

	pendingN atomic.Int64
	written  atomic.Uint64
	failures atomic.Uint64
}

// Open prepares a log at path. The file is created on first flush.
func Open(path string, threshold int, log *slog.Logger) *Log {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Log{path: path, threshold: threshold, log: log}
}

func (l *Log) Path() string { return l.path }

// Append queues cmd and flushes once the queue reaches the threshold. The
// command is not durable until a flush succeeds.
func (l *Log) Append(cmd Command) error {
	l.pending = append(l.pending, cmd.Line())
	l.pendingN.Store(int64(len(l.pending)))
	if len(l.pending) >= l.threshold {
		return l.Flush()
	}
	return nil
}

// Flush appends every pending command to the file. On failure the queue is
// kept for the next attempt.
func (l *Log) Flush() error {
	if len(l.pending) == 0 {
		return nil
	}
	if err := l.write(l.pending); err != nil {
		l.failures.Add(1)
		l.log.Error("wal_flush_failed", "path", l.path, "pending", len(l.pending), "error", err)
		return err
	}
	l.written.Add(uint64(len(l.pending)))
	l.log.Debug("wal_flushed", "path", l.path, "commands", len(l.pending))
	l.pending = l.pending[:0]
	l.pendingN.Store(0)
	return nil
}

func (l *Log) write(lines []string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write wal: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync wal: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close wal: %w", err)
	}
	return nil
}

// Pending is safe to call from any goroutine.
func (l *Log) Pending() int { return int(l.pendingN.Load()) }

// Written counts commands that reached the file.
func (l *Log) Written() uint64 { return l.written.Load() }

func (l *Log) Failures() uint64 { return l.failures.Load() }
