// Package shutdown turns process signals into context cancellation and
// records fatal startup errors.
package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"codeuchat/pkg/logger"
)

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
// SIGPIPE dumps goroutine stacks to the log and is otherwise ignored.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)

	go func() {
		defer signal.Stop(sigc)
		defer signal.Stop(sigpipe)
		for {
			select {
			case s := <-sigc:
				logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
				cancel()
				return
			case s := <-sigpipe:
				buf := make([]byte, 1<<20)
				n := runtime.Stack(buf, true)
				logger.Warn("signal_received", "signal", s.String(), "stacks", string(buf[:n]))
			case <-ctx.Done():
				return
			}
		}
	}()
	return ctx, cancel
}

type abortRecord struct {
	Time   string `json:"time"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
	PID    int    `json:"pid"`
}

// RecordAbort writes a JSON record of a fatal error under
// <dataDir>/state/abort and returns its path.
func RecordAbort(dataDir, reason string, cause error) (string, error) {
	dir := filepath.Join(dataDir, "state", "abort")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create abort dir: %w", err)
	}
	now := time.Now().UTC()
	rec := abortRecord{Time: now.Format(time.RFC3339), Reason: reason, PID: os.Getpid()}
	if cause != nil {
		rec.Error = cause.Error()
	}
	tmp, err := os.CreateTemp(dir, ".abort-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create abort file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("encode abort record: %w", err)
	}
	tmp.Sync()
	tmp.Close()
	path := filepath.Join(dir, fmt.Sprintf("abort-%d.json", now.UnixNano()))
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("move abort record: %w", err)
	}
	return path, nil
}

// Abort logs the error, records it when a data dir is known and exits 1.
func Abort(dataDir, reason string, err error) {
	logger.Error("startup_fatal", "msg", reason, "error", err)
	if dataDir != "" {
		if path, rerr := RecordAbort(dataDir, reason, err); rerr != nil {
			logger.Error("abort_record_failed", "error", rerr)
		} else {
			logger.Info("abort_recorded", "path", path)
		}
	}
	logger.Sync()
	os.Exit(1)
}
