package shutdown

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRecordAbort(t *testing.T) {
	dir := t.TempDir()
	path, err := RecordAbort(dir, "wal replay", errors.New("disk gone"))
	if err != nil {
		t.Fatalf("RecordAbort: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, "state", "abort") {
		t.Fatalf("unexpected location %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var rec abortRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Reason != "wal replay" || rec.Error != "disk gone" || rec.PID != os.Getpid() {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SetupSignalHandler(context.Background())
	cancel()
	<-ctx.Done()
}
