package sensor

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"codeuchat/pkg/logger"
)

func fakeDisk(free *uint64) func(string, *unix.Statfs_t) error {
	return func(_ string, st *unix.Statfs_t) error {
		st.Bsize = 4096
		st.Blocks = 1 << 20
		st.Bavail = *free / 4096
		return nil
	}
}

func TestCheckTransitions(t *testing.T) {
	free := uint64(1 << 30)
	heap := uint64(10 << 20)
	s := New("/data", Limits{MinFreeDisk: 512 << 20, MaxHeap: 64 << 20}, logger.Discard())
	s.statfs = fakeDisk(&free)
	s.heap = func() uint64 { return heap }

	now := time.Now()
	r := s.Check(now)
	if r.DiskLow || r.HeapHigh {
		t.Fatalf("unexpected alerts on healthy sample: %+v", r)
	}
	if r.DiskFree != 1<<30 || r.DiskTotal != 4096<<20 {
		t.Fatalf("unexpected disk numbers: %+v", r)
	}

	free = 100 << 20
	heap = 128 << 20
	r = s.Check(now.Add(time.Second))
	if !r.DiskLow || !r.HeapHigh {
		t.Fatalf("expected both alerts: %+v", r)
	}
	if got := s.Last(); !got.DiskLow || got.Time != r.Time {
		t.Fatalf("Last does not reflect the newest reading: %+v", got)
	}

	free = 2 << 30
	heap = 1 << 20
	r = s.Check(now.Add(2 * time.Second))
	if r.DiskLow || r.HeapHigh {
		t.Fatalf("expected recovery: %+v", r)
	}
}

func TestCheckKeepsDiskStateOnError(t *testing.T) {
	free := uint64(0)
	s := New("/data", Limits{MinFreeDisk: 1}, logger.Discard())
	s.statfs = fakeDisk(&free)
	if r := s.Check(time.Now()); !r.DiskLow {
		t.Fatalf("expected disk alert")
	}
	s.statfs = func(string, *unix.Statfs_t) error { return errors.New("gone") }
	if r := s.Check(time.Now()); !r.DiskLow {
		t.Fatalf("failed stat must not clear the alert")
	}
}

func TestCheckRealFilesystem(t *testing.T) {
	s := New(t.TempDir(), Limits{}, logger.Discard())
	r := s.Check(time.Now())
	if r.DiskTotal == 0 || r.HeapInuse == 0 {
		t.Fatalf("expected real numbers: %+v", r)
	}
}
