// Package sensor samples free disk space under the data directory and Go
// heap usage, logging when either crosses its limit and when it recovers.
package sensor

import (
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

type Reading struct {
	Time      time.Time
	DiskFree  uint64
	DiskTotal uint64
	HeapInuse uint64
	DiskLow   bool
	HeapHigh  bool
}

type Limits struct {
	// MinFreeDisk is the free space below which the disk alert raises.
	MinFreeDisk uint64
	// MaxHeap is the in-use heap above which the memory alert raises. Zero
	// disables the memory check.
	MaxHeap uint64
}

// Sensor is driven by Check; the last reading is safe to read from any
// goroutine.
type Sensor struct {
	path   string
	limits Limits
	log    *slog.Logger
	statfs func(path string, st *unix.Statfs_t) error
	heap   func() uint64

	last atomic.Pointer[Reading]
}

func New(path string, limits Limits, log *slog.Logger) *Sensor {
	return &Sensor{
		path:   path,
		limits: limits,
		log:    log,
		statfs: unix.Statfs,
		heap: func() uint64 {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return m.HeapInuse
		},
	}
}

// Check takes one sample. Alerts are logged on transitions only.
func (s *Sensor) Check(now time.Time) Reading {
	prev := s.Last()
	r := Reading{Time: now, DiskLow: prev.DiskLow, HeapHigh: prev.HeapHigh}

	var st unix.Statfs_t
	if err := s.statfs(s.path, &st); err != nil {
		s.log.Error("disk_stat_failed", "path", s.path, "error", err)
	} else {
		r.DiskFree = st.Bavail * uint64(st.Bsize)
		r.DiskTotal = st.Blocks * uint64(st.Bsize)
		low := r.DiskFree < s.limits.MinFreeDisk
		switch {
		case low && !prev.DiskLow:
			s.log.Warn("disk_space_low", "path", s.path, "free", humanize.IBytes(r.DiskFree), "min", humanize.IBytes(s.limits.MinFreeDisk))
		case !low && prev.DiskLow:
			s.log.Info("disk_space_recovered", "path", s.path, "free", humanize.IBytes(r.DiskFree))
		}
		r.DiskLow = low
	}

	r.HeapInuse = s.heap()
	if s.limits.MaxHeap > 0 {
		high := r.HeapInuse > s.limits.MaxHeap
		switch {
		case high && !prev.HeapHigh:
			s.log.Warn("heap_usage_high", "inuse", humanize.IBytes(r.HeapInuse), "max", humanize.IBytes(s.limits.MaxHeap))
		case !high && prev.HeapHigh:
			s.log.Info("heap_usage_recovered", "inuse", humanize.IBytes(r.HeapInuse))
		}
		r.HeapHigh = high
	}

	s.last.Store(&r)
	return r
}

// Last returns the most recent reading, zero before the first Check.
func (s *Sensor) Last() Reading {
	if r := s.last.Load(); r != nil {
		return *r
	}
	return Reading{}
}
