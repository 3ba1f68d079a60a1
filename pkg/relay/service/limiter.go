package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"codeuchat/pkg/ids"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per team. Idle entries are dropped by
// sweep.
type limiterPool struct {
	mu    sync.Mutex
	m     map[ids.ID]*limiterEntry
	rps   float64
	burst int
	ttl   time.Duration
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &limiterPool{m: make(map[ids.ID]*limiterEntry), rps: rps, burst: burst, ttl: 10 * time.Minute}
}

func (p *limiterPool) allow(team ids.ID) bool {
	p.mu.Lock()
	e, ok := p.m[team]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.m[team] = e
	}
	e.lastSeen = time.Now()
	p.mu.Unlock()
	return e.l.Allow()
}

func (p *limiterPool) sweep(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k, e := range p.m {
		if now.Sub(e.lastSeen) > p.ttl {
			delete(p.m, k)
			n++
		}
	}
	return n
}
