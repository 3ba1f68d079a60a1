// Package ids defines the identifier type shared by users, conversations
// and messages, and the generators that produce candidate identifiers.
package ids

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ID identifies any entity. Null denotes "absent".
type ID uint64

const Null ID = 0

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (id ID) IsNull() bool {
	return id == Null
}

// Parse reads the decimal form produced by String.
func Parse(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Null, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(v), nil
}

// Generator produces candidate identifiers. Candidates are not guaranteed
// to be unused; callers check them against their own indices.
type Generator interface {
	Make() ID
}

// Random draws ids from a PRNG seeded from the server identity and the
// wall clock.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandom(server ID, now time.Time) *Random {
	seed := int64(uint64(server) ^ uint64(now.UnixNano()))
	return &Random{rnd: rand.New(rand.NewSource(seed))}
}

func (r *Random) Make() ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if id := ID(r.rnd.Uint64()); id != Null {
			return id
		}
	}
}

// Sequential hands out start, start+1, ... and skips Null on wrap.
type Sequential struct {
	mu   sync.Mutex
	next ID
}

func NewSequential(start ID) *Sequential {
	return &Sequential{next: start}
}

func (s *Sequential) Make() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == Null {
		s.next++
	}
	id := s.next
	s.next++
	return id
}

// Snowflake produces time-ordered ids from a snowflake node numbered
// after the server id.
type Snowflake struct {
	node *snowflake.Node
}

func NewSnowflake(server ID) (*Snowflake, error) {
	node, err := snowflake.NewNode(int64(uint64(server) % 1024))
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return &Snowflake{node: node}, nil
}

func (s *Snowflake) Make() ID {
	return ID(s.node.Generate().Int64())
}
