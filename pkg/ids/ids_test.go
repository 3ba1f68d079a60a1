package ids

import (
	"testing"
	"time"
)

func TestParseRoundTrip(t *testing.T) {
	for _, id := range []ID{1, 42, 1<<63 + 7} {
		got, err := Parse(id.String())
		if err != nil {
			t.Fatalf("Parse(%s): %v", id, err)
		}
		if got != id {
			t.Fatalf("Parse(%s) = %s", id, got)
		}
	}
	if _, err := Parse("abc"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
	if _, err := Parse("-1"); err == nil {
		t.Fatalf("expected error for negative id")
	}
}

func TestSequential(t *testing.T) {
	g := NewSequential(Null)
	for want := ID(1); want <= 5; want++ {
		if got := g.Make(); got != want {
			t.Fatalf("Make() = %s, want %s", got, want)
		}
	}

	wrap := NewSequential(ID(^uint64(0)))
	if got := wrap.Make(); got != ID(^uint64(0)) {
		t.Fatalf("expected max id, got %s", got)
	}
	if got := wrap.Make(); got != 1 {
		t.Fatalf("expected wrap to skip null, got %s", got)
	}
}

func TestRandomNeverNull(t *testing.T) {
	g := NewRandom(7, time.Unix(0, 0))
	seen := make(map[ID]struct{})
	for i := 0; i < 1000; i++ {
		id := g.Make()
		if id.IsNull() {
			t.Fatalf("random generator returned null")
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 990 {
		t.Fatalf("random generator repeated too often: %d distinct of 1000", len(seen))
	}
}

func TestRandomSeededByServer(t *testing.T) {
	now := time.Unix(1500000000, 0)
	a := NewRandom(1, now).Make()
	b := NewRandom(2, now).Make()
	if a == b {
		t.Fatalf("different servers produced identical first id %s", a)
	}
}

func TestSnowflakeIncreasing(t *testing.T) {
	g, err := NewSnowflake(3)
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}
	prev := g.Make()
	for i := 0; i < 100; i++ {
		next := g.Make()
		if next <= prev {
			t.Fatalf("snowflake ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}
