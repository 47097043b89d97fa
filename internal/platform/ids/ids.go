// Package ids hands out integer record identifiers.
package ids

import (
	"sync"
	"time"
)

// Generator returns a new identifier on every call. Implementations must be
// safe for concurrent use and never repeat a value.
type Generator interface {
	Next() int64
}

// Monotonic produces millisecond-timestamp-shaped ids that are strictly
// increasing even when several are requested within the same millisecond
// or the wall clock steps backwards.
type Monotonic struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMonotonic() *Monotonic {
	return &Monotonic{now: time.Now}
}

// NewMonotonicWithClock is NewMonotonic with an injectable clock.
func NewMonotonicWithClock(now func() time.Time) *Monotonic {
	return &Monotonic{now: now}
}

func (m *Monotonic) Next() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.now().UnixMilli()
	if id <= m.last {
		id = m.last + 1
	}
	m.last = id
	return id
}

// Observe raises the floor so that later ids are greater than id. Repositories
// call it with ids already on disk.
func (m *Monotonic) Observe(id int64) {
	m.mu.Lock()
	if id > m.last {
		m.last = id
	}
	m.mu.Unlock()
}

// Sequence counts up from a starting value. Deterministic; used by tests and
// the sandbox seeder.
type Sequence struct {
	mu   sync.Mutex
	next int64
}

func NewSequence(start int64) *Sequence {
	return &Sequence{next: start}
}

func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}

// Observer is implemented by generators that can be told about ids that
// already exist.
type Observer interface {
	Observe(id int64)
}

// Unused returns a fresh id from g that is not present in existing.
func Unused(g Generator, existing []int64) int64 {
	taken := make(map[int64]bool, len(existing))
	var highest int64
	for _, id := range existing {
		taken[id] = true
		if id > highest {
			highest = id
		}
	}
	if o, ok := g.(Observer); ok {
		o.Observe(highest)
	}
	for {
		if id := g.Next(); !taken[id] {
			return id
		}
	}
}
