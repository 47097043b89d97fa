// Package latency injects an artificial delay in front of repository calls so
// local storage behaves like a remote backend. Nothing may depend on the
// delay for correctness.
package latency

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Simulator waits for a random duration drawn from [Min, Max].
type Simulator struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// DefaultMin and DefaultMax bound the default delay band.
const (
	DefaultMin = 300 * time.Millisecond
	DefaultMax = 600 * time.Millisecond
)

func New(min, max time.Duration) *Simulator {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Simulator{Min: min, Max: max, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// None returns a simulator that never waits.
func None() *Simulator { return New(0, 0) }

// Next draws the next delay without sleeping.
func (s *Simulator) Next() time.Duration {
	if s == nil || s.Max <= 0 {
		return 0
	}
	span := int64(s.Max - s.Min)
	if span == 0 {
		return s.Min
	}
	s.mu.Lock()
	d := s.Min + time.Duration(s.rnd.Int63n(span+1))
	s.mu.Unlock()
	return d
}

// Wait blocks for the next delay or until ctx is done.
func (s *Simulator) Wait(ctx context.Context) error {
	d := s.Next()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
