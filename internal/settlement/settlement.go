// Package settlement decides the outcome of a payment attempt. The decision
// is behind an interface so the production random draw can be swapped for a
// pinned outcome in tests.
package settlement

import (
	"math/rand"
	"sync"
	"time"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

type Decider interface {
	Decide() Outcome
}

// Fixed always returns the wrapped outcome.
type Fixed Outcome

func (f Fixed) Decide() Outcome { return Outcome(f) }

// RandomDecider settles with the configured success probability.
type RandomDecider struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
}

// NewRandomDecider clamps successRate into [0, 1].
func NewRandomDecider(successRate float64) *RandomDecider {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &RandomDecider{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
	}
}

func (d *RandomDecider) Decide() Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rng.Float64() < d.successRate {
		return OutcomeCompleted
	}
	return OutcomeFailed
}
