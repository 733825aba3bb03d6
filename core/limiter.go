package core

import (
	"fmt"
	"sync"
)

// IterationBudget bounds the number of THINKING -> TOOL_DISPATCH cycles of a
// run. The counter never exceeds its maximum: Increment refuses instead.
type IterationBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewIterationBudget creates a budget. max <= 0 is treated as 1.
func NewIterationBudget(max int) *IterationBudget {
	if max <= 0 {
		max = 1
	}
	return &IterationBudget{max: max}
}

// Increment records one iteration, or returns an IterationBudgetExceeded
// error without changing the counter when the budget is already spent.
func (b *IterationBudget) Increment() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.max {
		return NewError(KindIterationBudget, "iteration", fmt.Sprintf("exceeded max iterations: %d", b.max))
	}
	b.count++
	return nil
}

// Count returns the iterations used so far.
func (b *IterationBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Max returns the configured maximum.
func (b *IterationBudget) Max() int { return b.max }

// Remaining returns how many iterations are left.
func (b *IterationBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.max - b.count
}

// Exhausted reports whether no iterations are left.
func (b *IterationBudget) Exhausted() bool { return b.Remaining() == 0 }
