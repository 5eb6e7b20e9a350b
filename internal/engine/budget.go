package engine

import (
	"fmt"
)

// DefaultMaxPasses is the default number of synchronisation passes a
// single settle may run before giving up.
const DefaultMaxPasses = 100

// PassBudget limits the synchronisation passes within one settle.
//
// A pass may schedule further components (a view attaching its renderer
// schedules its representations), so settling is a fixpoint loop. The
// budget turns a component that reschedules itself forever into an error
// instead of a hang.
type PassBudget struct {
	maxPasses int
	current   int
}

// NewPassBudget creates a budget allowing maxPasses passes.
func NewPassBudget(maxPasses int) *PassBudget {
	return &PassBudget{maxPasses: maxPasses}
}

// Check counts one pass and fails once the limit is exceeded.
func (b *PassBudget) Check(root string) error {
	b.current++
	if b.current > b.maxPasses {
		return &BudgetExceededError{
			Root:   root,
			Passes: b.current,
			Limit:  b.maxPasses,
		}
	}
	return nil
}

// Reset starts a new settle.
func (b *PassBudget) Reset() {
	b.current = 0
}

// Current returns the passes counted since the last Reset.
func (b *PassBudget) Current() int {
	return b.current
}

// MaxPasses returns the limit.
func (b *PassBudget) MaxPasses() int {
	return b.maxPasses
}

// BudgetExceededError is returned by Root.Settle when components keep
// scheduling each other past the pass limit. Components still queued stay
// queued for the next settle.
type BudgetExceededError struct {
	Root   string
	Passes int
	Limit  int
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("root %s exceeded pass budget: %d passes > %d limit",
		e.Root, e.Passes, e.Limit)
}
