package crawler

import "fmt"

// Budget counts area steps of one discovery. Every visit to an area page,
// including restarts after a route without images, spends one step.
type Budget struct {
	limit int
	spent int
}

// NewBudget returns a budget allowing limit steps.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit}
}

// Spend takes one step, or fails once the limit has been reached.
func (b *Budget) Spend() error {
	if b.spent >= b.limit {
		return fmt.Errorf("%w after %d area steps", ErrCallBudgetExceeded, b.spent)
	}
	b.spent++
	return nil
}

// Spent reports how many steps have been taken.
func (b *Budget) Spent() int { return b.spent }
