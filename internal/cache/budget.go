package cache

import (
	"sync"

	"github.com/NicoCorMar13/planing-familiar/internal/model"
)

// BudgetCache holds the local view of one month's budget and expenses.
type BudgetCache struct {
	mu         sync.RWMutex
	monthKey   string
	initial    float64
	hasInitial bool
	expenses   []model.Expense
}

func NewBudgetCache(monthKey string) *BudgetCache {
	return &BudgetCache{monthKey: monthKey}
}

// MonthKey returns the month this cache tracks.
func (c *BudgetCache) MonthKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monthKey
}

// SetInitial applies a local budget mutation.
func (c *BudgetCache) SetInitial(amount float64) {
	c.mu.Lock()
	c.initial = amount
	c.hasInitial = true
	c.mu.Unlock()
}

// Initial returns the budget amount and whether one has been set.
func (c *BudgetCache) Initial() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initial, c.hasInitial
}

// AddExpense applies a local expense insert.
func (c *BudgetCache) AddExpense(e model.Expense) {
	c.mu.Lock()
	c.expenses = append(c.expenses, e)
	c.mu.Unlock()
}

// ReplaceExpense swaps the expense with the given id for a confirmed server
// record.
func (c *BudgetCache) ReplaceExpense(id string, e model.Expense) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.expenses {
		if c.expenses[i].ID == id {
			c.expenses[i] = e
			return true
		}
	}
	return false
}

// RemoveExpense drops one expense by id.
func (c *BudgetCache) RemoveExpense(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.expenses {
		if c.expenses[i].ID == id {
			c.expenses = append(c.expenses[:i], c.expenses[i+1:]...)
			return true
		}
	}
	return false
}

// ClearExpenses drops every expense for the month.
func (c *BudgetCache) ClearExpenses() {
	c.mu.Lock()
	c.expenses = nil
	c.mu.Unlock()
}

// Expenses returns a copy of the month's expenses.
func (c *BudgetCache) Expenses() []model.Expense {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Expense, len(c.expenses))
	copy(out, c.expenses)
	return out
}

// Spent sums the month's expenses.
func (c *BudgetCache) Spent() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total float64
	for _, e := range c.expenses {
		total += e.Amount
	}
	return total
}

// Remaining returns initial minus spent.
func (c *BudgetCache) Remaining() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	remaining := c.initial
	for _, e := range c.expenses {
		remaining -= e.Amount
	}
	return remaining
}

// RemainingFormatted renders the remaining budget as e.g. "50.00 €".
func (c *BudgetCache) RemainingFormatted() string {
	return model.FormatEUR(c.Remaining())
}

// ReconcileMonth replaces the budget row from an authoritative read. A nil
// month means the household has not set a budget for this month.
func (c *BudgetCache) ReconcileMonth(m *model.BudgetMonth) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m == nil {
		c.initial = 0
		c.hasInitial = false
		return
	}
	c.initial = m.Initial
	c.hasInitial = true
}

// ReconcileExpenses replaces the expense list wholesale.
func (c *BudgetCache) ReconcileExpenses(expenses []model.Expense) {
	c.mu.Lock()
	c.expenses = append([]model.Expense(nil), expenses...)
	c.mu.Unlock()
}
