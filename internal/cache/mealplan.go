package cache

import (
	"sync"

	"github.com/NicoCorMar13/planing-familiar/internal/model"
)

// MealPlanCache holds the local view of the weekly plan. Local edits apply
// immediately; the next authoritative reload replaces everything except days
// the user is mid-edit on.
type MealPlanCache struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMealPlanCache() *MealPlanCache {
	return &MealPlanCache{values: make(map[string]string)}
}

// SetDay applies a local mutation before the remote write resolves.
func (c *MealPlanCache) SetDay(day, value string) {
	c.mu.Lock()
	c.values[day] = value
	c.mu.Unlock()
}

// Day returns the current value for a day.
func (c *MealPlanCache) Day(day string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[day]
}

// Entries returns all seven days in display order.
func (c *MealPlanCache) Entries() []model.MealPlanEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]model.MealPlanEntry, 0, len(model.Days))
	for _, day := range model.Days {
		entries = append(entries, model.MealPlanEntry{Day: day, Value: c.values[day]})
	}
	return entries
}

// Reconcile replaces the cache with the authoritative entries, skipping any
// day for which editing reports true: a reload must not clobber text the
// user is still typing. The skipped day catches up on the next reload.
func (c *MealPlanCache) Reconcile(entries []model.MealPlanEntry, editing func(day string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		if editing != nil && editing(e.Day) {
			continue
		}
		c.values[e.Day] = e.Value
	}
}
