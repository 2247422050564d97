package cache

import (
	"sort"
	"sync"

	"github.com/NicoCorMar13/planing-familiar/internal/model"
)

// ShoppingCache holds the local view of the shopping list. Inserts may carry
// a locally assigned id; the server id takes over on the next reload, which
// replaces the cache wholesale.
type ShoppingCache struct {
	mu    sync.RWMutex
	items []model.ShoppingItem
}

func NewShoppingCache() *ShoppingCache {
	return &ShoppingCache{}
}

// Insert applies a local insert before the remote write resolves.
func (c *ShoppingCache) Insert(item model.ShoppingItem) {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
}

// Replace swaps the item with the given id for a confirmed server record,
// typically trading a local temporary id for the server-assigned one.
func (c *ShoppingCache) Replace(id string, item model.ShoppingItem) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i] = item
			return true
		}
	}
	return false
}

// SetChecked flips the checked flag of one item. Returns false when the id
// is unknown (e.g. the item was deleted by another device).
func (c *ShoppingCache) SetChecked(id string, checked bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Checked = checked
			return true
		}
	}
	return false
}

// RemoveChecked drops every checked item and returns how many were removed.
func (c *ShoppingCache) RemoveChecked() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.items[:0]
	removed := 0
	for _, item := range c.items {
		if item.Checked {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	c.items = kept
	return removed
}

// Items returns the list ordered newest first.
func (c *ShoppingCache) Items() []model.ShoppingItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.ShoppingItem, len(c.items))
	copy(out, c.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Reconcile replaces the cache with the authoritative list.
func (c *ShoppingCache) Reconcile(items []model.ShoppingItem) {
	c.mu.Lock()
	c.items = append([]model.ShoppingItem(nil), items...)
	c.mu.Unlock()
}
