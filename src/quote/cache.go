package quote

import (
	"sync"
	"time"

	"autoexit/src/model"
)

// Cache holds the latest quote per symbol. Many readers may run while the
// feed writes; a merge is published all at once so readers never see a
// half-applied message. Entries are never evicted.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]model.Quote
	now    func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		quotes: make(map[string]model.Quote),
		now:    time.Now,
	}
}

// Update merges the fields present in update into the entry for symbol,
// creating it when absent.
func (c *Cache) Update(symbol string, update model.Quote) {
	if symbol == "" || update.Empty() {
		return
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = c.now()
	}

	c.mu.Lock()
	c.quotes[symbol] = c.quotes[symbol].Merge(update)
	c.mu.Unlock()
}

// Get returns a copy of the quote for symbol. The returned pointers do not
// alias the cached entry.
func (c *Cache) Get(symbol string) (model.Quote, bool) {
	c.mu.RLock()
	q, ok := c.quotes[symbol]
	c.mu.RUnlock()
	if !ok {
		return model.Quote{}, false
	}
	return model.Quote{}.Merge(q), true
}

// LTP returns the last traded price for symbol when one has been seen.
func (c *Cache) LTP(symbol string) (float64, bool) {
	q, ok := c.Get(symbol)
	if !ok || q.LTP == nil {
		return 0, false
	}
	return *q.LTP, true
}

// Len is the number of symbols with a cached quote.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
