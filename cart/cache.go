package cart

import (
	"context"
	"sync"
	"time"

	models "retail-pos/model"
)

// ProductLoader is the slice of the store the cache needs.
type ProductLoader interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// ProductCache is the register's snapshot of the catalog, keyed by barcode.
// Scans are resolved here rather than against the database; the snapshot is
// refreshed after each checkout and on catalog writes.
type ProductCache struct {
	loader ProductLoader

	mu        sync.RWMutex
	byBarcode map[string]models.Product
	loadedAt  time.Time
}

func NewProductCache(loader ProductLoader) *ProductCache {
	return &ProductCache{loader: loader, byBarcode: make(map[string]models.Product)}
}

// Refresh reloads the snapshot. On error the previous snapshot is kept.
func (c *ProductCache) Refresh(ctx context.Context) error {
	ps, err := c.loader.ListProducts(ctx)
	if err != nil {
		return err
	}
	c.Replace(ps)
	return nil
}

// Replace swaps in a new snapshot.
func (c *ProductCache) Replace(ps []models.Product) {
	m := make(map[string]models.Product, len(ps))
	for _, p := range ps {
		if p.Barcode == "" {
			continue
		}
		m[p.Barcode] = p
	}
	c.mu.Lock()
	c.byBarcode = m
	c.loadedAt = time.Now()
	c.mu.Unlock()
}

func (c *ProductCache) ByBarcode(barcode string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byBarcode[barcode]
	return p, ok
}

func (c *ProductCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byBarcode)
}

func (c *ProductCache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
