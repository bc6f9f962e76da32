package cache

import (
	"context"

	"github.com/emrgen/revisor/store"
)

// PublishedCache is a read cache for published projections. Misses return
// (nil, nil); the database stays authoritative.
type PublishedCache interface {
	// Get retrieves a cached published row.
	Get(ctx context.Context, base string, id any) (store.Row, error)
	// Set caches a published row.
	Set(ctx context.Context, base string, id any, row store.Row) error
	// Delete evicts a published row.
	Delete(ctx context.Context, base string, id any) error
}
