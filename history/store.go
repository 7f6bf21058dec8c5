// Package history keeps the append-only, per-product log of tracked prices.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"pricetracker/models"
)

// ErrNotFound is returned by Delete when no sample has the given id.
var ErrNotFound = errors.New("tracked price not found")

// Summary is the aggregate view over the whole store.
type Summary struct {
	Products       int64
	Records        int64
	AveragePrice   decimal.Decimal
	RecentActivity int64
}

// Store is the price history. Samples of one product are totally ordered by
// (TrackedAt, ID). Latest and Before return nil when nothing matches.
type Store interface {
	Append(ctx context.Context, productID uint, price decimal.Decimal, at time.Time) (models.TrackedPrice, error)
	Latest(ctx context.Context, productID uint) (*models.TrackedPrice, error)
	// Before returns the latest sample strictly earlier than at.
	Before(ctx context.Context, productID uint, at time.Time) (*models.TrackedPrice, error)
	// Within returns samples at or after since, oldest first.
	Within(ctx context.Context, productID uint, since time.Time) ([]models.TrackedPrice, error)
	// Recent returns the newest samples across all products, newest first.
	Recent(ctx context.Context, limit int) ([]models.TrackedPrice, error)
	// History returns the newest samples of one product, newest first.
	History(ctx context.Context, productID uint, limit int) ([]models.TrackedPrice, error)
	// Summary aggregates the store; RecentActivity counts samples at or after since.
	Summary(ctx context.Context, since time.Time) (Summary, error)
	Delete(ctx context.Context, id uint) error
}

func before(a, b models.TrackedPrice) bool {
	if a.TrackedAt.Equal(b.TrackedAt) {
		return a.ID < b.ID
	}
	return a.TrackedAt.Before(b.TrackedAt)
}
