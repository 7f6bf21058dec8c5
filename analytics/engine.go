// Package analytics derives dashboard figures from the price history.
// Everything here is read-only.
package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pricetracker/catalog"
	"pricetracker/history"
	"pricetracker/logger"
	"pricetracker/models"
	"pricetracker/pricing"
)

const (
	RecentActivityWindow = 7 * 24 * time.Hour
	DefaultRecentLimit   = 10
	DefaultTrendDays     = 30
	DefaultHistoryLimit  = 100
)

type Trend string

const (
	Up      Trend = "up"
	Down    Trend = "down"
	Neutral Trend = "neutral"
)

type Statistics struct {
	TotalProducts  int64           `json:"totalProducts"`
	TotalRecords   int64           `json:"totalRecords"`
	AveragePrice   decimal.Decimal `json:"averagePrice"`
	RecentActivity int64           `json:"recentActivity"`
}

type Change struct {
	ID            uint             `json:"id"`
	ProductID     uint             `json:"product_id"`
	ProductName   string           `json:"product_name"`
	ProductSKU    string           `json:"product_sku"`
	Price         decimal.Decimal  `json:"price"`
	TrackedAt     time.Time        `json:"tracked_at"`
	ChangeAmount  *decimal.Decimal `json:"change_amount"`
	ChangePercent *decimal.Decimal `json:"change_percent"`
	Trend         Trend            `json:"trend"`
}

type TrendPoint struct {
	Date      string          `json:"date"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}

type Engine struct {
	store   history.Store
	catalog catalog.Catalog
	clock   pricing.Clock
	log     *logger.Entry
}

type Option func(*Engine)

func WithLogger(l *logger.Log) Option {
	return func(e *Engine) { e.log = l.WithComponent("analytics") }
}

// New builds an engine. cat may be nil, in which case recent changes carry
// placeholder product labels.
func New(store history.Store, cat catalog.Catalog, clock pricing.Clock, opts ...Option) *Engine {
	if clock == nil {
		clock = pricing.SystemClock
	}
	e := &Engine{
		store:   store,
		catalog: cat,
		clock:   clock,
		log:     logger.GetLogger().WithComponent("analytics"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Statistics(ctx context.Context) (Statistics, error) {
	sum, err := e.store.Summary(ctx, e.clock().Add(-RecentActivityWindow))
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{
		TotalProducts:  sum.Products,
		TotalRecords:   sum.Records,
		AveragePrice:   sum.AveragePrice.Round(2),
		RecentActivity: sum.RecentActivity,
	}, nil
}

// RecentChanges lists the newest samples, each compared with the sample of
// the same product that precedes it in time.
func (e *Engine) RecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	samples, err := e.store.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	names := e.productLabels(ctx, samples)
	changes := make([]Change, 0, len(samples))
	for _, s := range samples {
		baseline, err := e.store.Before(ctx, s.ProductID, s.TrackedAt)
		if err != nil {
			return nil, err
		}
		ch := Change{
			ID:          s.ID,
			ProductID:   s.ProductID,
			ProductName: "Unknown Product",
			ProductSKU:  "N/A",
			Price:       s.Price,
			TrackedAt:   s.TrackedAt,
			Trend:       Neutral,
		}
		if p, ok := names[s.ProductID]; ok {
			ch.ProductName = p.Name
			if p.SKU != "" {
				ch.ProductSKU = p.SKU
			}
		}
		if baseline != nil {
			amount := s.Price.Sub(baseline.Price).Round(2)
			ch.ChangeAmount = &amount
			if !baseline.Price.IsZero() {
				pct := s.Price.Sub(baseline.Price).Div(baseline.Price).Mul(decimal.NewFromInt(100)).Round(2)
				ch.ChangePercent = &pct
			}
			ch.Trend = trendOf(amount)
		}
		changes = append(changes, ch)
	}
	return changes, nil
}

func trendOf(amount decimal.Decimal) Trend {
	switch amount.Sign() {
	case 1:
		return Up
	case -1:
		return Down
	default:
		return Neutral
	}
}

func (e *Engine) productLabels(ctx context.Context, samples []models.TrackedPrice) map[uint]models.Product {
	out := make(map[uint]models.Product)
	if e.catalog == nil || len(samples) == 0 {
		return out
	}
	ids := make([]uint, 0, len(samples))
	for _, s := range samples {
		ids = append(ids, s.ProductID)
	}
	products, err := e.catalog.GetMany(ctx, ids)
	if err != nil {
		e.log.WithError(err).WithFields(logger.Fields{
			"products": len(ids),
		}).Warn("failed to load product labels, using placeholders")
		return out
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out
}

// Trend returns the product's prices over the last days, oldest first.
func (e *Engine) Trend(ctx context.Context, productID uint, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}
	since := e.clock().AddDate(0, 0, -days)
	samples, err := e.store.Within(ctx, productID, since)
	if err != nil {
		return nil, err
	}
	points := make([]TrendPoint, 0, len(samples))
	for _, s := range samples {
		points = append(points, TrendPoint{
			Date:      s.TrackedAt.Format("2006-01-02"),
			Price:     s.Price,
			Timestamp: s.TrackedAt.Unix(),
		})
	}
	return points, nil
}

// History returns the product's newest samples, newest first.
func (e *Engine) History(ctx context.Context, productID uint, limit int) ([]models.TrackedPrice, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return e.store.History(ctx, productID, limit)
}
