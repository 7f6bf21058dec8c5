// Package tracking samples product prices and records the ones that changed.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricetracker/history"
	"pricetracker/logger"
	"pricetracker/models"
	"pricetracker/pricing"
)

const defaultWorkers = 4

type Coordinator struct {
	source   pricing.Source
	store    history.Store
	detector *pricing.Detector
	clock    pricing.Clock
	workers  int
	log      *logger.Entry
}

type Option func(*Coordinator)

func WithDetector(d *pricing.Detector) Option {
	return func(c *Coordinator) { c.detector = d }
}

func WithClock(clock pricing.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithWorkers bounds how many products TrackMany samples at once.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(l *logger.Log) Option {
	return func(c *Coordinator) { c.log = l.WithComponent("tracking") }
}

func New(source pricing.Source, store history.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:   source,
		store:    store,
		detector: pricing.NewDetector(pricing.DefaultEpsilon),
		clock:    pricing.SystemClock,
		workers:  defaultWorkers,
		log:      logger.GetLogger().WithComponent("tracking"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TrackOne samples product and appends a new history record when the price
// moved by at least the detector epsilon. Failures are reported in the
// result, never returned.
func (c *Coordinator) TrackOne(ctx context.Context, product models.Product) (res Result) {
	res = Result{ProductID: product.ID}
	defer func() {
		if r := recover(); r != nil {
			res = c.failed(product, fmt.Errorf("%w: panic while sampling: %v", pricing.ErrSourceUnavailable, r))
		}
	}()

	candidate, err := c.source.Sample(ctx, product)
	if err != nil {
		if !errors.Is(err, pricing.ErrSourceUnavailable) && !errors.Is(err, pricing.ErrInvalidPrice) {
			err = fmt.Errorf("%w: %v", pricing.ErrSourceUnavailable, err)
		}
		return c.failed(product, err)
	}

	last, err := c.store.Latest(ctx, product.ID)
	if err != nil {
		return c.failed(product, err)
	}

	decision, err := c.detector.Decide(candidate, last)
	if err != nil {
		return c.failed(product, err)
	}

	res.NewPrice = candidate
	res.PreviousPrice = decision.Previous

	if decision.Action == pricing.Skip {
		res.Outcome = Skipped
		res.Reason = decision.Reason
		c.log.WithFields(logger.Fields{
			"product_id": product.ID,
			"price":      candidate.StringFixed(2),
		}).Debug("price unchanged")
		return res
	}

	rec, err := c.store.Append(ctx, product.ID, decision.Price, c.clock())
	if err != nil {
		return c.failed(product, err)
	}

	res.Outcome = Persisted
	res.Tracked = true
	res.NewPrice = rec.Price
	res.SampleID = &rec.ID
	res.Delta = decimal.Zero
	if decision.Delta != nil {
		res.Delta = decision.Delta.Round(2)
	}
	if decision.DeltaPercent != nil {
		pct := decision.DeltaPercent.Round(2)
		res.DeltaPercent = &pct
	}

	c.log.WithFields(logger.Fields{
		"product_id": product.ID,
		"price":      rec.Price.StringFixed(2),
		"change":     res.Delta.StringFixed(2),
		"sample_id":  rec.ID,
	}).Info("price tracked")
	return res
}

func (c *Coordinator) failed(product models.Product, err error) Result {
	c.log.WithError(err).WithFields(logger.Fields{
		"product_id": product.ID,
		"error_kind": pricing.Kind(err),
	}).Error("failed to track price")
	return Result{
		ProductID: product.ID,
		Outcome:   Failed,
		ErrorKind: pricing.Kind(err),
		Error:     err.Error(),
		Err:       err,
	}
}

// TrackMany tracks every product on a bounded worker pool. One product
// failing never fails the batch; it is counted under Errors.
func (c *Coordinator) TrackMany(ctx context.Context, products []models.Product) BatchResult {
	start := time.Now()
	runID := uuid.NewString()

	var tracked, unchanged, failures atomic.Int64
	results := make([]Result, len(products))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := c.workers
	if workers > len(products) {
		workers = len(products)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := c.TrackOne(ctx, products[i])
				switch res.Outcome {
				case Persisted:
					tracked.Add(1)
				case Skipped:
					unchanged.Add(1)
				default:
					failures.Add(1)
				}
				results[i] = res
			}
		}()
	}
	for i := range products {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	batch := BatchResult{
		RunID:     runID,
		Total:     int64(len(products)),
		Tracked:   tracked.Load(),
		Unchanged: unchanged.Load(),
		Errors:    failures.Load(),
		Results:   results,
	}
	c.log.WithFields(logger.Fields{
		"run_id":      runID,
		"total":       batch.Total,
		"tracked":     batch.Tracked,
		"unchanged":   batch.Unchanged,
		"errors":      batch.Errors,
		"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
	}).Info("price tracking batch completed")
	return batch
}
