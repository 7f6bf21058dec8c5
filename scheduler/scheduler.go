// Package scheduler triggers tracking of every published product on a fixed
// interval.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pricetracker/catalog"
	"pricetracker/logger"
	"pricetracker/models"
	"pricetracker/tracking"
)

// Tracker is the part of tracking.Coordinator the scheduler drives.
type Tracker interface {
	TrackMany(ctx context.Context, products []models.Product) tracking.BatchResult
}

type Scheduler struct {
	tracker  Tracker
	catalog  catalog.Catalog
	interval time.Duration
	log      *logger.Entry

	running  atomic.Bool
	runs     atomic.Int64
	inFlight sync.WaitGroup
}

func New(tracker Tracker, cat catalog.Catalog, interval time.Duration, log *logger.Log) *Scheduler {
	return &Scheduler{
		tracker:  tracker,
		catalog:  cat,
		interval: interval,
		log:      log.WithComponent("scheduler"),
	}
}

// Runs reports how many batches have completed.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// RunOnce tracks all published products unless a run is already in flight,
// in which case it returns false without doing anything.
func (s *Scheduler) RunOnce(ctx context.Context) (tracking.BatchResult, bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous tracking run still in progress, skipping")
		return tracking.BatchResult{}, false
	}
	defer s.running.Store(false)

	products, err := s.catalog.ListPublished(ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to list published products")
		return tracking.BatchResult{}, false
	}
	batch := s.tracker.TrackMany(ctx, products)
	s.runs.Add(1)
	return batch, true
}

// Start runs a batch every interval until ctx is cancelled. Ticks that land
// while a batch is still running are dropped. Start returns once the batch
// in flight at cancellation has finished.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithFields(logger.Fields{"interval": s.interval.String()}).Info("scheduled price tracking started")
	for {
		select {
		case <-ctx.Done():
			s.inFlight.Wait()
			s.log.Info("scheduled price tracking stopped")
			return
		case <-ticker.C:
			s.inFlight.Add(1)
			go func() {
				defer s.inFlight.Done()
				s.RunOnce(ctx)
			}()
		}
	}
}
