package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pricetracker/catalog"
	"pricetracker/logger"
	"pricetracker/models"
	"pricetracker/tracking"
)

type blockingTracker struct {
	mu      sync.Mutex
	calls   int
	seen    []int
	release chan struct{}
}

func (b *blockingTracker) TrackMany(ctx context.Context, products []models.Product) tracking.BatchResult {
	b.mu.Lock()
	b.calls++
	b.seen = append(b.seen, len(products))
	b.mu.Unlock()
	if b.release != nil {
		<-b.release
	}
	return tracking.BatchResult{Total: int64(len(products)), Tracked: int64(len(products))}
}

func testCatalog() *catalog.MemoryCatalog {
	return catalog.NewMemoryCatalog(
		models.Product{ID: 1, Name: "a", Price: decimal.NewFromInt(1), IsPublished: true},
		models.Product{ID: 2, Name: "b", Price: decimal.NewFromInt(2), IsPublished: false},
		models.Product{ID: 3, Name: "c", Price: decimal.NewFromInt(3), IsPublished: true},
	)
}

func TestRunOnceTracksPublished(t *testing.T) {
	tr := &blockingTracker{}
	s := New(tr, testCatalog(), time.Hour, logger.Discard())

	batch, ran := s.RunOnce(context.Background())
	if !ran || batch.Total != 2 {
		t.Fatalf("RunOnce = %+v, %v", batch, ran)
	}
	if s.Runs() != 1 {
		t.Fatalf("Runs = %d", s.Runs())
	}
}

func TestRunOnceDoesNotOverlap(t *testing.T) {
	tr := &blockingTracker{release: make(chan struct{})}
	s := New(tr, testCatalog(), time.Hour, logger.Discard())

	done := make(chan struct{})
	go func() {
		s.RunOnce(context.Background())
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		tr.mu.Lock()
		calls := tr.calls
		tr.mu.Unlock()
		if calls == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first run never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, ran := s.RunOnce(context.Background()); ran {
		t.Fatal("overlapping run was not skipped")
	}
	close(tr.release)
	<-done

	if _, ran := s.RunOnce(context.Background()); !ran {
		t.Fatal("run after completion was skipped")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	tr := &blockingTracker{}
	s := New(tr, testCatalog(), 10*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(stopped)
	}()

	deadline := time.After(2 * time.Second)
	for s.Runs() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline", s.Runs())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStartWaitsForRunInFlight(t *testing.T) {
	tr := &blockingTracker{release: make(chan struct{})}
	s := New(tr, testCatalog(), 5*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(stopped)
	}()

	deadline := time.After(2 * time.Second)
	for {
		tr.mu.Lock()
		calls := tr.calls
		tr.mu.Unlock()
		if calls > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no run started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-stopped:
		t.Fatal("Start returned while a batch was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(tr.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after the batch finished")
	}
	if s.Runs() < 1 {
		t.Fatalf("Runs = %d, want the blocked batch counted", s.Runs())
	}
}
