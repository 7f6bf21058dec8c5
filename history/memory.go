package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pricetracker/models"
)

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    uint
	byProduct map[uint][]models.TrackedPrice
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byProduct: make(map[uint][]models.TrackedPrice),
		now:       time.Now,
	}
}

func (s *MemoryStore) Append(ctx context.Context, productID uint, price decimal.Decimal, at time.Time) (models.TrackedPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec := models.TrackedPrice{
		ID:        s.nextID,
		ProductID: productID,
		Price:     price.Round(2),
		TrackedAt: at,
		CreatedAt: s.now(),
	}
	rows := s.byProduct[productID]
	i := sort.Search(len(rows), func(i int) bool { return before(rec, rows[i]) })
	rows = append(rows, models.TrackedPrice{})
	copy(rows[i+1:], rows[i:])
	rows[i] = rec
	s.byProduct[productID] = rows
	return rec, nil
}

func (s *MemoryStore) Latest(ctx context.Context, productID uint) (*models.TrackedPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byProduct[productID]
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[len(rows)-1]
	return &rec, nil
}

func (s *MemoryStore) Before(ctx context.Context, productID uint, at time.Time) (*models.TrackedPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byProduct[productID]
	i := sort.Search(len(rows), func(i int) bool { return !rows[i].TrackedAt.Before(at) })
	if i == 0 {
		return nil, nil
	}
	rec := rows[i-1]
	return &rec, nil
}

func (s *MemoryStore) Within(ctx context.Context, productID uint, since time.Time) ([]models.TrackedPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byProduct[productID]
	i := sort.Search(len(rows), func(i int) bool { return !rows[i].TrackedAt.Before(since) })
	out := make([]models.TrackedPrice, len(rows)-i)
	copy(out, rows[i:])
	return out, nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]models.TrackedPrice, error) {
	s.mu.RLock()
	var all []models.TrackedPrice
	for _, rows := range s.byProduct {
		all = append(all, rows...)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return before(all[j], all[i]) })
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) History(ctx context.Context, productID uint, limit int) ([]models.TrackedPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byProduct[productID]
	n := len(rows)
	if limit >= 0 && n > limit {
		n = limit
	}
	out := make([]models.TrackedPrice, 0, n)
	for i := len(rows) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

func (s *MemoryStore) Summary(ctx context.Context, since time.Time) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{AveragePrice: decimal.Zero}
	total := decimal.Zero
	for _, rows := range s.byProduct {
		if len(rows) == 0 {
			continue
		}
		sum.Products++
		for _, r := range rows {
			sum.Records++
			total = total.Add(r.Price)
			if !r.TrackedAt.Before(since) {
				sum.RecentActivity++
			}
		}
	}
	if sum.Records > 0 {
		sum.AveragePrice = total.Div(decimal.NewFromInt(sum.Records))
	}
	return sum, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pid, rows := range s.byProduct {
		for i, r := range rows {
			if r.ID != id {
				continue
			}
			rows = append(rows[:i], rows[i+1:]...)
			if len(rows) == 0 {
				delete(s.byProduct, pid)
			} else {
				s.byProduct[pid] = rows
			}
			return nil
		}
	}
	return ErrNotFound
}
