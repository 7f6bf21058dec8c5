package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pricetracker/models"
	"pricetracker/pricing"
)

// GormStore keeps tracked prices in the tracked_prices table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", pricing.ErrPersistence, op, err)
}

func (s *GormStore) Append(ctx context.Context, productID uint, price decimal.Decimal, at time.Time) (models.TrackedPrice, error) {
	rec := models.TrackedPrice{
		ProductID: productID,
		Price:     price.Round(2),
		TrackedAt: at,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.TrackedPrice{}, persistErr("append", err)
	}
	return rec, nil
}

func (s *GormStore) first(ctx context.Context, op string, query *gorm.DB) (*models.TrackedPrice, error) {
	var rows []models.TrackedPrice
	err := query.WithContext(ctx).
		Order("tracked_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, persistErr(op, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *GormStore) Latest(ctx context.Context, productID uint) (*models.TrackedPrice, error) {
	return s.first(ctx, "latest", s.db.Where("product_id = ?", productID))
}

func (s *GormStore) Before(ctx context.Context, productID uint, at time.Time) (*models.TrackedPrice, error) {
	return s.first(ctx, "before", s.db.Where("product_id = ? AND tracked_at < ?", productID, at))
}

func (s *GormStore) Within(ctx context.Context, productID uint, since time.Time) ([]models.TrackedPrice, error) {
	var rows []models.TrackedPrice
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND tracked_at >= ?", productID, since).
		Order("tracked_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, persistErr("within", err)
	}
	return rows, nil
}

func (s *GormStore) Recent(ctx context.Context, limit int) ([]models.TrackedPrice, error) {
	var rows []models.TrackedPrice
	err := s.db.WithContext(ctx).
		Order("tracked_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, persistErr("recent", err)
	}
	return rows, nil
}

func (s *GormStore) History(ctx context.Context, productID uint, limit int) ([]models.TrackedPrice, error) {
	var rows []models.TrackedPrice
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("tracked_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, persistErr("history", err)
	}
	return rows, nil
}

func (s *GormStore) Summary(ctx context.Context, since time.Time) (Summary, error) {
	var sum Summary
	db := s.db.WithContext(ctx).Model(&models.TrackedPrice{})

	if err := db.Session(&gorm.Session{}).Distinct("product_id").Count(&sum.Products).Error; err != nil {
		return Summary{}, persistErr("count products", err)
	}
	if err := db.Session(&gorm.Session{}).Count(&sum.Records).Error; err != nil {
		return Summary{}, persistErr("count records", err)
	}
	if err := db.Session(&gorm.Session{}).Where("tracked_at >= ?", since).Count(&sum.RecentActivity).Error; err != nil {
		return Summary{}, persistErr("count recent", err)
	}

	var avg decimal.NullDecimal
	if err := db.Session(&gorm.Session{}).Select("AVG(price)").Row().Scan(&avg); err != nil {
		return Summary{}, persistErr("average price", err)
	}
	sum.AveragePrice = decimal.Zero
	if avg.Valid {
		sum.AveragePrice = avg.Decimal
	}
	return sum, nil
}

func (s *GormStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.TrackedPrice{}, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return persistErr("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
