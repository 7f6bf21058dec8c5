package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackedPrice is one persisted price observation. Rows are append-only:
// corrections are written as new rows, never as updates.
type TrackedPrice struct {
	ID        uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID uint            `json:"product_id" gorm:"not null;index:tracked_prices_product_date_index,priority:1"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	TrackedAt time.Time       `json:"tracked_at" gorm:"not null;index:tracked_prices_product_date_index,priority:2;index:tracked_prices_date_index"`
	CreatedAt time.Time       `json:"created_at"`
}
