package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Brand struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"uniqueIndex;size:191;not null"`
	WebsiteURL  string         `json:"website_url"`
	Industry    string         `json:"industry"`
	IsPublished bool           `json:"is_published"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Product is owned by the catalog. The tracker only reads ID, Price and
// IsPublished; Price is the base price the simulated source fluctuates around.
type Product struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"not null"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	SKU         string          `json:"sku" gorm:"column:sku;uniqueIndex;size:64"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Quantity    int             `json:"quantity"`
	IsPublished bool            `json:"is_published" gorm:"index"`
	BrandID     *uint           `json:"brand_id"`
	Brand       *Brand          `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// BrandName returns the brand label shown next to a product.
func (p Product) BrandName() string {
	if p.Brand == nil {
		return "No Brand"
	}
	return p.Brand.Name
}
