package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pricetracker/history"
	"pricetracker/models"
	"pricetracker/pricing"
)

// SeedDays is how much synthetic history a freshly seeded product gets.
const SeedDays = 30

type seedProduct struct {
	Name, Slug, Description, SKU, Brand string
	Price                               int64
	Quantity                            int
}

var seedBrands = []models.Brand{
	{Name: "Apple", WebsiteURL: "https://apple.com", Industry: "Technology", IsPublished: true},
	{Name: "Samsung", WebsiteURL: "https://samsung.com", Industry: "Technology", IsPublished: true},
	{Name: "Nike", WebsiteURL: "https://nike.com", Industry: "Apparel", IsPublished: true},
	{Name: "Sony", WebsiteURL: "https://sony.com", Industry: "Technology", IsPublished: true},
}

var seedProducts = []seedProduct{
	{"iPhone 15 Pro", "iphone-15-pro", "Latest iPhone with Pro features", "IPH15PRO", "Apple", 999, 50},
	{"Samsung Galaxy S24", "samsung-galaxy-s24", "Premium Android smartphone", "SGS24", "Samsung", 849, 30},
	{"Nike Air Jordan 1", "nike-air-jordan-1", "Classic basketball sneakers", "NAJ1", "Nike", 170, 100},
	{"Sony WH-1000XM5", "sony-wh-1000xm5", "Noise-canceling wireless headphones", "SWH1000XM5", "Sony", 399, 25},
	{"iPad Pro 12.9\"", "ipad-pro-129", "Professional tablet with M2 chip", "IPADPRO129", "Apple", 1099, 20},
}

// Seeder fills an empty database with demo brands, products and a month of
// price history.
type Seeder struct {
	DB    *gorm.DB
	Store history.Store
	Rand  pricing.Rand
	Clock pricing.Clock
}

// Seed is safe to run repeatedly: existing brands and products are kept and
// history is only generated for products that have none.
func (s *Seeder) Seed(ctx context.Context) (int, error) {
	db := s.DB.WithContext(ctx)
	brandIDs := make(map[string]uint, len(seedBrands))
	for _, b := range seedBrands {
		var brand models.Brand
		if err := db.Where(models.Brand{Name: b.Name}).Attrs(b).FirstOrCreate(&brand).Error; err != nil {
			return 0, fmt.Errorf("seed brand %s: %w", b.Name, err)
		}
		brandIDs[b.Name] = brand.ID
	}

	created := 0
	for _, sp := range seedProducts {
		brandID := brandIDs[sp.Brand]
		attrs := models.Product{
			Name:        sp.Name,
			Slug:        sp.Slug,
			Description: sp.Description,
			SKU:         sp.SKU,
			Price:       decimal.NewFromInt(sp.Price),
			Quantity:    sp.Quantity,
			IsPublished: true,
			BrandID:     &brandID,
		}
		var product models.Product
		if err := db.Where(models.Product{SKU: sp.SKU}).Attrs(attrs).FirstOrCreate(&product).Error; err != nil {
			return created, fmt.Errorf("seed product %s: %w", sp.SKU, err)
		}

		last, err := s.Store.Latest(ctx, product.ID)
		if err != nil {
			return created, err
		}
		if last != nil {
			continue
		}
		n, err := s.seedHistory(ctx, product)
		created += n
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

func (s *Seeder) seedHistory(ctx context.Context, product models.Product) (int, error) {
	base := product.Price
	now := s.Clock()
	day := now.AddDate(0, 0, -SeedDays).Truncate(24 * time.Hour)

	created := 0
	for i := 0; i < SeedDays; i++ {
		at := day.AddDate(0, 0, i).Add(time.Duration(6+s.Rand.Intn(13)) * time.Hour)
		if _, err := s.Store.Append(ctx, product.ID, SeedPrice(base, product.SKU, i, s.Rand), at); err != nil {
			return created, err
		}
		created++
	}
	if _, err := s.Store.Append(ctx, product.ID, base, now); err != nil {
		return created, err
	}
	return created + 1, nil
}

// SeedPrice produces day i of a synthetic series around base: a ±15% swing
// floored at 70% of base, a steady decline for IPH15PRO, extra upward noise
// for NAJ1, and an overall 50–150% band.
func SeedPrice(base decimal.Decimal, sku string, i int, rnd pricing.Rand) decimal.Decimal {
	variation := decimal.New(int64(rnd.Intn(31)-15), -2)
	price := decimal.Max(base.Add(base.Mul(variation)), base.Mul(decimal.NewFromFloat(0.7)))

	switch sku {
	case "IPH15PRO":
		price = price.Add(decimal.NewFromInt(int64(-2 * i)))
	case "NAJ1":
		price = price.Add(decimal.NewFromInt(int64(rnd.Intn(31) - 10)))
	}
	return pricing.Clamp(price, base, pricing.Bounds{Floor: 0.5, Ceil: 1.5})
}

// EnsureAdmin creates the admin user with password unless it already exists.
func EnsureAdmin(ctx context.Context, db *gorm.DB, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	var existing models.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("look up admin: %w", err)
	}

	user := models.User{Username: username}
	if err := user.SetPassword(password); err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
