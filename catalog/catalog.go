// Package catalog reads products owned by the catalog. The tracker never
// writes products.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"pricetracker/models"
)

var ErrNotFound = errors.New("product not found")

type Catalog interface {
	ListPublished(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id uint) (models.Product, error)
	// GetMany returns the products that exist among ids, ordered by id.
	GetMany(ctx context.Context, ids []uint) ([]models.Product, error)
}

type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

// ListPublished orders by name ignoring case, like MySQL's default collation.
func (c *GormCatalog) ListPublished(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := c.db.WithContext(ctx).
		Preload("Brand").
		Where("is_published = ?", true).
		Order("LOWER(name) ASC, id ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("list published products: %w", err)
	}
	return products, nil
}

func (c *GormCatalog) Get(ctx context.Context, id uint) (models.Product, error) {
	var product models.Product
	err := c.db.WithContext(ctx).Preload("Brand").First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return product, nil
}

func (c *GormCatalog) GetMany(ctx context.Context, ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := c.db.WithContext(ctx).
		Preload("Brand").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return products, nil
}

// MemoryCatalog serves a fixed product set.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[uint]models.Product
}

func NewMemoryCatalog(products ...models.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[uint]models.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Put adds or replaces a product.
func (c *MemoryCatalog) Put(p models.Product) {
	c.mu.Lock()
	c.products[p.ID] = p
	c.mu.Unlock()
}

func (c *MemoryCatalog) ListPublished(ctx context.Context) ([]models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Product
	for _, p := range c.products {
		if p.IsPublished {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *MemoryCatalog) Get(ctx context.Context, id uint) (models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	return p, nil
}

func (c *MemoryCatalog) GetMany(ctx context.Context, ids []uint) ([]models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Product
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
