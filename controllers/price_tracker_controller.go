package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"pricetracker/analytics"
	"pricetracker/catalog"
	"pricetracker/history"
	"pricetracker/logger"
	"pricetracker/pricing"
	"pricetracker/tracking"
)

func init() {
	// API clients expect prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const defaultPriceListLimit = 50

type PriceTrackerController struct {
	Catalog   catalog.Catalog
	Store     history.Store
	Tracker   *tracking.Coordinator
	Analytics *analytics.Engine
	Source    pricing.Source
	Clock     pricing.Clock
	Log       *logger.Log
}

type productResponse struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	SKU       string          `json:"sku"`
	BrandName string          `json:"brand_name"`
}

type createPriceRequest struct {
	ProductID uint             `json:"product_id"`
	Price     *decimal.Decimal `json:"price"`
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func (pc *PriceTrackerController) serverError(c *fiber.Ctx, msg string, err error) error {
	pc.Log.WithComponent("api").WithError(err).WithFields(logger.Fields{
		"path": c.Path(),
	}).Error(msg)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// GetProducts lists published products with their base price.
func (pc *PriceTrackerController) GetProducts(c *fiber.Ctx) error {
	products, err := pc.Catalog.ListPublished(c.UserContext())
	if err != nil {
		return pc.serverError(c, "failed to load products", err)
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse{
			ID:        p.ID,
			Name:      p.Name,
			Price:     p.Price,
			SKU:       p.SKU,
			BrandName: p.BrandName(),
		})
	}
	return c.JSON(out)
}

// GetPrices lists the newest tracked prices across all products.
func (pc *PriceTrackerController) GetPrices(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPriceListLimit)
	if limit <= 0 {
		return badRequest(c, "limit must be positive")
	}
	prices, err := pc.Store.Recent(c.UserContext(), limit)
	if err != nil {
		return pc.serverError(c, "failed to load prices", err)
	}
	return c.JSON(prices)
}

func (pc *PriceTrackerController) GetProductHistory(c *fiber.Ctx) error {
	productID, err := paramID(c, "productId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	prices, err := pc.Analytics.History(c.UserContext(), productID, analytics.DefaultHistoryLimit)
	if err != nil {
		return pc.serverError(c, "failed to load price history", err)
	}
	return c.JSON(prices)
}

// CreatePrice records a manual sample for an existing product.
func (pc *PriceTrackerController) CreatePrice(c *fiber.Ctx) error {
	var req createPriceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ProductID == 0 {
		return badRequest(c, "product_id is required")
	}
	if req.Price == nil || req.Price.IsNegative() {
		return badRequest(c, "price must be a number greater than or equal to 0")
	}

	ctx := c.UserContext()
	if _, err := pc.Catalog.Get(ctx, req.ProductID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return badRequest(c, "product_id does not exist")
		}
		return pc.serverError(c, "failed to load product", err)
	}

	rec, err := pc.Store.Append(ctx, req.ProductID, *req.Price, pc.Clock())
	if err != nil {
		return pc.serverError(c, "failed to store price", err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// DeletePrice removes a sample. Samples are otherwise immutable; this is
// the administrative escape hatch.
func (pc *PriceTrackerController) DeletePrice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := pc.Store.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "price record not found"})
		}
		return pc.serverError(c, "failed to delete price record", err)
	}
	pc.Log.WithComponent("api").WithFields(logger.Fields{
		"tracked_price_id": id,
		"username":         c.Locals("username"),
	}).Info("price record deleted")
	return c.JSON(fiber.Map{"message": "Price record deleted successfully"})
}

func (pc *PriceTrackerController) GetStats(c *fiber.Ctx) error {
	stats, err := pc.Analytics.Statistics(c.UserContext())
	if err != nil {
		return pc.serverError(c, "failed to compute statistics", err)
	}
	return c.JSON(stats)
}

func (pc *PriceTrackerController) GetRecentChanges(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", analytics.DefaultRecentLimit)
	changes, err := pc.Analytics.RecentChanges(c.UserContext(), limit)
	if err != nil {
		return pc.serverError(c, "failed to load recent changes", err)
	}
	return c.JSON(changes)
}

func (pc *PriceTrackerController) GetProductTrend(c *fiber.Ctx) error {
	productID, err := paramID(c, "productId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	days := c.QueryInt("days", analytics.DefaultTrendDays)
	if days <= 0 {
		return badRequest(c, "days must be positive")
	}
	trend, err := pc.Analytics.Trend(c.UserContext(), productID, days)
	if err != nil {
		return pc.serverError(c, "failed to load price trend", err)
	}
	return c.JSON(trend)
}

// TrackAllPrices runs one batch over every published product.
func (pc *PriceTrackerController) TrackAllPrices(c *fiber.Ctx) error {
	ctx := c.UserContext()
	products, err := pc.Catalog.ListPublished(ctx)
	if err != nil {
		return pc.serverError(c, "failed to load products", err)
	}
	batch := pc.Tracker.TrackMany(ctx, products)
	return c.JSON(fiber.Map{
		"message": "Price tracking completed",
		"results": batch,
	})
}

func (pc *PriceTrackerController) TrackProductPrice(c *fiber.Ctx) error {
	productID, err := paramID(c, "productId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx := c.UserContext()
	product, err := pc.Catalog.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		return pc.serverError(c, "failed to load product", err)
	}

	res := pc.Tracker.TrackOne(ctx, product)
	return c.JSON(fiber.Map{
		"message": "Price tracking completed for " + product.Name,
		"result":  res,
	})
}

// FetchPrice asks the configured source for a price without recording it.
func (pc *PriceTrackerController) FetchPrice(c *fiber.Ctx) error {
	var req struct {
		ProductID uint `json:"product_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ProductID == 0 {
		return badRequest(c, "product_id is required")
	}
	ctx := c.UserContext()
	product, err := pc.Catalog.Get(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return badRequest(c, "product_id does not exist")
		}
		return pc.serverError(c, "failed to load product", err)
	}

	price, err := pc.Source.Sample(ctx, product)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":      "price source failed",
			"error_kind": pricing.Kind(err),
			"product_id": product.ID,
		})
	}
	return c.JSON(fiber.Map{
		"product_id": product.ID,
		"price":      price,
	})
}
