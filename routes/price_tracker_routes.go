package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"pricetracker/controllers"
)

// Limits are requests per minute per client IP; zero disables the limiter.
type Limits struct {
	Read  int
	Track int
}

func rateLimit(max int) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	})
}

// RegisterPriceTrackerRoutes mounts the tracker API under /api/price-tracker.
// auth guards every route that writes history.
func RegisterPriceTrackerRoutes(app *fiber.App, pc *controllers.PriceTrackerController, auth fiber.Handler, limits Limits) {
	api := app.Group("/api/price-tracker")
	read := rateLimit(limits.Read)
	track := rateLimit(limits.Track)

	api.Get("/products", read, pc.GetProducts)
	api.Get("/prices", read, pc.GetPrices)
	api.Get("/prices/:productId", read, pc.GetProductHistory)
	api.Get("/stats", read, pc.GetStats)
	api.Get("/recent-changes", read, pc.GetRecentChanges)
	api.Get("/trend/:productId", read, pc.GetProductTrend)
	api.Post("/prices", read, auth, pc.CreatePrice)
	api.Delete("/prices/:id", read, auth, pc.DeletePrice)

	api.Post("/track-all", track, auth, pc.TrackAllPrices)
	api.Post("/track/:productId", track, auth, pc.TrackProductPrice)
	api.Post("/fetch-price", track, auth, pc.FetchPrice)
}

func RegisterAuthRoutes(app *fiber.App, ac *controllers.AuthController) {
	api := app.Group("/api")
	api.Post("/login", ac.Login)
}
