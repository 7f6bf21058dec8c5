package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pricetracker/analytics"
	"pricetracker/catalog"
	"pricetracker/controllers"
	"pricetracker/database"
	"pricetracker/history"
	"pricetracker/logger"
	"pricetracker/middleware"
	"pricetracker/models"
	"pricetracker/pricing"
	"pricetracker/tracking"
)

var secret = []byte("routes-test")

// midRand always draws the middle of the range, so the simulated source
// returns the base price.
type midRand struct{}

func (midRand) Intn(n int) int { return n / 2 }

type fixture struct {
	app   *fiber.App
	store *history.MemoryStore
	cat   *catalog.MemoryCatalog
	token string
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()
	log := logger.Discard()
	cat := catalog.NewMemoryCatalog(
		models.Product{ID: 1, Name: "iPhone 15 Pro", SKU: "IPH15PRO", Price: decimal.NewFromInt(999), IsPublished: true},
		models.Product{ID: 2, Name: "Nike Air Jordan 1", SKU: "NAJ1", Price: decimal.NewFromInt(170), IsPublished: true},
		models.Product{ID: 3, Name: "Hidden", SKU: "HID", Price: decimal.NewFromInt(5), IsPublished: false},
	)
	store := history.NewMemoryStore()
	source, err := pricing.NewSimulatedSource(pricing.DefaultBounds, midRand{})
	if err != nil {
		t.Fatal(err)
	}

	pc := &controllers.PriceTrackerController{
		Catalog:   cat,
		Store:     store,
		Tracker:   tracking.New(source, store, tracking.WithLogger(log)),
		Analytics: analytics.New(store, cat, pricing.SystemClock, analytics.WithLogger(log)),
		Source:    source,
		Clock:     pricing.SystemClock,
		Log:       log,
	}
	app := fiber.New()
	RegisterPriceTrackerRoutes(app, pc, middleware.JWTAdmin(secret, log), limits)

	token, err := middleware.IssueToken(secret, "admin", time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{app: app, store: store, cat: cat, token: token}
}

func (f *fixture) do(t *testing.T, method, path, body string, auth bool) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func decode(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func TestGetProducts(t *testing.T) {
	f := newFixture(t, Limits{})
	status, body := f.do(t, http.MethodGet, "/api/price-tracker/products", "", false)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	var products []map[string]interface{}
	decode(t, body, &products)
	if len(products) != 2 || products[0]["name"] != "iPhone 15 Pro" || products[0]["price"].(float64) != 999 {
		t.Fatalf("products = %v", products)
	}
	if products[0]["brand_name"] != "No Brand" {
		t.Fatalf("brand_name = %v", products[0]["brand_name"])
	}
}

func TestTrackProductFlow(t *testing.T) {
	f := newFixture(t, Limits{})

	status, _ := f.do(t, http.MethodPost, "/api/price-tracker/track/1", "", false)
	if status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", status)
	}

	status, body := f.do(t, http.MethodPost, "/api/price-tracker/track/1", "", true)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	var first struct {
		Message string `json:"message"`
		Result  struct {
			Tracked       bool     `json:"tracked"`
			PreviousPrice *float64 `json:"previous_price"`
			NewPrice      float64  `json:"new_price"`
			Delta         float64  `json:"delta"`
			DeltaPercent  *float64 `json:"delta_percent"`
			SampleID      *uint    `json:"sample_id"`
		} `json:"result"`
	}
	decode(t, body, &first)
	if !first.Result.Tracked || first.Result.PreviousPrice != nil || first.Result.NewPrice != 999 || first.Result.SampleID == nil {
		t.Fatalf("first track = %s", body)
	}
	if first.Message != "Price tracking completed for iPhone 15 Pro" {
		t.Fatalf("message = %q", first.Message)
	}

	status, body = f.do(t, http.MethodPost, "/api/price-tracker/track/1", "", true)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	decode(t, body, &first)
	if first.Result.Tracked {
		t.Fatalf("unchanged price tracked again: %s", body)
	}

	status, _ = f.do(t, http.MethodPost, "/api/price-tracker/track/42", "", true)
	if status != http.StatusNotFound {
		t.Fatalf("unknown product status = %d", status)
	}
	status, _ = f.do(t, http.MethodPost, "/api/price-tracker/track/abc", "", true)
	if status != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", status)
	}
}

func TestTrackAll(t *testing.T) {
	f := newFixture(t, Limits{})
	status, body := f.do(t, http.MethodPost, "/api/price-tracker/track-all", "", true)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	var resp struct {
		Results tracking.BatchResult `json:"results"`
	}
	decode(t, body, &resp)
	if resp.Results.Total != 2 || resp.Results.Tracked != 2 || resp.Results.Errors != 0 {
		t.Fatalf("batch = %s", body)
	}

	status, body = f.do(t, http.MethodGet, "/api/price-tracker/stats", "", false)
	if status != http.StatusOK {
		t.Fatalf("stats status = %d", status)
	}
	var stats map[string]float64
	decode(t, body, &stats)
	if stats["totalProducts"] != 2 || stats["totalRecords"] != 2 || stats["averagePrice"] != 584.5 || stats["recentActivity"] != 2 {
		t.Fatalf("stats = %s", body)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	f := newFixture(t, Limits{})
	ctx := context.Background()
	now := time.Now().UTC()
	f.store.Append(ctx, 1, decimal.RequireFromString("1000.00"), now.Add(-48*time.Hour))
	f.store.Append(ctx, 1, decimal.RequireFromString("950.00"), now.Add(-24*time.Hour))
	f.store.Append(ctx, 2, decimal.RequireFromString("170.00"), now.Add(-40*24*time.Hour))

	status, body := f.do(t, http.MethodGet, "/api/price-tracker/recent-changes?limit=2", "", false)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	var changes []map[string]interface{}
	decode(t, body, &changes)
	if len(changes) != 2 {
		t.Fatalf("changes = %s", body)
	}
	if changes[0]["trend"] != "down" || changes[0]["change_amount"].(float64) != -50 || changes[0]["change_percent"].(float64) != -5 {
		t.Fatalf("first change = %v", changes[0])
	}
	if changes[1]["trend"] != "neutral" || changes[1]["change_amount"] != nil {
		t.Fatalf("second change = %v", changes[1])
	}

	status, body = f.do(t, http.MethodGet, "/api/price-tracker/trend/2?days=30", "", false)
	if status != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("trend = %d %s", status, body)
	}
	status, body = f.do(t, http.MethodGet, "/api/price-tracker/trend/1", "", false)
	var points []map[string]interface{}
	decode(t, body, &points)
	if status != http.StatusOK || len(points) != 2 || points[0]["price"].(float64) != 1000 {
		t.Fatalf("trend = %d %s", status, body)
	}

	status, body = f.do(t, http.MethodGet, "/api/price-tracker/prices/1", "", false)
	var hist []map[string]interface{}
	decode(t, body, &hist)
	if status != http.StatusOK || len(hist) != 2 || hist[0]["price"].(float64) != 950 {
		t.Fatalf("history = %d %s", status, body)
	}

	status, body = f.do(t, http.MethodGet, "/api/price-tracker/prices?limit=1", "", false)
	var recent []map[string]interface{}
	decode(t, body, &recent)
	if status != http.StatusOK || len(recent) != 1 {
		t.Fatalf("prices = %d %s", status, body)
	}
}

func TestManualPriceAndDelete(t *testing.T) {
	f := newFixture(t, Limits{})

	tests := []struct {
		body string
		want int
	}{
		{`{"product_id": 1, "price": 12.5}`, http.StatusCreated},
		{`{"product_id": 1, "price": "13.75"}`, http.StatusCreated},
		{`{"product_id": 1, "price": -1}`, http.StatusBadRequest},
		{`{"product_id": 1}`, http.StatusBadRequest},
		{`{"price": 3}`, http.StatusBadRequest},
		{`{"product_id": 99, "price": 3}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		status, body := f.do(t, http.MethodPost, "/api/price-tracker/prices", tt.body, true)
		if status != tt.want {
			t.Fatalf("POST %s = %d (%s), want %d", tt.body, status, body, tt.want)
		}
	}

	latest, _ := f.store.Latest(context.Background(), 1)
	if latest == nil || !latest.Price.Equal(decimal.RequireFromString("13.75")) {
		t.Fatalf("latest = %+v", latest)
	}

	status, _ := f.do(t, http.MethodDelete, "/api/price-tracker/prices/1", "", false)
	if status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated delete = %d", status)
	}
	status, _ = f.do(t, http.MethodDelete, "/api/price-tracker/prices/1", "", true)
	if status != http.StatusOK {
		t.Fatalf("delete = %d", status)
	}
	status, _ = f.do(t, http.MethodDelete, "/api/price-tracker/prices/1", "", true)
	if status != http.StatusNotFound {
		t.Fatalf("second delete = %d", status)
	}
}

func TestFetchPriceDoesNotPersist(t *testing.T) {
	f := newFixture(t, Limits{})
	status, body := f.do(t, http.MethodPost, "/api/price-tracker/fetch-price", `{"product_id": 2}`, true)
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	var resp map[string]float64
	decode(t, body, &resp)
	if resp["price"] != 170 {
		t.Fatalf("fetch = %s", body)
	}
	if last, _ := f.store.Latest(context.Background(), 2); last != nil {
		t.Fatalf("fetch-price stored %+v", last)
	}
}

func TestTrackRateLimit(t *testing.T) {
	f := newFixture(t, Limits{Read: 100, Track: 2})
	for i := 0; i < 2; i++ {
		if status, body := f.do(t, http.MethodPost, "/api/price-tracker/track/1", "", true); status != http.StatusOK {
			t.Fatalf("request %d = %d: %s", i, status, body)
		}
	}
	if status, _ := f.do(t, http.MethodPost, "/api/price-tracker/track/1", "", true); status != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", status)
	}
	if status, _ := f.do(t, http.MethodGet, "/api/price-tracker/stats", "", false); status != http.StatusOK {
		t.Fatalf("read route limited by track limit: %d", status)
	}
}

func TestLogin(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	if _, err := database.EnsureAdmin(context.Background(), db, "admin", "hunter2"); err != nil {
		t.Fatal(err)
	}

	app := fiber.New()
	RegisterAuthRoutes(app, &controllers.AuthController{
		DB:       db,
		Secret:   secret,
		TokenTTL: time.Hour,
		Clock:    pricing.SystemClock,
		Log:      logger.Discard(),
	})

	login := func(body string) (int, map[string]string) {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		var out map[string]string
		json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	status, out := login(`{"username": "admin", "password": "hunter2"}`)
	if status != http.StatusOK || out["token"] == "" || out["user"] != "admin" {
		t.Fatalf("login = %d %v", status, out)
	}

	var admin models.User
	if err := db.Where("username = ?", "admin").First(&admin).Error; err != nil {
		t.Fatal(err)
	}
	if admin.LastLoginAt == nil {
		t.Fatal("login time not recorded")
	}

	guarded := fiber.New()
	guarded.Get("/", middleware.JWTAdmin(secret, logger.Discard()), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+out["token"])
	resp, err := guarded.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("issued token rejected: %v %v", resp, err)
	}

	for _, body := range []string{
		`{"username": "admin", "password": "wrong"}`,
		`{"username": "nobody", "password": "hunter2"}`,
	} {
		if status, _ := login(body); status != http.StatusUnauthorized {
			t.Fatalf("login %s = %d", body, status)
		}
	}
}
