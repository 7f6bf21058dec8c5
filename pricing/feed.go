package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"pricetracker/models"
)

// FeedConfig points a FeedSource at an HTTP price feed.
type FeedConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
}

// FeedSource fetches prices from <BaseURL>/products/<sku>/price. The feed
// answers {"price": "12.34"} or {"price": 12.34}.
type FeedSource struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
}

func NewFeedSource(cfg FeedConfig, client *http.Client) (*FeedSource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("feed source requires a base url")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid feed base url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &FeedSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client:  client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}, nil
}

func (f *FeedSource) Sample(ctx context.Context, product models.Product) (decimal.Decimal, error) {
	if product.SKU == "" {
		return decimal.Zero, fmt.Errorf("%w: product %d has no sku", ErrSourceUnavailable, product.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("%w: rate limit wait: %v", ErrSourceUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/products/%s/price", f.baseURL, url.PathEscape(product.SKU))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: build request: %v", ErrSourceUnavailable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: fetch %s: %v", ErrSourceUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return decimal.Zero, fmt.Errorf("%w: %s returned %s", ErrSourceUnavailable, endpoint, resp.Status)
	}

	var body struct {
		Price *decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode response from %s: %v", ErrSourceUnavailable, endpoint, err)
	}
	if body.Price == nil {
		return decimal.Zero, fmt.Errorf("%w: response from %s has no price", ErrSourceUnavailable, endpoint)
	}
	if body.Price.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: feed returned %s for product %d", ErrInvalidPrice, body.Price, product.ID)
	}
	return body.Price.Round(2), nil
}
