package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFeedSourceSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/W-7/price":
			w.Write([]byte(`{"price": "12.345"}`))
		case "/products/NUM/price":
			w.Write([]byte(`{"price": 99.5}`))
		case "/products/EMPTY/price":
			w.Write([]byte(`{}`))
		case "/products/BAD/price":
			w.Write([]byte(`not json`))
		case "/products/SLOW/price":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{"price": 1}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := NewFeedSource(FeedConfig{BaseURL: srv.URL + "/", Timeout: 50 * time.Millisecond}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	p := product("10")
	got, err := src.Sample(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(dec("12.35")) {
		t.Fatalf("Sample() = %s, want 12.35", got)
	}

	p.SKU = "NUM"
	got, err = src.Sample(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(dec("99.5")) {
		t.Fatalf("Sample() = %s, want 99.5", got)
	}

	for _, sku := range []string{"EMPTY", "BAD", "SLOW", "MISSING", ""} {
		p.SKU = sku
		if _, err := src.Sample(context.Background(), p); !errors.Is(err, ErrSourceUnavailable) {
			t.Errorf("sku %q: err = %v, want ErrSourceUnavailable", sku, err)
		}
	}
}

func TestNewFeedSourceRequiresURL(t *testing.T) {
	if _, err := NewFeedSource(FeedConfig{}, nil); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
