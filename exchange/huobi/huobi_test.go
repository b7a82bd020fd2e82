package huobi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quotelab/ratemux/exchange"
)

func TestHuobi_ImplementsAdapter(t *testing.T) {
	var _ exchange.Adapter = (*Huobi)(nil)
}

func TestHuobi_Code(t *testing.T) {
	h := New(Config{})
	if h.Code() != "huobi" {
		t.Errorf("expected 'huobi', got '%s'", h.Code())
	}
	if h.Name() != "Huobi" {
		t.Errorf("expected 'Huobi', got '%s'", h.Name())
	}
}

func TestHuobi_VenueSymbolsAreLowercase(t *testing.T) {
	h := New(Config{})

	if got := h.venue[exchange.NewPair("BTC", "USDT")]; got != "btcusdt" {
		t.Errorf("BTC/USDT venue symbol = %q, want btcusdt", got)
	}
	if got := h.venue[exchange.NewPair("ETH", "BTC")]; got != "ethbtc" {
		t.Errorf("ETH/BTC venue symbol = %q, want ethbtc", got)
	}
}

func TestHuobi_ProvidesUSDAliases(t *testing.T) {
	h := New(Config{})

	if !h.HasPair("BTC", "USD") {
		t.Error("expected the BTC/USD alias to be provided")
	}
	if got := h.venue[exchange.NewPair("BTC", "USD")]; got != "btcusdt" {
		t.Errorf("BTC/USD resolves to venue symbol %q, want btcusdt", got)
	}
	if h.HasPair("ETH", "USDC") {
		t.Error("Huobi has no USDC markets")
	}
}

func TestHuobi_GetPair(t *testing.T) {
	var gotSymbol string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("symbol")
		fmt.Fprint(w, `{"status":"ok","ts":1718000000000,"tick":{"close":64250.13,"open":63000.5,"high":64500.0,"low":62800.1,"bid":[64250.0,1.5],"ask":[64250.2,0.8]}}`)
	}))
	defer server.Close()

	h := NewWithBaseURL(server.URL)
	q, err := h.GetPair(context.Background(), "BTC", "USDT")
	if err != nil {
		t.Fatalf("GetPair failed: %v", err)
	}

	if gotSymbol != "btcusdt" {
		t.Errorf("requested symbol %q, want btcusdt", gotSymbol)
	}
	if q.Price.String() != "64250.13" {
		t.Errorf("price = %s, want 64250.13", q.Price)
	}
	if q.Source != "huobi" {
		t.Errorf("source = %q, want huobi", q.Source)
	}
	if q.ObservedAt.UnixMilli() != 1718000000000 {
		t.Errorf("ObservedAt = %v, want the reported timestamp", q.ObservedAt)
	}
}

func TestHuobi_GetPair_FloatPrecisionSurvives(t *testing.T) {
	// 0.073517 has no exact float64 representation; json.Number decoding
	// must keep the textual form instead of round-tripping to binary.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok","ts":1718000000000,"tick":{"close":0.073517}}`)
	}))
	defer server.Close()

	h := NewWithBaseURL(server.URL)
	q, err := h.GetPair(context.Background(), "ETH", "BTC")
	if err != nil {
		t.Fatalf("GetPair failed: %v", err)
	}
	if q.Price.String() != "0.073517" {
		t.Errorf("price = %s, want 0.073517 exactly", q.Price)
	}
}

func TestHuobi_GetPair_InvalidSymbolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","err-code":"invalid-parameter","err-msg":"invalid symbol"}`)
	}))
	defer server.Close()

	h := NewWithBaseURL(server.URL)
	_, err := h.GetPair(context.Background(), "BTC", "USDT")
	if !errors.Is(err, exchange.ErrPairNotFound) {
		t.Errorf("expected ErrPairNotFound, got %v", err)
	}
}

func TestHuobi_GetPair_GenericError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","err-code":"system-busy","err-msg":"system busy"}`)
	}))
	defer server.Close()

	h := NewWithBaseURL(server.URL)
	_, err := h.GetPair(context.Background(), "BTC", "USDT")
	if !errors.Is(err, exchange.ErrExchangeDown) {
		t.Errorf("expected ErrExchangeDown, got %v", err)
	}
}

func TestHuobi_GetPair_MissingTick(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok","ts":1718000000000}`)
	}))
	defer server.Close()

	h := NewWithBaseURL(server.URL)
	_, err := h.GetPair(context.Background(), "BTC", "USDT")
	if !errors.Is(err, exchange.ErrExchangeDown) {
		t.Errorf("expected ErrExchangeDown for a missing tick, got %v", err)
	}
}

func TestHuobi_GetPair_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	h := NewWithBaseURL(server.URL)
	_, err := h.GetPair(context.Background(), "BTC", "USDT")
	if !errors.Is(err, exchange.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestHuobi_GetPair_NotSupported(t *testing.T) {
	h := New(Config{})

	_, err := h.GetPair(context.Background(), "ABC", "XYZ")
	if !errors.Is(err, exchange.ErrPairNotFound) {
		t.Errorf("expected ErrPairNotFound, got %v", err)
	}
}

// Integration test - skip in CI
func TestHuobi_GetPair_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	h := New(Config{})
	q, err := h.GetPair(context.Background(), "BTC", "USDT")
	if err != nil {
		t.Fatalf("GetPair failed: %v", err)
	}

	if !q.Price.IsPositive() {
		t.Errorf("expected positive price, got %s", q.Price)
	}
	if q.Source != "huobi" {
		t.Errorf("expected source huobi, got %s", q.Source)
	}
}
