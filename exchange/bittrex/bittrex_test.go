package bittrex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quotelab/ratemux/exchange"
)

func TestBittrex_ImplementsAdapter(t *testing.T) {
	var _ exchange.Adapter = (*Bittrex)(nil)
}

func TestBittrex_Code(t *testing.T) {
	b := New(Config{})
	if b.Code() != "bittrex" {
		t.Errorf("expected 'bittrex', got '%s'", b.Code())
	}
	if b.Name() != "Bittrex" {
		t.Errorf("expected 'Bittrex', got '%s'", b.Name())
	}
}

func TestBittrex_ProvidesNativeUSD(t *testing.T) {
	b := New(Config{})

	if !b.HasPair("BTC", "USD") {
		t.Error("expected BTC/USD to be provided natively")
	}
	if !b.HasPair("ETH", "BTC") {
		t.Error("expected ETH/BTC to be provided")
	}
	if b.HasPair("USD", "BTC") {
		t.Error("pairs are directional, USD/BTC must not be provided")
	}
}

func TestBittrex_GetPair(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"symbol":"BTC-USD","lastTradeRate":"64250.123","bidRate":"64250.000","askRate":"64250.250"}`)
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	q, err := b.GetPair(context.Background(), "BTC", "USD")
	if err != nil {
		t.Fatalf("GetPair failed: %v", err)
	}

	if gotPath != "/v3/markets/BTC-USD/ticker" {
		t.Errorf("requested path %q, want /v3/markets/BTC-USD/ticker", gotPath)
	}
	if q.Price.String() != "64250.123" {
		t.Errorf("price = %s, want 64250.123", q.Price)
	}
	if q.Source != "bittrex" {
		t.Errorf("source = %q, want bittrex", q.Source)
	}
}

func TestBittrex_GetPair_MarketDoesNotExist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":"MARKET_DOES_NOT_EXIST"}`)
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	_, err := b.GetPair(context.Background(), "BTC", "USD")
	if !errors.Is(err, exchange.ErrPairNotFound) {
		t.Errorf("expected ErrPairNotFound, got %v", err)
	}
}

func TestBittrex_GetPair_PlainNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	_, err := b.GetPair(context.Background(), "BTC", "USD")
	if !errors.Is(err, exchange.ErrExchangeDown) {
		t.Errorf("expected ErrExchangeDown for a bare 404, got %v", err)
	}
}

func TestBittrex_GetPair_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	b := NewWithBaseURL(server.URL)
	_, err := b.GetPair(context.Background(), "BTC", "USD")
	if !errors.Is(err, exchange.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestBittrex_GetPair_NotSupported(t *testing.T) {
	b := New(Config{})

	_, err := b.GetPair(context.Background(), "ABC", "XYZ")
	if !errors.Is(err, exchange.ErrPairNotFound) {
		t.Errorf("expected ErrPairNotFound, got %v", err)
	}
}

// Integration test - skip in CI
func TestBittrex_GetPair_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	b := New(Config{})
	q, err := b.GetPair(context.Background(), "BTC", "USD")
	if err != nil {
		t.Fatalf("GetPair failed: %v", err)
	}

	if !q.Price.IsPositive() {
		t.Errorf("expected positive price, got %s", q.Price)
	}
	if q.Source != "bittrex" {
		t.Errorf("expected source bittrex, got %s", q.Source)
	}
}
