package exchange

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testQuote(price string) Quote {
	return Quote{
		Base:       "BTC",
		Quote:      "USD",
		Price:      decimal.RequireFromString(price),
		Source:     "test",
		ObservedAt: time.Now(),
	}
}

func countingFetch(calls *atomic.Int32, q Quote, err error) func(context.Context) (Quote, error) {
	return func(context.Context) (Quote, error) {
		calls.Add(1)
		return q, err
	}
}

func TestQuoteCacheServesFreshEntry(t *testing.T) {
	c := NewQuoteCache(time.Minute)
	pair := NewPair("BTC", "USD")
	var calls atomic.Int32
	fetch := countingFetch(&calls, testQuote("100"), nil)

	for i := 0; i < 3; i++ {
		q, err := c.GetOrFetch(context.Background(), pair, fetch)
		if err != nil {
			t.Fatalf("GetOrFetch failed: %v", err)
		}
		if q.Price.String() != "100" {
			t.Errorf("price = %s, want 100", q.Price)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("fetch ran %d times within TTL, want 1", calls.Load())
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("stats = %d hits / %d misses, want 2/1", hits, misses)
	}
}

func TestQuoteCacheExpires(t *testing.T) {
	c := NewQuoteCache(20 * time.Millisecond)
	pair := NewPair("BTC", "USD")
	var calls atomic.Int32
	fetch := countingFetch(&calls, testQuote("100"), nil)

	if _, err := c.GetOrFetch(context.Background(), pair, fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := c.GetOrFetch(context.Background(), pair, fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("fetch ran %d times across expiry, want 2", calls.Load())
	}
}

func TestQuoteCacheDisabled(t *testing.T) {
	c := NewQuoteCache(0)
	pair := NewPair("BTC", "USD")
	var calls atomic.Int32
	fetch := countingFetch(&calls, testQuote("100"), nil)

	for i := 0; i < 3; i++ {
		if _, err := c.GetOrFetch(context.Background(), pair, fetch); err != nil {
			t.Fatalf("GetOrFetch failed: %v", err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("fetch ran %d times with caching disabled, want 3", calls.Load())
	}
}

func TestQuoteCacheDoesNotCacheErrors(t *testing.T) {
	c := NewQuoteCache(time.Minute)
	pair := NewPair("BTC", "USD")
	var calls atomic.Int32

	_, err := c.GetOrFetch(context.Background(), pair, func(context.Context) (Quote, error) {
		calls.Add(1)
		return Quote{}, fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatal("expected fetch error to propagate")
	}

	q, err := c.GetOrFetch(context.Background(), pair, countingFetch(&calls, testQuote("100"), nil))
	if err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if q.Price.String() != "100" {
		t.Errorf("price = %s, want 100", q.Price)
	}
	if calls.Load() != 2 {
		t.Errorf("fetch ran %d times, want 2 (errors are not cached)", calls.Load())
	}
}

func TestQuoteCacheCoalescesConcurrentMisses(t *testing.T) {
	c := NewQuoteCache(time.Minute)
	pair := NewPair("BTC", "USD")
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) (Quote, error) {
		calls.Add(1)
		<-release
		return testQuote("100"), nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := c.GetOrFetch(context.Background(), pair, fetch)
			if err != nil {
				errs <- err
				return
			}
			if q.Price.String() != "100" {
				errs <- fmt.Errorf("price = %s", q.Price)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if calls.Load() != 1 {
		t.Errorf("fetch ran %d times for concurrent misses, want 1", calls.Load())
	}
}

func TestQuoteCacheFlush(t *testing.T) {
	c := NewQuoteCache(time.Minute)
	pair := NewPair("BTC", "USD")
	var calls atomic.Int32
	fetch := countingFetch(&calls, testQuote("100"), nil)

	if _, err := c.GetOrFetch(context.Background(), pair, fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	c.Flush()
	if _, err := c.GetOrFetch(context.Background(), pair, fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("fetch ran %d times across Flush, want 2", calls.Load())
	}
}

func TestQuoteCachePairsAreIsolated(t *testing.T) {
	c := NewQuoteCache(time.Minute)
	var calls atomic.Int32
	fetch := countingFetch(&calls, testQuote("100"), nil)

	if _, err := c.GetOrFetch(context.Background(), NewPair("BTC", "USD"), fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if _, err := c.GetOrFetch(context.Background(), NewPair("ETH", "USD"), fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("fetch ran %d times for two distinct pairs, want 2", calls.Load())
	}
}
