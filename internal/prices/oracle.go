// Package prices supplies the last-known price for a symbol. The production
// oracle reads through the shared Redis price cache; a static oracle backs
// paper runs and tests.
package prices

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradepulse/paper-engine/internal/redis"
)

// ErrPriceUnavailable is returned when no source can quote the symbol right
// now. Callers treat it as a recoverable per-symbol failure and retry next
// cycle.
var ErrPriceUnavailable = errors.New("price unavailable")

// IsUnavailable reports whether err means "no quote right now" as opposed to
// a transport failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrPriceUnavailable)
}

// Oracle supplies the last-known price for a symbol.
type Oracle interface {
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// CachedOracle reads prices from the Redis cache populated by the market-data
// collectors, falling back to an optional secondary oracle on cache miss.
// Fallback answers are written back to the cache with a short TTL so the next
// cycle hits Redis directly.
type CachedOracle struct {
	cache    *redis.Client
	fallback Oracle // may be nil
	ttl      time.Duration
}

// NewCachedOracle creates an oracle over the Redis price cache. fallback may
// be nil, in which case a cache miss is a hard ErrPriceUnavailable.
func NewCachedOracle(cache *redis.Client, fallback Oracle, ttl time.Duration) *CachedOracle {
	return &CachedOracle{cache: cache, fallback: fallback, ttl: ttl}
}

func (o *CachedOracle) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := o.cache.GetPrice(ctx, symbol)
	if err == nil {
		if price <= 0 {
			return decimal.Zero, fmt.Errorf("%w: non-positive cached price for %s", ErrPriceUnavailable, symbol)
		}
		return decimal.NewFromFloat(price), nil
	}
	if !redis.IsCacheMiss(err) {
		return decimal.Zero, fmt.Errorf("price cache lookup for %s: %w", symbol, err)
	}
	if o.fallback == nil {
		return decimal.Zero, fmt.Errorf("%w: no cached price for %s", ErrPriceUnavailable, symbol)
	}

	fromFallback, err := o.fallback.GetLatestPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if o.ttl > 0 {
		f, _ := fromFallback.Float64()
		if cacheErr := o.cache.SetPrice(ctx, symbol, f, o.ttl); cacheErr != nil {
			log.Printf("Warning: caching price for %s: %v", symbol, cacheErr)
		}
	}
	return fromFallback, nil
}

// StaticOracle serves prices from an in-memory table. Used for paper runs
// bootstrapped from config and as a stand-in inside tests.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[string]decimal.Decimal)}
}

// SetPrice sets or replaces the quoted price for a symbol.
func (o *StaticOracle) SetPrice(symbol string, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[symbol] = price
}

func (o *StaticOracle) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[symbol]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no quote for %s", ErrPriceUnavailable, symbol)
	}
	return price, nil
}
