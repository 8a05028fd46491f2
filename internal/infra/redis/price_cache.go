package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/infra/market"
	"github.com/Thisisily/glp-monitor/internal/metrics"
)

// PriceCache serves spot prices from Redis hashes and falls through to the
// upstream pricer for missing or stale symbols. Each symbol is stored at
// "price:{symbol}" with fields "price" and "ts" (Unix nanoseconds).
// A Redis failure never fails a lookup; the upstream answers instead.
type PriceCache struct {
	rdb      *redis.Client
	upstream market.SpotPricer
	ttl      time.Duration
	log      *slog.Logger
	now      func() time.Time
}

var _ market.SpotPricer = (*PriceCache)(nil)

// NewPriceCache creates a cache in front of upstream. Entries older than ttl are refetched.
func NewPriceCache(c *Client, upstream market.SpotPricer, ttl time.Duration) *PriceCache {
	return &PriceCache{
		rdb:      c.rdb,
		upstream: upstream,
		ttl:      ttl,
		log:      slog.Default().With("component", "price_cache"),
		now:      time.Now,
	}
}

func priceKey(symbol string) string {
	return "price:" + symbol
}

// GetSpotPrices implements market.SpotPricer.
func (pc *PriceCache) GetSpotPrices(ctx context.Context, symbols []string) (domain.PriceTable, error) {
	out := make(domain.PriceTable, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	cached, err := pc.lookup(ctx, symbols)
	if err != nil {
		metrics.PriceCacheLookups.WithLabelValues("error").Inc()
		pc.log.Warn("price cache lookup failed, using upstream", "error", err)
		cached = nil
	}

	var misses []string
	for _, s := range symbols {
		if p, ok := cached[s]; ok {
			out[s] = p
			metrics.PriceCacheLookups.WithLabelValues("hit").Inc()
			continue
		}
		misses = append(misses, s)
		metrics.PriceCacheLookups.WithLabelValues("miss").Inc()
	}
	if len(misses) == 0 {
		return out, nil
	}

	fresh, err := pc.upstream.GetSpotPrices(ctx, misses)
	if err != nil {
		if len(out) > 0 {
			pc.log.Warn("upstream prices failed, serving cached subset", "missing", len(misses), "error", err)
			return out, nil
		}
		return nil, err
	}
	for s, p := range fresh {
		out[s] = p
	}

	if err := pc.store(ctx, fresh); err != nil {
		pc.log.Warn("price cache store failed", "error", err)
	}
	return out, nil
}

// lookup returns the fresh cached prices among symbols.
func (pc *PriceCache) lookup(ctx context.Context, symbols []string) (map[string]float64, error) {
	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(symbols))
	for _, s := range symbols {
		cmds[s] = pipe.HGetAll(ctx, priceKey(s))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	now := pc.now()
	result := make(map[string]float64, len(symbols))
	for s, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if price, ok := freshPrice(vals, now, pc.ttl); ok {
			result[s] = price
		}
	}
	return result, nil
}

func (pc *PriceCache) store(ctx context.Context, prices domain.PriceTable) error {
	if len(prices) == 0 {
		return nil
	}

	ts := strconv.FormatInt(pc.now().UnixNano(), 10)
	pipe := pc.rdb.Pipeline()
	for s, p := range prices {
		key := priceKey(s)
		pipe.HSet(ctx, key, map[string]any{
			"price": strconv.FormatFloat(p, 'f', -1, 64),
			"ts":    ts,
		})
		pipe.Expire(ctx, key, 2*pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set prices pipeline: %w", err)
	}
	return nil
}

// freshPrice parses a cached hash and reports whether it is younger than ttl.
func freshPrice(vals map[string]string, now time.Time, ttl time.Duration) (float64, bool) {
	priceStr, ok := vals["price"]
	if !ok {
		return 0, false
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, false
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, false
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, false
	}
	if now.Sub(time.Unix(0, tsNano)) > ttl {
		return 0, false
	}
	return price, true
}
