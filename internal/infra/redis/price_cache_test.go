package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

type mockPricer struct {
	calls           [][]string
	GetSpotPricesFn func(ctx context.Context, symbols []string) (domain.PriceTable, error)
}

func (m *mockPricer) GetSpotPrices(ctx context.Context, symbols []string) (domain.PriceTable, error) {
	m.calls = append(m.calls, symbols)
	return m.GetSpotPricesFn(ctx, symbols)
}

// unreachable returns a client whose commands fail fast.
func unreachable() *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})}
}

func TestFreshPrice(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ts := func(d time.Duration) string { return strconv.FormatInt(now.Add(-d).UnixNano(), 10) }

	tests := []struct {
		name   string
		vals   map[string]string
		want   float64
		wantOK bool
	}{
		{"fresh", map[string]string{"price": "2000.5", "ts": ts(10 * time.Second)}, 2000.5, true},
		{"stale", map[string]string{"price": "2000.5", "ts": ts(time.Minute)}, 0, false},
		{"missing ts", map[string]string{"price": "1"}, 0, false},
		{"bad price", map[string]string{"price": "x", "ts": ts(0)}, 0, false},
		{"empty", map[string]string{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := freshPrice(tt.vals, now, 30*time.Second)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("freshPrice() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPriceCache_RedisDownFallsThrough(t *testing.T) {
	c := unreachable()
	defer c.Close()

	upstream := &mockPricer{GetSpotPricesFn: func(ctx context.Context, symbols []string) (domain.PriceTable, error) {
		return domain.PriceTable{"ETH": 2000, "BTC": 30000}, nil
	}}

	pc := NewPriceCache(c, upstream, 30*time.Second)
	prices, err := pc.GetSpotPrices(context.Background(), []string{"ETH", "BTC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prices["ETH"] != 2000 || prices["BTC"] != 30000 {
		t.Errorf("unexpected prices %v", prices)
	}
	if len(upstream.calls) != 1 || len(upstream.calls[0]) != 2 {
		t.Errorf("expected one upstream call for both symbols, got %v", upstream.calls)
	}
}

func TestPriceCache_UpstreamError(t *testing.T) {
	c := unreachable()
	defer c.Close()

	upstream := &mockPricer{GetSpotPricesFn: func(ctx context.Context, symbols []string) (domain.PriceTable, error) {
		return nil, domain.ErrTransientFetch
	}}

	pc := NewPriceCache(c, upstream, 30*time.Second)
	if _, err := pc.GetSpotPrices(context.Background(), []string{"ETH"}); !errors.Is(err, domain.ErrTransientFetch) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestPriceCache_Empty(t *testing.T) {
	upstream := &mockPricer{}
	pc := NewPriceCache(unreachable(), upstream, time.Second)

	prices, err := pc.GetSpotPrices(context.Background(), nil)
	if err != nil || len(prices) != 0 {
		t.Errorf("expected empty table, got %v %v", prices, err)
	}
	if len(upstream.calls) != 0 {
		t.Error("expected no upstream call")
	}
}
