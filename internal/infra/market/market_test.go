package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

func TestPriceClient_GetSpotPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/pricemulti" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("fsyms"); got != "BTC,ETH,LINK,USDC" {
			t.Errorf("expected deduplicated sorted ids, got %s", got)
		}
		fmt.Fprint(w, `{"ETH":{"USD":2000},"BTC":{"USD":30000},"USDC":{"USD":1.001}}`)
	}))
	defer server.Close()

	c := NewPriceClient(server.URL, "", 5*time.Second)
	prices, err := c.GetSpotPrices(context.Background(), []string{"WETH", "ETH", "WBTC", "USDC.e", "USDC", "LINK"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.PriceTable{"WETH": 2000, "ETH": 2000, "WBTC": 30000, "USDC.e": 1.001, "USDC": 1.001}
	if len(prices) != len(want) {
		t.Errorf("expected %d prices, got %v", len(want), prices)
	}
	for k, v := range want {
		if prices[k] != v {
			t.Errorf("price[%s] = %v, want %v", k, prices[k], v)
		}
	}
	if _, ok := prices["LINK"]; ok {
		t.Error("expected LINK omitted")
	}
}

func TestPriceClient_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Response":"Error","Message":"rate limit"}`)
	}))
	defer server.Close()

	c := NewPriceClient(server.URL, "key", 5*time.Second)
	if _, err := c.GetSpotPrices(context.Background(), []string{"ETH"}); !errors.Is(err, domain.ErrTransientFetch) {
		t.Fatalf("expected transient fetch error, got %v", err)
	}
}

func TestStatsClient_GetPoolComposition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokens" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `[
			{"id":"0xAAA","data":{"address":"0xAAA","symbol":"ETH","usdgAmount":"40000000000000000000"}},
			{"id":"0xBBB","data":{"address":"0xBBB","symbol":"BTC","usdgAmount":"60000000000000000000"}},
			{"id":"0xCCC","data":{"address":"0xCCC","symbol":"UNI","usdgAmount":"0"}}
		]`)
	}))
	defer server.Close()

	c := NewStatsClient(server.URL, 5*time.Second)
	comp, err := c.GetPoolComposition(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comp) != 2 || comp["0xaaa"] != 40 || comp["0xbbb"] != 60 {
		t.Errorf("unexpected composition %v", comp)
	}

	norm := comp.Normalize()
	if math.Abs(norm["0xaaa"]-0.4) > 1e-12 {
		t.Errorf("expected 0.4, got %v", norm["0xaaa"])
	}
}

func TestPositionsClient_GetOpenPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("network") != "arbitrum" {
			t.Errorf("expected network query, got %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("desk") != "glp" {
			t.Errorf("expected existing query preserved, got %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]float64{"ETH": 3000, "BTC": -1000})
	}))
	defer server.Close()

	c := NewPositionsClient(server.URL+"/positions?desk=glp", 5*time.Second)
	pos, err := c.GetOpenPositions(context.Background(), domain.NetworkArbitrum)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos["ETH"] != 3000 || pos["BTC"] != -1000 {
		t.Errorf("unexpected positions %v", pos)
	}
}

func TestSubgraphClient_GetPoolStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !strings.Contains(req.Query, "glpStats") {
			t.Errorf("unexpected query %s", req.Query)
		}
		fmt.Fprint(w, `{"data":{"glpStats":[{"aumInUsdg":"500000000000000000000","glpSupply":"400000000000000000000"}]}}`)
	}))
	defer server.Close()

	c := NewSubgraphClient(server.URL, 5*time.Second)
	stats, err := c.GetPoolStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.AUMUSD != 500 || stats.GLPSupply != 400 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Price() != 1.25 {
		t.Errorf("expected price 1.25, got %v", stats.Price())
	}
}

func TestSubgraphClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"indexer down"}]}`)
	}))
	defer server.Close()

	c := NewSubgraphClient(server.URL, 5*time.Second)
	if _, err := c.GetPoolStats(context.Background()); !errors.Is(err, domain.ErrTransientFetch) {
		t.Fatalf("expected transient fetch error, got %v", err)
	}
}

type stubPricer struct {
	prices domain.PriceTable
}

func (s stubPricer) GetSpotPrices(ctx context.Context, symbols []string) (domain.PriceTable, error) {
	return s.prices, nil
}

func TestClient_Routing(t *testing.T) {
	c := NewClient(stubPricer{prices: domain.PriceTable{"ETH": 1}}, map[domain.Network]Endpoints{
		domain.NetworkArbitrum: {},
	})
	ctx := context.Background()

	if _, err := c.GetPoolComposition(ctx, domain.NetworkAvalanche); !errors.Is(err, domain.ErrUnsupportedNetwork) {
		t.Errorf("expected unsupported network, got %v", err)
	}
	if _, err := c.GetPoolComposition(ctx, domain.NetworkArbitrum); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	pos, err := c.GetOpenPositions(ctx, domain.NetworkArbitrum)
	if err != nil || len(pos) != 0 {
		t.Errorf("expected empty positions without a feed, got %v %v", pos, err)
	}

	prices, err := c.GetSpotPrices(ctx, []string{"ETH"})
	if err != nil || prices["ETH"] != 1 {
		t.Errorf("unexpected prices %v %v", prices, err)
	}
}
