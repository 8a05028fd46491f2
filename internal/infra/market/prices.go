package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// CoinToCCID maps pool token symbols to CryptoCompare symbols where they differ.
// Symbols not listed are queried as-is.
var CoinToCCID = map[string]string{
	"WETH":   "ETH",
	"WETH.e": "ETH",
	"WBTC":   "BTC",
	"WBTC.e": "BTC",
	"BTC.b":  "BTC",
	"WAVAX":  "AVAX",
	"USDC.e": "USDC",
}

// PriceClient fetches spot prices from the CryptoCompare pricemulti endpoint.
type PriceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// NewPriceClient creates a CryptoCompare client.
func NewPriceClient(baseURL, apiKey string, timeout time.Duration) *PriceClient {
	return &PriceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        slog.Default().With("component", "prices"),
	}
}

// GetSpotPrices returns USD prices keyed by the symbols as requested.
func (c *PriceClient) GetSpotPrices(ctx context.Context, symbols []string) (domain.PriceTable, error) {
	out := make(domain.PriceTable, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	// requested symbols sharing one CryptoCompare id
	byID := make(map[string][]string)
	for _, s := range symbols {
		id := ccID(s)
		byID[id] = append(byID[id], s)
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	q := url.Values{}
	q.Set("fsyms", strings.Join(ids, ","))
	q.Set("tsyms", "USD")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	var resp map[string]any
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/data/pricemulti?"+q.Encode(), nil, "cryptocompare", &resp); err != nil {
		return nil, err
	}

	// Errors come back as 200 with {"Response":"Error","Message":...}
	if r, ok := resp["Response"].(string); ok && r == "Error" {
		return nil, fmt.Errorf("%w: cryptocompare: %v", domain.ErrTransientFetch, resp["Message"])
	}

	for id, requested := range byID {
		quote, ok := resp[id].(map[string]any)
		if !ok {
			c.log.Debug("no quote for symbol", "symbol", id)
			continue
		}
		usd, ok := quote["USD"].(float64)
		if !ok {
			continue
		}
		for _, s := range requested {
			out[s] = usd
		}
	}
	return out, nil
}

func ccID(symbol string) string {
	if id, ok := CoinToCCID[symbol]; ok {
		return id
	}
	return strings.ToUpper(symbol)
}
