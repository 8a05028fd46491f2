package market

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// StatsClient reads pool composition from the GMX stats API.
type StatsClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStatsClient creates a GMX stats API client.
func NewStatsClient(baseURL string, timeout time.Duration) *StatsClient {
	return &StatsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type tokenInfo struct {
	ID   string `json:"id"`
	Data struct {
		Address    string `json:"address"`
		Symbol     string `json:"symbol"`
		USDGAmount string `json:"usdgAmount"`
	} `json:"data"`
}

// GetPoolComposition weights each pool token by its USDG debt, keyed by lowercased address.
func (c *StatsClient) GetPoolComposition(ctx context.Context) (domain.TokenComposition, error) {
	var tokens []tokenInfo
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/tokens", nil, "gmx_stats", &tokens); err != nil {
		return nil, err
	}

	comp := make(domain.TokenComposition, len(tokens))
	for _, t := range tokens {
		addr := t.Data.Address
		if addr == "" {
			addr = t.ID
		}
		if addr == "" {
			continue
		}
		usdg, err := domain.ParseUnits(t.Data.USDGAmount, domain.DefaultDecimals)
		if err != nil {
			return nil, fmt.Errorf("token %s usdgAmount: %w", addr, err)
		}
		if usdg <= 0 {
			continue
		}
		comp[strings.ToLower(addr)] += usdg
	}
	return comp, nil
}
