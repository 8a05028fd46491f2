package market

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// PositionsClient reads net hedge positions from a JSON feed.
// The feed answers GET {url}?network={name} with {"<token>": <signed notional>, ...}.
type PositionsClient struct {
	url        string
	httpClient *http.Client
}

func NewPositionsClient(feedURL string, timeout time.Duration) *PositionsClient {
	return &PositionsClient{
		url:        feedURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *PositionsClient) GetOpenPositions(ctx context.Context, network domain.Network) (domain.OpenPositions, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, &domain.ConfigError{Field: "hedge_url", Reason: err.Error()}
	}
	q := u.Query()
	q.Set("network", network.String())
	u.RawQuery = q.Encode()

	var positions domain.OpenPositions
	if err := doJSON(ctx, c.httpClient, http.MethodGet, u.String(), nil, "positions", &positions); err != nil {
		return nil, err
	}
	if positions == nil {
		positions = domain.OpenPositions{}
	}
	return positions, nil
}
