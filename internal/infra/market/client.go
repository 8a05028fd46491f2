package market

import (
	"context"
	"fmt"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// SpotPricer returns spot prices for symbols.
type SpotPricer interface {
	GetSpotPrices(ctx context.Context, symbols []string) (domain.PriceTable, error)
}

// Endpoints are the per-network market sources. Nil members are not configured.
type Endpoints struct {
	Stats     *StatsClient
	Positions *PositionsClient
	Subgraph  *SubgraphClient
}

// Client combines the market sources into a DataPort.
type Client struct {
	prices   SpotPricer
	networks map[domain.Network]Endpoints
}

var _ DataPort = (*Client)(nil)

// NewClient creates a market client. prices may be a cache in front of a PriceClient.
func NewClient(prices SpotPricer, networks map[domain.Network]Endpoints) *Client {
	return &Client{prices: prices, networks: networks}
}

func (c *Client) endpoints(network domain.Network) (Endpoints, error) {
	ep, ok := c.networks[network]
	if !ok {
		return Endpoints{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, network)
	}
	return ep, nil
}

func (c *Client) GetSpotPrices(ctx context.Context, symbols []string) (domain.PriceTable, error) {
	return c.prices.GetSpotPrices(ctx, symbols)
}

func (c *Client) GetPoolComposition(ctx context.Context, network domain.Network) (domain.TokenComposition, error) {
	ep, err := c.endpoints(network)
	if err != nil {
		return nil, err
	}
	if ep.Stats == nil {
		return nil, &domain.ConfigError{Field: network.String() + ".stats_url", Reason: "not configured"}
	}
	return ep.Stats.GetPoolComposition(ctx)
}

// GetOpenPositions returns an empty set when no hedge feed is configured.
func (c *Client) GetOpenPositions(ctx context.Context, network domain.Network) (domain.OpenPositions, error) {
	ep, err := c.endpoints(network)
	if err != nil {
		return nil, err
	}
	if ep.Positions == nil {
		return domain.OpenPositions{}, nil
	}
	return ep.Positions.GetOpenPositions(ctx, network)
}

func (c *Client) GetPoolStats(ctx context.Context, network domain.Network) (PoolStats, error) {
	ep, err := c.endpoints(network)
	if err != nil {
		return PoolStats{}, err
	}
	if ep.Subgraph == nil {
		return PoolStats{}, &domain.ConfigError{Field: network.String() + ".subgraph_url", Reason: "not configured"}
	}
	return ep.Subgraph.GetPoolStats(ctx)
}
