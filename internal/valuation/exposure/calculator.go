// Package exposure splits a GLP balance into USD exposure per pool asset.
package exposure

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// PositionScale converts a net position notional into a weight multiplier.
const PositionScale = 10000.0

// MarketData is the market surface the calculator reads.
type MarketData interface {
	GetSpotPrices(ctx context.Context, symbols []string) (domain.PriceTable, error)
	GetPoolComposition(ctx context.Context, network domain.Network) (domain.TokenComposition, error)
	GetOpenPositions(ctx context.Context, network domain.Network) (domain.OpenPositions, error)
}

// Line is one asset of an exposure breakdown.
type Line struct {
	Name     string
	Weight   float64 // normalized pool weight
	Adjusted float64 // weight after the position adjustment
	Position float64
	Price    float64 // after stablecoin damping; 1 when unknown
	Priced   bool
	Value    float64
}

// Breakdown is a full exposure computation.
type Breakdown struct {
	Network       domain.Network
	Balance       float64
	Lines         []Line // sorted by value, largest first
	PartialPrices bool   // the price fetch failed and defaults were used
}

// Exposure returns name to USD value.
func (b Breakdown) Exposure() domain.Exposure {
	out := make(domain.Exposure, len(b.Lines))
	for _, l := range b.Lines {
		out[l.Name] = l.Value
	}
	return out
}

// Calculator computes exposure from market data.
type Calculator struct {
	market MarketData
	tables Tables
	log    *slog.Logger
}

// NewCalculator creates a calculator with the given tables.
func NewCalculator(market MarketData, tables Tables) *Calculator {
	return &Calculator{
		market: market,
		tables: tables,
		log:    slog.Default().With("component", "exposure"),
	}
}

// Calculate returns the USD exposure of balance GLP on network.
func (c *Calculator) Calculate(ctx context.Context, balance float64, network domain.Network) (domain.Exposure, error) {
	b, err := c.Breakdown(ctx, balance, network)
	if err != nil {
		return nil, err
	}
	return b.Exposure(), nil
}

// Breakdown computes exposure with per-asset detail.
// Only configuration errors are returned; upstream failures degrade and are logged.
func (c *Calculator) Breakdown(ctx context.Context, balance float64, network domain.Network) (Breakdown, error) {
	if _, err := domain.ParseNetwork(network.String()); err != nil {
		return Breakdown{}, err
	}
	out := Breakdown{Network: network, Balance: balance}
	log := c.log.With("network", network)

	raw, err := c.market.GetPoolComposition(ctx, network)
	if err != nil {
		if !domain.IsDegradable(err) {
			return Breakdown{}, err
		}
		log.Warn("pool composition unavailable, empty exposure", "error", err)
		return out, nil
	}

	weights := make(map[string]float64)
	for id, w := range raw.Normalize() {
		weights[c.tables.Resolve(network, id)] += w
	}
	if len(weights) == 0 {
		return out, nil
	}

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	prices, err := c.market.GetSpotPrices(ctx, names)
	if err != nil {
		if !domain.IsDegradable(err) {
			return Breakdown{}, err
		}
		log.Warn("spot prices unavailable, defaulting to 1", "error", err)
		prices = domain.PriceTable{}
		out.PartialPrices = true
	}

	positions := make(map[string]float64)
	rawPos, err := c.market.GetOpenPositions(ctx, network)
	if err != nil {
		if !domain.IsDegradable(err) {
			return Breakdown{}, err
		}
		log.Warn("open positions unavailable, no adjustment", "error", err)
	}
	for id, p := range rawPos {
		positions[c.tables.Resolve(network, id)] += p
	}

	out.Lines = make([]Line, 0, len(names))
	for _, name := range names {
		price, priced := prices[name]
		if !priced {
			price = 1
		}
		if c.tables.IsStablecoin(name) {
			price = DampStablecoin(price)
		}

		adjusted := AdjustWeight(weights[name], positions[name])
		out.Lines = append(out.Lines, Line{
			Name:     name,
			Weight:   weights[name],
			Adjusted: adjusted,
			Position: positions[name],
			Price:    price,
			Priced:   priced,
			Value:    balance * adjusted * price,
		})
	}

	sort.SliceStable(out.Lines, func(i, j int) bool {
		return out.Lines[i].Value > out.Lines[j].Value
	})
	return out, nil
}

// DampStablecoin pulls a stablecoin price halfway toward 1 USD.
func DampStablecoin(price float64) float64 {
	return (price + 1) / 2
}

// DampStablecoins returns a copy of prices with every allowlisted symbol damped.
func DampStablecoins(prices domain.PriceTable, stablecoins map[string]bool) domain.PriceTable {
	out := make(domain.PriceTable, len(prices))
	for s, p := range prices {
		if stablecoins[s] {
			p = DampStablecoin(p)
		}
		out[s] = p
	}
	return out
}

// AdjustWeight scales a weight up for a net long position and down for a net short.
func AdjustWeight(weight, position float64) float64 {
	switch {
	case position > 0:
		return weight * (1 + position/PositionScale)
	case position < 0:
		return weight * (1 - (-position)/PositionScale)
	default:
		return weight
	}
}
