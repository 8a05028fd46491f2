// Package market provides off-chain market data for GLP: spot prices, pool
// composition, open hedge positions and pool statistics.
package market

import (
	"context"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// DataPort is the market data surface used by the valuation core.
type DataPort interface {
	// GetSpotPrices returns USD prices keyed by the requested symbols. Unknown symbols are omitted.
	GetSpotPrices(ctx context.Context, symbols []string) (domain.PriceTable, error)

	// GetPoolComposition returns raw (unnormalized) weights keyed by token address
	GetPoolComposition(ctx context.Context, network domain.Network) (domain.TokenComposition, error)

	// GetOpenPositions returns net hedge notionals keyed by token identifier
	GetOpenPositions(ctx context.Context, network domain.Network) (domain.OpenPositions, error)

	// GetPoolStats returns the pool's assets under management and GLP supply
	GetPoolStats(ctx context.Context, network domain.Network) (PoolStats, error)
}

// PoolStats is a GLP pool snapshot.
type PoolStats struct {
	AUMUSD    float64 `json:"aum_usd"`
	GLPSupply float64 `json:"glp_supply"`
}

// Price returns AUM per GLP, or 0 when supply is empty.
func (s PoolStats) Price() float64 {
	if s.GLPSupply <= 0 {
		return 0
	}
	return s.AUMUSD / s.GLPSupply
}
