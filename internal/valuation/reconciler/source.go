package reconciler

import (
	"context"
	"fmt"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/infra/market"
)

// HistoricalPriceSource returns the mint event logs of a contract in [from, to].
type HistoricalPriceSource interface {
	FetchLogs(ctx context.Context, contract string, from, to uint64) ([]domain.RawLog, error)
}

// LogReader is the log query both strategies delegate to.
type LogReader interface {
	GetLogs(ctx context.Context, contract string, from, to uint64, topic string) ([]domain.RawLog, error)
}

// LogSource reads mint events through a LogReader filtered on one topic.
// The chain and explorer strategies differ only in the reader.
type LogSource struct {
	name   string
	reader LogReader
	topic  string
}

// NewChainSource reads mint events with eth_getLogs.
func NewChainSource(reader LogReader, topic string) *LogSource {
	return &LogSource{name: "chain", reader: reader, topic: topic}
}

// NewExplorerSource reads mint events from a block explorer's log index.
func NewExplorerSource(reader LogReader, topic string) *LogSource {
	return &LogSource{name: "explorer", reader: reader, topic: topic}
}

func (s *LogSource) Name() string {
	return s.name
}

func (s *LogSource) FetchLogs(ctx context.Context, contract string, from, to uint64) ([]domain.RawLog, error) {
	return s.reader.GetLogs(ctx, contract, from, to, s.topic)
}

// HeadReader returns the current chain head.
type HeadReader interface {
	GetLatestBlock(ctx context.Context) (uint64, error)
}

// RedemptionSource returns the current GLP redemption price of a network.
type RedemptionSource interface {
	RedemptionPrice(ctx context.Context, network domain.Network) (float64, error)
}

// Sentinel always reports NoDataPrice. It stands in until a real redemption feed is configured.
type Sentinel struct{}

func (Sentinel) RedemptionPrice(ctx context.Context, network domain.Network) (float64, error) {
	return NoDataPrice, nil
}

// StatsReader returns pool statistics.
type StatsReader interface {
	GetPoolStats(ctx context.Context, network domain.Network) (market.PoolStats, error)
}

// PoolStats prices GLP as pool AUM over GLP supply.
type PoolStats struct {
	stats StatsReader
}

func NewPoolStats(stats StatsReader) *PoolStats {
	return &PoolStats{stats: stats}
}

func (p *PoolStats) RedemptionPrice(ctx context.Context, network domain.Network) (float64, error) {
	s, err := p.stats.GetPoolStats(ctx, network)
	if err != nil {
		return 0, err
	}
	price := s.Price()
	if price <= 0 {
		return 0, fmt.Errorf("%w: empty GLP supply on %s", domain.ErrDataShape, network)
	}
	return price, nil
}
