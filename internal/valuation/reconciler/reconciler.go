// Package reconciler derives GLP mint and redemption prices from on-chain history.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/metrics"
)

// NoDataPrice is reported when no mint events are found or the redemption source fails.
const NoDataPrice = 1.0

const wordSize = 32

// Config tunes log decoding and the block walk.
type Config struct {
	WindowSize uint64 // blocks per log query
	Decimals   int32  // price scale
	PriceWord  int    // index of the 32-byte word holding the price in log data
}

// DefaultConfig returns the default walk and decoding settings.
func DefaultConfig() Config {
	return Config{
		WindowSize: 2048,
		Decimals:   domain.DefaultDecimals,
		PriceWord:  0,
	}
}

// Result is the outcome of one reconciliation.
type Result struct {
	AverageMintPrice float64
	RedemptionPrice  float64
	Events           int
	Windows          int
	Partial          bool // a window failed and the walk stopped early
	FromBlock        uint64
	ToBlock          uint64
}

// Sources are the per-network inputs of a reconciler.
type Sources struct {
	History HistoricalPriceSource
	Head    HeadReader
}

// Reconciler computes per-network GLP prices.
type Reconciler struct {
	cfg        Config
	redemption RedemptionSource
	networks   map[domain.Network]Sources
	log        *slog.Logger
}

// New creates a reconciler. A nil redemption source means Sentinel.
func New(cfg Config, redemption RedemptionSource, networks map[domain.Network]Sources) *Reconciler {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if redemption == nil {
		redemption = Sentinel{}
	}
	return &Reconciler{
		cfg:        cfg,
		redemption: redemption,
		networks:   networks,
		log:        slog.Default().With("component", "reconciler"),
	}
}

// Reconcile walks [fromBlock, toBlock] in windows and averages the decoded mint prices.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	network domain.Network,
	contract string,
	fromBlock, toBlock uint64,
) (Result, error) {
	src, ok := r.networks[network]
	if !ok || src.History == nil {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, network)
	}
	if fromBlock > toBlock {
		return Result{}, &domain.ConfigError{
			Field:  "block range",
			Reason: fmt.Sprintf("fromBlock %d > toBlock %d", fromBlock, toBlock),
		}
	}

	log := r.log.With("network", network, "contract", contract)
	res := Result{FromBlock: fromBlock, ToBlock: toBlock}

	var sum float64
	for start := fromBlock; ; {
		end := toBlock
		if toBlock-start >= r.cfg.WindowSize {
			end = start + r.cfg.WindowSize - 1
		}

		logs, err := src.History.FetchLogs(ctx, contract, start, end)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			if !domain.IsDegradable(err) {
				return Result{}, err
			}
			log.Warn("log window failed, using partial history",
				"from", start,
				"to", end,
				"events", res.Events,
				"error", err,
			)
			res.Partial = true
			break
		}
		res.Windows++

		for _, l := range logs {
			price, err := r.decodePrice(l)
			if err != nil {
				log.Warn("skip undecodable mint event", "tx", l.TxHash, "error", err)
				continue
			}
			sum += price
			res.Events++
		}

		if end == toBlock {
			break
		}
		start = end + 1
	}

	res.AverageMintPrice = NoDataPrice
	if res.Events > 0 {
		res.AverageMintPrice = sum / float64(res.Events)
	}
	res.RedemptionPrice = r.redemptionPrice(ctx, network)

	metrics.AverageMintPrice.WithLabelValues(network.String()).Set(res.AverageMintPrice)
	metrics.RedemptionPrice.WithLabelValues(network.String()).Set(res.RedemptionPrice)

	log.Debug("reconciled",
		"from", fromBlock,
		"to", toBlock,
		"windows", res.Windows,
		"events", res.Events,
		"avg_mint_price", res.AverageMintPrice,
		"redemption_price", res.RedemptionPrice,
		"partial", res.Partial,
	)
	return res, nil
}

// ReconcileRecent reconciles the last lookback blocks up to the chain head.
// A head failure degrades to the no-data mint price.
func (r *Reconciler) ReconcileRecent(
	ctx context.Context,
	network domain.Network,
	contract string,
	lookback uint64,
) (Result, error) {
	src, ok := r.networks[network]
	if !ok || src.Head == nil {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, network)
	}

	head, err := src.Head.GetLatestBlock(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		if !domain.IsDegradable(err) {
			return Result{}, err
		}
		r.log.Warn("chain head unavailable, no mint history", "network", network, "error", err)
		return Result{
			AverageMintPrice: NoDataPrice,
			RedemptionPrice:  r.redemptionPrice(ctx, network),
			Partial:          true,
		}, nil
	}

	var from uint64
	if lookback > 0 && head >= lookback {
		from = head - lookback + 1
	}
	return r.Reconcile(ctx, network, contract, from, head)
}

func (r *Reconciler) redemptionPrice(ctx context.Context, network domain.Network) float64 {
	price, err := r.redemption.RedemptionPrice(ctx, network)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Warn("redemption price unavailable, using default", "network", network, "error", err)
		}
		return NoDataPrice
	}
	return price
}

// decodePrice reads the configured 32-byte word of the log data as a scaled price.
func (r *Reconciler) decodePrice(l domain.RawLog) (float64, error) {
	off := r.cfg.PriceWord * wordSize
	if off < 0 || len(l.Data) < off+wordSize {
		return 0, fmt.Errorf("%w: log data has %d bytes, need %d", domain.ErrDataShape, len(l.Data), off+wordSize)
	}
	raw := new(big.Int).SetBytes(l.Data[off : off+wordSize])
	return domain.ScaleUnits(raw, r.cfg.Decimals), nil
}
