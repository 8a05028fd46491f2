package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/metrics"
)

// Emitter publishes the observations of a completed cycle.
type Emitter interface {
	EmitBatch(ctx context.Context, observations []domain.Observation) error
	Close() error
}

// LogEmitter writes one structured log record per observation.
type LogEmitter struct {
	log *slog.Logger
}

// NewLogEmitter creates a log emitter. A nil logger uses the default.
func NewLogEmitter(log *slog.Logger) *LogEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmitter{log: log.With("component", "observations")}
}

func (e *LogEmitter) EmitBatch(ctx context.Context, observations []domain.Observation) error {
	for _, o := range observations {
		attrs := []any{
			"cycle", o.CycleID,
			"user", o.User,
			"network", o.Network,
			"balance", o.Balance,
			"avg_mint_price", o.AverageMintPrice,
			"redemption_price", o.RedemptionPrice,
			"reward_estimate", o.RewardEstimate,
			"fee_estimate", o.FeeEstimate,
			"value_usd", o.Value,
		}
		if o.EntryPrice > 0 {
			attrs = append(attrs, "entry_price", o.EntryPrice, "pnl", o.PnL)
		}
		if len(o.Exposure) > 0 {
			attrs = append(attrs, "exposure", formatExposure(o.Exposure))
		}
		if o.PartialPrices {
			attrs = append(attrs, "partial", true)
		}
		e.log.InfoContext(ctx, "observation", attrs...)
	}
	return nil
}

func (e *LogEmitter) Close() error { return nil }

// formatExposure renders exposure as "NAME=value" pairs, largest first.
func formatExposure(exp domain.Exposure) string {
	names := make([]string, 0, len(exp))
	for n := range exp {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if exp[names[i]] == exp[names[j]] {
			return names[i] < names[j]
		}
		return exp[names[i]] > exp[names[j]]
	})

	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%.2f", n, exp[n])
	}
	return strings.Join(parts, " ")
}

// CycleBuffer holds observations until the cycle that produced them completes.
type CycleBuffer struct {
	inner   Emitter
	pending []domain.Observation
	mu      sync.Mutex
}

// NewCycleBuffer wraps inner.
func NewCycleBuffer(inner Emitter) *CycleBuffer {
	return &CycleBuffer{inner: inner}
}

// Queue adds observations. They are not emitted yet.
func (b *CycleBuffer) Queue(observations ...domain.Observation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, observations...)
}

// Commit emits everything queued and clears the buffer.
func (b *CycleBuffer) Commit(ctx context.Context) error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := b.inner.EmitBatch(ctx, batch); err != nil {
		return fmt.Errorf("emit %d observations: %w", len(batch), err)
	}
	for _, o := range batch {
		metrics.ObservationsTotal.WithLabelValues(o.Network.String()).Inc()
	}
	return nil
}

// Discard drops everything queued and returns how many observations were dropped.
func (b *CycleBuffer) Discard() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.pending)
	b.pending = nil
	return n
}

// PendingCount returns the number of queued observations.
func (b *CycleBuffer) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *CycleBuffer) Close() error {
	return b.inner.Close()
}
