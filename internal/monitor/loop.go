// Package monitor runs the periodic GLP valuation cycle over every configured user and network.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/infra/feed"
	"github.com/Thisisily/glp-monitor/internal/metrics"
	"github.com/Thisisily/glp-monitor/internal/valuation/averager"
	"github.com/Thisisily/glp-monitor/internal/valuation/reconciler"
)

// FeeRate is the flat fee applied to the reward estimate.
const FeeRate = 0.01

// DefaultInterval is the pause between cycles.
const DefaultInterval = 60 * time.Second

// BalanceReader reads raw token balances.
type BalanceReader interface {
	GetBalance(ctx context.Context, contract, account string) (*big.Int, error)
}

// PriceReconciler produces per-network GLP prices.
type PriceReconciler interface {
	ReconcileRecent(ctx context.Context, network domain.Network, contract string, lookback uint64) (reconciler.Result, error)
}

// ExposureCalculator splits a balance into USD exposure per asset.
type ExposureCalculator interface {
	Calculate(ctx context.Context, balance float64, network domain.Network) (domain.Exposure, error)
}

// Target is one tracked network.
type Target struct {
	Network      domain.Network
	Contract     string // GLP token
	MintContract string // emitter of mint events; Contract when empty
	Balances     BalanceReader
	Feed         feed.TransactionFeed // nil disables entry prices for this network
}

// Config tunes the loop.
type Config struct {
	Interval       time.Duration
	Users          []string
	Decimals       int32
	LookbackBlocks uint64
	Exposure       bool
	EntryPrices    bool
}

// Failure is one user x network that produced no observation.
type Failure struct {
	User    string
	Network domain.Network
	Err     error
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	ID           string
	StartedAt    time.Time
	Duration     time.Duration
	Prices       map[domain.Network]reconciler.Result
	Observations []domain.Observation
	Failures     []Failure
	Interrupted  bool
}

// Monitor runs valuation cycles.
type Monitor struct {
	cfg        Config
	targets    []Target
	reconciler PriceReconciler
	exposure   ExposureCalculator
	buffer     *CycleBuffer
	onCycle    func(CycleReport)
	running    atomic.Bool
	log        *slog.Logger
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithExposure enables per-observation exposure.
func WithExposure(calc ExposureCalculator) Option {
	return func(m *Monitor) { m.exposure = calc }
}

// WithCycleHook registers a callback invoked after every cycle, completed or not.
func WithCycleHook(fn func(CycleReport)) Option {
	return func(m *Monitor) { m.onCycle = fn }
}

// New creates a monitor.
func New(cfg Config, targets []Target, rec PriceReconciler, emitter Emitter, opts ...Option) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Decimals == 0 {
		cfg.Decimals = domain.DefaultDecimals
	}
	if emitter == nil {
		emitter = NewLogEmitter(nil)
	}
	m := &Monitor{
		cfg:        cfg,
		targets:    targets,
		reconciler: rec,
		buffer:     NewCycleBuffer(emitter),
		log:        slog.Default().With("component", "monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes cycles until ctx is cancelled. The interval is measured from
// the end of one cycle to the start of the next.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return fmt.Errorf("monitor already running")
	}
	defer m.running.Store(false)

	m.log.Info("monitor started",
		"users", len(m.cfg.Users),
		"networks", len(m.targets),
		"interval", m.cfg.Interval,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return nil
		case <-timer.C:
		}

		if _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			m.log.Error("cycle failed", "error", err)
		}
		timer.Reset(m.cfg.Interval)
	}
}

// Running reports whether Run is active.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// RunOnce executes a single cycle. Observations are emitted only if the cycle
// completes; a cancelled cycle emits nothing and returns the context error.
func (m *Monitor) RunOnce(ctx context.Context) (CycleReport, error) {
	report := CycleReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Prices:    make(map[domain.Network]reconciler.Result, len(m.targets)),
	}
	log := m.log.With("cycle", report.ID)
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		if m.onCycle != nil {
			m.onCycle(report)
		}
	}()

	targets := m.reconcile(ctx, log, &report)

	for _, user := range m.cfg.Users {
		if ctx.Err() != nil {
			break
		}
		obs, failures := m.processUser(ctx, report.ID, user, targets, report.Prices)
		for _, f := range failures {
			if ctx.Err() != nil && errors.Is(f.Err, context.Canceled) {
				continue
			}
			metrics.UserFailuresTotal.WithLabelValues(f.Network.String()).Inc()
			log.Warn("user observation failed", "user", f.User, "network", f.Network, "error", f.Err)
		}
		report.Failures = append(report.Failures, failures...)
		report.Observations = append(report.Observations, obs...)
		m.buffer.Queue(obs...)
	}

	if err := ctx.Err(); err != nil {
		dropped := m.buffer.Discard()
		report.Interrupted = true
		metrics.CyclesTotal.WithLabelValues("cancelled").Inc()
		log.Info("cycle interrupted, observations discarded", "dropped", dropped)
		return report, err
	}

	if err := m.buffer.Commit(ctx); err != nil {
		log.Error("emit observations", "error", err)
	}
	metrics.CyclesTotal.WithLabelValues("completed").Inc()
	metrics.CycleDuration.Observe(time.Since(report.StartedAt).Seconds())

	log.Info("cycle completed",
		"observations", len(report.Observations),
		"failures", len(report.Failures),
		"duration", time.Since(report.StartedAt),
	)
	return report, nil
}

// reconcile computes prices once per network and returns the targets that have them.
func (m *Monitor) reconcile(ctx context.Context, log *slog.Logger, report *CycleReport) []Target {
	ready := make([]Target, 0, len(m.targets))
	for _, t := range m.targets {
		if ctx.Err() != nil {
			break
		}
		contract := t.MintContract
		if contract == "" {
			contract = t.Contract
		}
		res, err := m.reconciler.ReconcileRecent(ctx, t.Network, contract, m.cfg.LookbackBlocks)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("reconcile prices", "network", t.Network, "error", err)
			}
			continue
		}
		report.Prices[t.Network] = res
		ready = append(ready, t)
	}
	return ready
}

// processUser observes one user on every network. Networks run concurrently,
// each writing its own slot.
func (m *Monitor) processUser(
	ctx context.Context,
	cycleID, user string,
	targets []Target,
	prices map[domain.Network]reconciler.Result,
) (obs []domain.Observation, failures []Failure) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic processing user", "user", user, "panic", r, "stack", string(debug.Stack()))
			failures = append(failures, Failure{User: user, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	type slot struct {
		obs domain.Observation
		err error
	}
	slots := make([]slot, len(targets))

	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slots[i].err = fmt.Errorf("panic: %v", r)
				}
			}()
			slots[i].obs, slots[i].err = m.observe(ctx, cycleID, user, t, prices[t.Network])
			return nil
		})
	}
	_ = g.Wait()

	for i, s := range slots {
		if s.err != nil {
			failures = append(failures, Failure{User: user, Network: targets[i].Network, Err: s.err})
			continue
		}
		obs = append(obs, s.obs)
	}
	return obs, failures
}

func (m *Monitor) observe(
	ctx context.Context,
	cycleID, user string,
	t Target,
	price reconciler.Result,
) (domain.Observation, error) {
	raw, err := t.Balances.GetBalance(ctx, t.Contract, user)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("balance: %w", err)
	}
	balance := domain.ScaleUnits(raw, m.cfg.Decimals)

	reward := balance * price.AverageMintPrice
	o := domain.Observation{
		CycleID:          cycleID,
		User:             user,
		Network:          t.Network,
		Balance:          balance,
		AverageMintPrice: price.AverageMintPrice,
		RedemptionPrice:  price.RedemptionPrice,
		RewardEstimate:   reward,
		FeeEstimate:      reward * FeeRate,
		Value:            balance * price.RedemptionPrice,
		PartialPrices:    price.Partial,
		ObservedAt:       time.Now(),
	}

	if m.cfg.Exposure && m.exposure != nil {
		exp, err := m.exposure.Calculate(ctx, balance, t.Network)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("exposure: %w", err)
		}
		o.Exposure = exp
	}

	if m.cfg.EntryPrices && t.Feed != nil {
		records := t.Feed.GetUserTransactions(ctx, t.Contract, user)
		if entry := averager.AverageMintPrice(records); entry > 0 {
			o.EntryPrice = entry
			o.PnL = (price.RedemptionPrice - entry) * balance
		}
	}
	return o, nil
}

// Close releases the emitter.
func (m *Monitor) Close() error {
	return m.buffer.Close()
}
