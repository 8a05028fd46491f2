package health

import (
	"context"
	"sync"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/infra/chain"
	"github.com/Thisisily/glp-monitor/internal/infra/rpc/provider"
	"github.com/Thisisily/glp-monitor/internal/monitor"
)

// staleCycles is how many intervals may pass without a completed cycle before the system is critical.
const staleCycles = 3

// Tracker aggregates cycle outcomes and provider state into a health report.
type Tracker struct {
	interval  time.Duration
	providers map[domain.Network][]provider.Provider
	heads     map[domain.Network]chain.HeadReader
	now       func() time.Time

	mu        sync.RWMutex
	last      *monitor.CycleReport
	completed int
	cancelled int
}

// NewTracker creates a tracker for a monitor running every interval.
// heads may be nil; when set, each check reads the chain head per network.
func NewTracker(
	interval time.Duration,
	providers map[domain.Network][]provider.Provider,
	heads map[domain.Network]chain.HeadReader,
) *Tracker {
	if interval <= 0 {
		interval = monitor.DefaultInterval
	}
	return &Tracker{
		interval:  interval,
		providers: providers,
		heads:     heads,
		now:       time.Now,
	}
}

// RecordCycle stores the outcome of a cycle. Interrupted cycles only bump a counter.
func (t *Tracker) RecordCycle(r monitor.CycleReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.Interrupted {
		t.cancelled++
		return
	}
	t.completed++
	t.last = &r
}

// CheckHealth builds the current report.
func (t *Tracker) CheckHealth(ctx context.Context) HealthReport {
	heads := t.readHeads(ctx)

	t.mu.RLock()
	defer t.mu.RUnlock()

	report := HealthReport{
		SystemStatus:    StatusHealthy,
		CyclesCompleted: t.completed,
		CyclesCancelled: t.cancelled,
		Networks:        make(map[string]NetworkHealth, len(t.providers)),
	}

	for network, providers := range t.providers {
		report.Networks[network.String()] = NetworkHealth{
			Network:   network.String(),
			Status:    StatusHealthy,
			Providers: providerHealth(providers),
		}
	}

	if t.last != nil {
		report.LastCycleID = t.last.ID
		report.LastCycleAt = t.last.StartedAt
		report.CycleDuration = t.last.Duration

		for network, res := range t.last.Prices {
			h := report.Networks[network.String()]
			h.Network = network.String()
			h.AverageMintPrice = res.AverageMintPrice
			h.RedemptionPrice = res.RedemptionPrice
			h.PartialPrices = res.Partial
			report.Networks[network.String()] = h
		}
		for _, o := range t.last.Observations {
			h := report.Networks[o.Network.String()]
			h.Observations++
			report.Networks[o.Network.String()] = h
		}
		for _, f := range t.last.Failures {
			if f.Network == "" {
				continue
			}
			h := report.Networks[f.Network.String()]
			h.Failures++
			report.Networks[f.Network.String()] = h
		}
	}

	for network, head := range heads {
		h := report.Networks[network.String()]
		h.Network = network.String()
		h.LatestBlock = head.block
		if head.err != nil {
			h.HeadError = head.err.Error()
		}
		report.Networks[network.String()] = h
	}

	for name, h := range report.Networks {
		h.Status = evaluate(h, t.last != nil)
		report.Networks[name] = h
		report.SystemStatus = worst(report.SystemStatus, h.Status)
	}

	if t.last == nil {
		report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
	} else if t.now().Sub(t.last.StartedAt) > staleCycles*t.interval+t.last.Duration {
		report.SystemStatus = StatusCritical
	}
	return report
}

type headResult struct {
	block uint64
	err   error
}

func (t *Tracker) readHeads(ctx context.Context) map[domain.Network]headResult {
	out := make(map[domain.Network]headResult, len(t.heads))
	for network, reader := range t.heads {
		block, err := reader.GetLatestBlock(ctx)
		out[network] = headResult{block: block, err: err}
	}
	return out
}

func evaluate(h NetworkHealth, haveCycle bool) SystemStatus {
	if len(h.Providers) > 0 {
		available := 0
		for _, p := range h.Providers {
			if p.Available {
				available++
			}
		}
		if available == 0 {
			return StatusCritical
		}
	}
	if h.HeadError != "" {
		return StatusDegraded
	}
	if !haveCycle {
		return StatusHealthy
	}
	if h.Failures > 0 && h.Observations == 0 {
		return StatusCritical
	}
	if h.Failures > 0 || h.PartialPrices {
		return StatusDegraded
	}
	return StatusHealthy
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func providerHealth(providers []provider.Provider) []ProviderHealth {
	out := make([]ProviderHealth, 0, len(providers))
	for _, p := range providers {
		hs := p.GetHealth()
		ph := ProviderHealth{
			Name:      p.GetName(),
			Available: p.IsAvailable(),
			Latency:   hs.Latency,
			ErrorRate: hs.ErrorRate,
		}
		if hs.MonitorStats != nil {
			ph.Status = hs.MonitorStats.Status
		}
		out = append(out, ph)
	}
	return out
}
