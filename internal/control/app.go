// Package control wires configuration into a running GLP monitor.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/config"
	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/health"
	"github.com/Thisisily/glp-monitor/internal/infra/chain"
	"github.com/Thisisily/glp-monitor/internal/infra/chain/evm"
	"github.com/Thisisily/glp-monitor/internal/infra/explorer"
	"github.com/Thisisily/glp-monitor/internal/infra/feed"
	"github.com/Thisisily/glp-monitor/internal/infra/market"
	redisclient "github.com/Thisisily/glp-monitor/internal/infra/redis"
	"github.com/Thisisily/glp-monitor/internal/infra/rpc/provider"
	"github.com/Thisisily/glp-monitor/internal/infra/rpc/routing"
	"github.com/Thisisily/glp-monitor/internal/monitor"
	"github.com/Thisisily/glp-monitor/internal/valuation/exposure"
	"github.com/Thisisily/glp-monitor/internal/valuation/reconciler"
)

// headTTL bounds how long a chain head is reused between the reconciler and health checks.
const headTTL = 10 * time.Second

// Network bundles the per-network components.
type Network struct {
	Config  config.NetworkConfig
	RPC     *routing.Client
	Chain   *evm.EVMAdapter
	Head    *chain.HeadCache
	Feed    *feed.Feed // nil unless entry prices are enabled
	History reconciler.HistoricalPriceSource
}

// App is the assembled monitor with its supporting services.
type App struct {
	cfg          *config.AppConfig
	networks     map[domain.Network]*Network
	market       *market.Client
	reconciler   *reconciler.Reconciler
	calculator   *exposure.Calculator
	monitor      *monitor.Monitor
	tracker      *health.Tracker
	healthServer *health.Server
	redisClient  *redisclient.Client
	done         chan struct{}
	log          *slog.Logger
}

// New builds every component from a validated configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{
		cfg:      cfg,
		networks: make(map[domain.Network]*Network, len(cfg.Networks)),
		log:      slog.Default().With("component", "app"),
	}

	// 1. Price feed, optionally behind Redis
	var prices market.SpotPricer = market.NewPriceClient(cfg.Market.PriceAPIURL, cfg.Market.PriceAPIKey, cfg.Market.Timeout)
	if cfg.Redis.Enabled() {
		rc, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			a.log.Warn("redis unavailable, price cache disabled", "error", err)
		} else {
			a.redisClient = rc
			prices = redisclient.NewPriceCache(rc, prices, cfg.Market.PriceCacheTTL)
			a.log.Info("price cache enabled", "ttl", cfg.Market.PriceCacheTTL)
		}
	}

	endpoints := make(map[domain.Network]market.Endpoints, len(cfg.Networks))
	tables := exposure.DefaultTables()
	reconcilerSources := make(map[domain.Network]reconciler.Sources, len(cfg.Networks))
	providers := make(map[domain.Network][]provider.Provider, len(cfg.Networks))
	heads := make(map[domain.Network]chain.HeadReader, len(cfg.Networks))
	var targets []monitor.Target

	// 2. Per-network chain access and data sources
	for _, nc := range cfg.Networks {
		network, err := domain.ParseNetwork(nc.Name)
		if err != nil {
			return nil, err
		}

		rpcProviders := make([]provider.RPCProvider, 0, len(nc.Providers))
		for _, p := range nc.Providers {
			hp := provider.NewHTTPProvider(p.Name, p.URL, p.Timeout)
			rpcProviders = append(rpcProviders, hp)
			providers[network] = append(providers[network], hp)
		}
		client := routing.NewClient(network, rpcProviders...)
		adapter := evm.NewEVMAdapter(network, client)

		n := &Network{Config: nc, RPC: client, Chain: adapter, Head: chain.NewHeadCache(adapter, headTTL)}
		heads[network] = n.Head

		var explorerClient *explorer.Client
		if nc.Explorer.URL != "" {
			explorerClient = explorer.NewClient(nc.Explorer.URL, nc.Explorer.APIKey, cfg.Market.Timeout)
		}

		var history *reconciler.LogSource
		switch cfg.Valuation.HistorySource {
		case config.HistorySourceExplorer:
			if explorerClient == nil {
				return nil, &domain.ConfigError{Field: "networks." + nc.Name + ".explorer.url", Reason: "required for explorer history"}
			}
			history = reconciler.NewExplorerSource(explorerClient, nc.MintTopic)
		default:
			history = reconciler.NewChainSource(adapter, nc.MintTopic)
		}
		n.History = history
		reconcilerSources[network] = reconciler.Sources{History: history, Head: n.Head}

		if cfg.Valuation.EntryPrices && explorerClient != nil {
			n.Feed = feed.NewFeed(network, explorerClient, adapter)
		}

		endpoints[network] = market.Endpoints{
			Stats:     optional(nc.StatsURL, func(u string) *market.StatsClient { return market.NewStatsClient(u, cfg.Market.Timeout) }),
			Positions: optional(nc.HedgeURL, func(u string) *market.PositionsClient { return market.NewPositionsClient(u, cfg.Market.Timeout) }),
			Subgraph:  optional(nc.SubgraphURL, func(u string) *market.SubgraphClient { return market.NewSubgraphClient(u, cfg.Market.Timeout) }),
		}
		tables = tables.WithOverrides(network, nc.Tokens, nil)

		target := monitor.Target{
			Network:      network,
			Contract:     nc.GLPContract,
			MintContract: nc.MintContract,
			Balances:     adapter,
		}
		if n.Feed != nil {
			target.Feed = n.Feed
		}
		targets = append(targets, target)
		a.networks[network] = n

		a.log.Info("network configured",
			"network", network,
			"contract", nc.GLPContract,
			"providers", len(rpcProviders),
			"history", history.Name(),
		)
	}
	if len(cfg.Valuation.Stablecoins) > 0 {
		tables = tables.WithOverrides("", nil, cfg.Valuation.Stablecoins)
	}

	// 3. Valuation
	a.market = market.NewClient(prices, endpoints)

	var redemption reconciler.RedemptionSource = reconciler.Sentinel{}
	if cfg.Valuation.RedemptionSource == config.RedemptionPoolStats {
		redemption = reconciler.NewPoolStats(a.market)
	}
	a.reconciler = reconciler.New(reconciler.Config{
		WindowSize: cfg.Valuation.WindowBlocks,
		Decimals:   cfg.Valuation.Decimals,
		PriceWord:  cfg.Valuation.PriceWord,
	}, redemption, reconcilerSources)
	a.calculator = exposure.NewCalculator(a.market, tables)

	// 4. Monitor and health
	a.tracker = health.NewTracker(cfg.PollInterval, providers, heads)
	a.healthServer = health.NewServer(a.tracker, cfg.Server.Port)
	a.monitor = monitor.New(monitor.Config{
		Interval:       cfg.PollInterval,
		Users:          cfg.Users,
		Decimals:       cfg.Valuation.Decimals,
		LookbackBlocks: cfg.Valuation.LookbackBlocks,
		Exposure:       cfg.Valuation.Exposure,
		EntryPrices:    cfg.Valuation.EntryPrices,
	}, targets, a.reconciler, monitor.NewLogEmitter(nil),
		monitor.WithExposure(a.calculator),
		monitor.WithCycleHook(a.tracker.RecordCycle),
	)

	return a, nil
}

// optional builds a client for a non-empty URL and returns nil otherwise.
func optional[T any](url string, build func(string) *T) *T {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	return build(url)
}

// Start launches the health server and the monitor loop.
func (a *App) Start(ctx context.Context) error {
	if a.done != nil {
		return errors.New("app already started")
	}
	a.done = make(chan struct{})

	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("health server failed", "error", err)
		}
	}()
	a.log.Info("health server listening", "port", a.cfg.Server.Port)

	go func() {
		defer close(a.done)
		if err := a.monitor.Run(ctx); err != nil {
			a.log.Error("monitor failed", "error", err)
		}
	}()
	return nil
}

// Stop waits for the monitor to finish its current cycle and releases resources.
// The caller cancels the context passed to Start first.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping monitor")

	var errs []error
	if a.done != nil {
		select {
		case <-a.done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("monitor did not stop: %w", ctx.Err()))
		}
	}

	if err := a.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health server: %w", err))
	}
	return errors.Join(append(errs, a.Close())...)
}

// Close releases network clients without touching the loop.
func (a *App) Close() error {
	var errs []error
	if err := a.monitor.Close(); err != nil {
		errs = append(errs, err)
	}
	for network, n := range a.networks {
		if err := n.RPC.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s rpc: %w", network, err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("failed to close redis", "error", err)
		}
	}
	return errors.Join(errs...)
}

// RunOnce runs a single monitoring cycle.
func (a *App) RunOnce(ctx context.Context) (monitor.CycleReport, error) {
	return a.monitor.RunOnce(ctx)
}

// Networks returns the configured networks in configuration order.
func (a *App) Networks() []domain.Network {
	out := make([]domain.Network, 0, len(a.cfg.Networks))
	for _, nc := range a.cfg.Networks {
		if n, err := domain.ParseNetwork(nc.Name); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// Exposure reads the user's GLP balance on network and breaks it down per asset.
func (a *App) Exposure(ctx context.Context, user string, network domain.Network) (exposure.Breakdown, error) {
	n, ok := a.networks[network]
	if !ok {
		return exposure.Breakdown{}, fmt.Errorf("%w: %s is not configured", domain.ErrUnsupportedNetwork, network)
	}

	raw, err := n.Chain.GetBalance(ctx, n.Config.GLPContract, user)
	if err != nil {
		return exposure.Breakdown{}, fmt.Errorf("balance: %w", err)
	}
	return a.calculator.Breakdown(ctx, domain.ScaleUnits(raw, a.cfg.Valuation.Decimals), network)
}

// PoolStats returns the pool AUM and GLP supply for network.
func (a *App) PoolStats(ctx context.Context, network domain.Network) (market.PoolStats, error) {
	return a.market.GetPoolStats(ctx, network)
}

// PoolSupply returns the scaled GLP total supply read on chain.
func (a *App) PoolSupply(ctx context.Context, network domain.Network) (float64, error) {
	n, ok := a.networks[network]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not configured", domain.ErrUnsupportedNetwork, network)
	}
	raw, err := n.Chain.GetTotalSupply(ctx, n.Config.GLPContract)
	if err != nil {
		return 0, err
	}
	return domain.ScaleUnits(raw, a.cfg.Valuation.Decimals), nil
}

// Health returns the current health report.
func (a *App) Health(ctx context.Context) health.HealthReport {
	return a.tracker.CheckHealth(ctx)
}
