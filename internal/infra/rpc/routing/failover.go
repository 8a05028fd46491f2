// Package routing handles provider failover for a network.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/infra/rpc/provider"
	"github.com/Thisisily/glp-monitor/internal/metrics"
)

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionFailover ErrorAction = iota
	ActionFatal
)

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFailover
	}

	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
		switch rpcErr.Code {
		case -32700, -32600, -32601, -32602:
			return ActionFatal
		}
		if strings.Contains(strings.ToLower(rpcErr.Message), "execution reverted") {
			return ActionFatal
		}
	}

	return ActionFailover
}

// Client calls providers of one network in order, trying each once.
type Client struct {
	network   domain.Network
	providers []provider.RPCProvider
	log       *slog.Logger
}

// NewClient creates a failover client. Providers are tried in the given order.
func NewClient(network domain.Network, providers ...provider.RPCProvider) *Client {
	return &Client{
		network:   network,
		providers: providers,
		log:       slog.Default().With("component", "rpc", "network", network),
	}
}

// Providers returns the configured providers.
func (c *Client) Providers() []provider.RPCProvider {
	return c.providers
}

// Call executes method against the first provider that answers.
// Unavailable providers are skipped unless every provider is unavailable.
// Exhausting all providers yields an error wrapping domain.ErrTransientFetch.
func (c *Client) Call(ctx context.Context, method string, params []any) (any, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers for network %s", domain.ErrConfiguration, c.network)
	}

	var lastErr error
	for _, p := range c.ordered() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := p.Call(ctx, method, params)
		latency := time.Since(start)

		metrics.RPCCallsTotal.WithLabelValues(c.network.String(), p.GetName(), method).Inc()
		metrics.RPCLatency.WithLabelValues(c.network.String(), p.GetName(), method).Observe(latency.Seconds())

		if err == nil {
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if ClassifyError(err) == ActionFatal {
			metrics.RPCErrorsTotal.WithLabelValues(c.network.String(), p.GetName(), "fatal").Inc()
			return nil, fmt.Errorf("fatal error from provider %s: %w", p.GetName(), err)
		}

		metrics.RPCErrorsTotal.WithLabelValues(c.network.String(), p.GetName(), "failover").Inc()
		c.log.Warn("provider call failed, failing over",
			"provider", p.GetName(),
			"method", method,
			"error", err,
		)
	}

	return nil, fmt.Errorf("%w: all providers failed for %s: %v", domain.ErrTransientFetch, method, lastErr)
}

func (c *Client) ordered() []provider.RPCProvider {
	available := make([]provider.RPCProvider, 0, len(c.providers))
	for _, p := range c.providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	if len(available) == 0 {
		return c.providers
	}
	return available
}

// Close closes every provider.
func (c *Client) Close() error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
