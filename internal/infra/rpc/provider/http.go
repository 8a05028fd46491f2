package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// maxErrorRate marks a provider unavailable once exceeded.
const maxErrorRate = 0.5

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result any       `json:"result"`
	Error  *RPCError `json:"error"`
}

// callStats accumulates the outcome of calls against one endpoint.
type callStats struct {
	mu        sync.RWMutex
	successes int
	failures  int
	latency   time.Duration // summed over successes
	lastOK    time.Time
	lastFail  time.Time
}

func (s *callStats) success(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes++
	s.latency += latency
	s.lastOK = time.Now()
}

func (s *callStats) failure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	s.lastFail = time.Now()
}

func (s *callStats) snapshot() HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := HealthStatus{
		Available:     true,
		LastSuccessAt: s.lastOK,
		LastFailureAt: s.lastFail,
	}
	if total := s.successes + s.failures; total > 0 {
		h.ErrorRate = float64(s.failures) / float64(total)
		h.Available = h.ErrorRate <= maxErrorRate
	}
	if s.successes > 0 {
		h.Latency = s.latency / time.Duration(s.successes)
	}
	return h
}

// HTTPProvider implements RPCProvider for JSON-RPC over HTTP.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64
	stats      callStats

	Monitor *ProviderMonitor
}

// NewHTTPProvider creates a JSON-RPC provider for endpoint.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Monitor: NewProviderMonitor(),
	}
}

// Call makes a single JSON-RPC call. Transport and throttling failures wrap
// domain.ErrTransientFetch; a malformed envelope wraps domain.ErrDataShape;
// node errors are returned as *RPCError.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (any, error) {
	switch p.Monitor.CheckProviderStatus() {
	case StatusThrottled:
		return nil, fmt.Errorf("%w: %s throttled, retry after %v", domain.ErrTransientFetch, p.name, p.Monitor.GetRetryAfter())
	case StatusBlocked:
		return nil, fmt.Errorf("%w: %s blocked, retry after %v", domain.ErrTransientFetch, p.name, p.Monitor.GetRetryAfter())
	}

	if params == nil {
		params = []any{}
	}

	start := time.Now()
	body, err := p.post(ctx, rpcRequest{JSONRPC: "2.0", ID: p.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		p.stats.failure()
		return nil, err
	}
	latency := time.Since(start)

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.stats.failure()
		return nil, fmt.Errorf("%w: %s response: %v", domain.ErrDataShape, method, err)
	}
	if resp.Error != nil {
		p.stats.failure()
		if p.Monitor.DetectThrottlePattern(resp.Error.Message) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTransientFetch, resp.Error)
		}
		return nil, resp.Error
	}

	p.Monitor.RecordRequest(latency)
	p.stats.success(latency)
	return resp.Result, nil
}

// post sends one request and returns the body of a 200 response.
func (p *HTTPProvider) post(ctx context.Context, payload rpcRequest) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrConfiguration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrTransientFetch, p.name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		p.Monitor.RecordThrottle(resp.StatusCode, retryAfter)
		return nil, fmt.Errorf("%w: %s rate limited (429), retry after %q", domain.ErrTransientFetch, p.name, retryAfter)
	case http.StatusForbidden:
		p.Monitor.RecordThrottle(resp.StatusCode, "")
		return nil, fmt.Errorf("%w: %s blocked (403)", domain.ErrTransientFetch, p.name)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if p.Monitor.DetectThrottlePattern(string(snippet)) {
			p.Monitor.RecordThrottle(http.StatusTooManyRequests, "")
		}
		return nil, fmt.Errorf("%w: %s http %d: %s", domain.ErrTransientFetch, p.name, resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", domain.ErrTransientFetch, p.name, err)
	}
	return body, nil
}

func (p *HTTPProvider) GetName() string {
	return p.name
}

// GetHealth merges call statistics with the rate monitor's view.
func (p *HTTPProvider) GetHealth() HealthStatus {
	h := p.stats.snapshot()
	stats := p.Monitor.GetStats()
	h.MonitorStats = &stats
	return h
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// IsAvailable reports whether the rate monitor still allows calls.
func (p *HTTPProvider) IsAvailable() bool {
	status := p.Monitor.CheckProviderStatus()
	return status == StatusHealthy || status == StatusDegraded
}
