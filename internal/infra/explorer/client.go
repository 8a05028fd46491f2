// Package explorer is a client for Etherscan-compatible block explorer APIs
// (Arbiscan, Snowtrace).
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/metrics"
)

// PageSize is the number of rows requested per page.
const PageSize = 1000

// TokenTransfer is one row of the tokentx listing.
type TokenTransfer struct {
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	TokenDecimal    string `json:"tokenDecimal"`
	ContractAddress string `json:"contractAddress"`
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	FunctionName    string `json:"functionName"`
}

type logEntry struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	LogIndex        string   `json:"logIndex"`
	TransactionHash string   `json:"transactionHash"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client queries one explorer endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates an explorer client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        slog.Default().With("component", "explorer"),
	}
}

// GetLogs pages through logs/getLogs for [from, to]. A failed page aborts the walk.
func (c *Client) GetLogs(
	ctx context.Context,
	contract string,
	from, to uint64,
	topic string,
) ([]domain.RawLog, error) {
	var out []domain.RawLog

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("module", "logs")
		q.Set("action", "getLogs")
		q.Set("address", contract)
		q.Set("fromBlock", strconv.FormatUint(from, 10))
		q.Set("toBlock", strconv.FormatUint(to, 10))
		if topic != "" {
			q.Set("topic0", topic)
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("offset", strconv.Itoa(PageSize))

		var entries []logEntry
		found, err := c.get(ctx, q, &entries)
		if err != nil {
			return nil, fmt.Errorf("getLogs page %d: %w", page, err)
		}
		if !found {
			break
		}

		for _, e := range entries {
			l, err := e.toRawLog()
			if err != nil {
				c.log.Warn("skip malformed explorer log", "tx", e.TransactionHash, "error", err)
				continue
			}
			out = append(out, l)
		}

		if len(entries) < PageSize {
			break
		}
	}

	return out, nil
}

// TokenTransfers lists transfers of contract involving account, oldest first.
func (c *Client) TokenTransfers(ctx context.Context, contract, account string) ([]TokenTransfer, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "tokentx")
	q.Set("contractaddress", contract)
	q.Set("address", account)
	q.Set("sort", "asc")

	var transfers []TokenTransfer
	if _, err := c.get(ctx, q, &transfers); err != nil {
		return nil, fmt.Errorf("tokentx: %w", err)
	}
	return transfers, nil
}

// get performs one API request. found is false when the explorer reports no records.
func (c *Client) get(ctx context.Context, q url.Values, out any) (found bool, err error) {
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("explorer").Inc()
		return false, fmt.Errorf("%w: explorer request: %v", domain.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: read response: %v", domain.ErrTransientFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamErrorsTotal.WithLabelValues("explorer").Inc()
		return false, fmt.Errorf("%w: explorer http %d", domain.ErrTransientFetch, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false, fmt.Errorf("%w: decode envelope: %v", domain.ErrDataShape, err)
	}

	if env.Status != "1" {
		if strings.HasPrefix(strings.ToLower(env.Message), "no ") {
			return false, nil
		}
		metrics.UpstreamErrorsTotal.WithLabelValues("explorer").Inc()
		// result carries the reason as a string, e.g. "Max rate limit reached"
		var reason string
		_ = json.Unmarshal(env.Result, &reason)
		return false, fmt.Errorf("%w: explorer status %q: %s %s", domain.ErrTransientFetch, env.Status, env.Message, reason)
	}

	if err := json.Unmarshal(env.Result, out); err != nil {
		return false, fmt.Errorf("%w: decode result: %v", domain.ErrDataShape, err)
	}
	return true, nil
}

func (e logEntry) toRawLog() (domain.RawLog, error) {
	l := domain.RawLog{
		Address: strings.ToLower(e.Address),
		TxHash:  e.TransactionHash,
	}
	for _, t := range e.Topics {
		if t != "" {
			l.Topics = append(l.Topics, strings.ToLower(t))
		}
	}

	if e.Data != "" && e.Data != "0x" {
		data, err := hexutil.Decode(e.Data)
		if err != nil {
			return l, fmt.Errorf("%w: data: %v", domain.ErrDataShape, err)
		}
		l.Data = data
	}

	var err error
	if l.BlockNumber, err = parseQuantity(e.BlockNumber); err != nil {
		return l, fmt.Errorf("%w: block number: %v", domain.ErrDataShape, err)
	}
	idx, err := parseQuantity(e.LogIndex)
	if err != nil {
		return l, fmt.Errorf("%w: log index: %v", domain.ErrDataShape, err)
	}
	l.LogIndex = uint(idx)

	return l, nil
}

// parseQuantity accepts hex or decimal. Explorers send "0x" for zero.
func parseQuantity(s string) (uint64, error) {
	switch s {
	case "", "0x":
		return 0, nil
	}
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
