package config

import (
	"time"

	redisclient "github.com/Thisisily/glp-monitor/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	PollInterval time.Duration      `yaml:"poll_interval"`
	Users        []string           `yaml:"users"`
	Networks     []NetworkConfig    `yaml:"networks"`
	Valuation    ValuationConfig    `yaml:"valuation"`
	Market       MarketConfig       `yaml:"market"`
	Redis        redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// NetworkConfig holds settings for one GLP deployment.
type NetworkConfig struct {
	Name         string            `yaml:"name"`
	GLPContract  string            `yaml:"glp_contract"`
	MintTopic    string            `yaml:"mint_topic"`
	MintContract string            `yaml:"mint_contract"` // emitter of mint events; defaults to glp_contract
	Providers    []ProviderConfig  `yaml:"providers"`
	Explorer     ExplorerConfig    `yaml:"explorer"`
	StatsURL     string            `yaml:"stats_url"`    // GMX stats API, pool composition
	SubgraphURL  string            `yaml:"subgraph_url"` // GMX stats subgraph, pool AUM and supply
	HedgeURL     string            `yaml:"hedge_url"`    // open positions feed; empty = no adjustment
	Tokens       map[string]string `yaml:"tokens"`       // address -> symbol, overrides the default table
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ExplorerConfig holds an Etherscan-compatible API endpoint.
type ExplorerConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// ValuationConfig tunes the price reconciler and exposure calculator.
type ValuationConfig struct {
	Decimals         int32    `yaml:"decimals"`
	WindowBlocks     uint64   `yaml:"window_blocks"`
	LookbackBlocks   uint64   `yaml:"lookback_blocks"`
	PriceWord        int      `yaml:"price_word"`
	HistorySource    string   `yaml:"history_source"`    // chain, explorer
	RedemptionSource string   `yaml:"redemption_source"` // sentinel, pool_stats
	Stablecoins      []string `yaml:"stablecoins"`
	EntryPrices      bool     `yaml:"entry_prices"` // fetch user transactions for entry price and PnL
	Exposure         bool     `yaml:"exposure"`     // compute per-token exposure each cycle
}

// MarketConfig holds off-chain price feed settings.
type MarketConfig struct {
	PriceAPIURL   string        `yaml:"price_api_url"`
	PriceAPIKey   string        `yaml:"price_api_key"`
	PriceCacheTTL time.Duration `yaml:"price_cache_ttl"`
	Timeout       time.Duration `yaml:"timeout"`
}

const (
	HistorySourceChain    = "chain"
	HistorySourceExplorer = "explorer"

	RedemptionSentinel  = "sentinel"
	RedemptionPoolStats = "pool_stats"
)
