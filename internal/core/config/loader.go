package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// Load reads configuration from a YAML file, fills optional fields and validates it.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content. ${VAR} references are expanded from the environment.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills the optional fields only.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 60 * time.Second
	}

	v := &c.Valuation
	if v.Decimals == 0 {
		v.Decimals = domain.DefaultDecimals
	}
	if v.WindowBlocks == 0 {
		v.WindowBlocks = 2048
	}
	if v.LookbackBlocks == 0 {
		v.LookbackBlocks = 20000
	}
	if v.HistorySource == "" {
		v.HistorySource = HistorySourceChain
	}
	if v.RedemptionSource == "" {
		v.RedemptionSource = RedemptionSentinel
	}

	if c.Market.PriceAPIURL == "" {
		c.Market.PriceAPIURL = "https://min-api.cryptocompare.com"
	}
	if c.Market.PriceCacheTTL == 0 {
		c.Market.PriceCacheTTL = 30 * time.Second
	}
	if c.Market.Timeout == 0 {
		c.Market.Timeout = 15 * time.Second
	}

	for i := range c.Networks {
		if c.Networks[i].MintContract == "" {
			c.Networks[i].MintContract = c.Networks[i].GLPContract
		}
		for j := range c.Networks[i].Providers {
			if c.Networks[i].Providers[j].Timeout == 0 {
				c.Networks[i].Providers[j].Timeout = 10 * time.Second
			}
		}
	}
}

// Validate checks required fields. Every failure is a *domain.ConfigError.
func (c *AppConfig) Validate() error {
	if len(c.Users) == 0 {
		return &domain.ConfigError{Field: "users", Reason: "at least one address required"}
	}
	for i, u := range c.Users {
		if !common.IsHexAddress(u) {
			return &domain.ConfigError{Field: fmt.Sprintf("users[%d]", i), Reason: fmt.Sprintf("invalid address %q", u)}
		}
	}

	switch c.Valuation.HistorySource {
	case HistorySourceChain, HistorySourceExplorer:
	default:
		return &domain.ConfigError{Field: "valuation.history_source", Reason: fmt.Sprintf("unknown source %q", c.Valuation.HistorySource)}
	}
	switch c.Valuation.RedemptionSource {
	case RedemptionSentinel, RedemptionPoolStats:
	default:
		return &domain.ConfigError{Field: "valuation.redemption_source", Reason: fmt.Sprintf("unknown source %q", c.Valuation.RedemptionSource)}
	}
	if c.Valuation.PriceWord < 0 {
		return &domain.ConfigError{Field: "valuation.price_word", Reason: "must not be negative"}
	}

	if len(c.Networks) == 0 {
		return &domain.ConfigError{Field: "networks", Reason: "at least one network required"}
	}

	seen := make(map[domain.Network]bool)
	for i, n := range c.Networks {
		field := fmt.Sprintf("networks[%d]", i)

		network, err := domain.ParseNetwork(n.Name)
		if err != nil {
			return &domain.ConfigError{Field: field + ".name", Reason: err.Error()}
		}
		if seen[network] {
			return &domain.ConfigError{Field: field + ".name", Reason: fmt.Sprintf("duplicate network %s", network)}
		}
		seen[network] = true

		if !common.IsHexAddress(n.GLPContract) {
			return &domain.ConfigError{Field: field + ".glp_contract", Reason: "missing or invalid address"}
		}
		if n.MintContract != "" && !common.IsHexAddress(n.MintContract) {
			return &domain.ConfigError{Field: field + ".mint_contract", Reason: "invalid address"}
		}
		if !isTopic(n.MintTopic) {
			return &domain.ConfigError{Field: field + ".mint_topic", Reason: "missing or invalid 32-byte topic"}
		}
		if len(n.Providers) == 0 {
			return &domain.ConfigError{Field: field + ".providers", Reason: "at least one provider required"}
		}
		for j, p := range n.Providers {
			if p.URL == "" {
				return &domain.ConfigError{Field: fmt.Sprintf("%s.providers[%d].url", field, j), Reason: "required"}
			}
		}

		if c.Valuation.HistorySource == HistorySourceExplorer || c.Valuation.EntryPrices {
			if n.Explorer.URL == "" {
				return &domain.ConfigError{Field: field + ".explorer.url", Reason: "required for explorer data"}
			}
			if n.Explorer.APIKey == "" {
				return &domain.ConfigError{Field: field + ".explorer.api_key", Reason: "required for explorer data"}
			}
		}
		if c.Valuation.RedemptionSource == RedemptionPoolStats && n.SubgraphURL == "" {
			return &domain.ConfigError{Field: field + ".subgraph_url", Reason: "required for pool_stats redemption"}
		}
		if c.Valuation.Exposure && n.StatsURL == "" {
			return &domain.ConfigError{Field: field + ".stats_url", Reason: "required for exposure"}
		}
	}

	return nil
}

// Network returns the config block for a network.
func (c *AppConfig) Network(n domain.Network) (NetworkConfig, bool) {
	for _, nc := range c.Networks {
		if parsed, err := domain.ParseNetwork(nc.Name); err == nil && parsed == n {
			return nc, true
		}
	}
	return NetworkConfig{}, false
}

func isTopic(s string) bool {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
