package exposure

import (
	"strings"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// Tables resolve pool token identifiers to display names and mark stablecoins.
type Tables struct {
	Symbols     map[domain.Network]map[string]string // lowercased address -> symbol
	Stablecoins map[string]bool
}

// DefaultStablecoins are damped toward 1 USD.
var DefaultStablecoins = []string{"USDC", "USDC.e", "USDT", "DAI", "FRAX", "MIM"}

// DefaultTables returns the GLP constituent tables for Arbitrum and Avalanche.
func DefaultTables() Tables {
	return Tables{
		Symbols: map[domain.Network]map[string]string{
			domain.NetworkArbitrum: lowerKeys(map[string]string{
				"0x82aF49447D8a07e3bd95BD0d56f35241523fBab1": "WETH",
				"0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f": "WBTC",
				"0xf97f4df75117a78c1A5a0DBb814Af92458539FB4": "LINK",
				"0xFa7F8980b0f1E64A2062791cc3b0871572f1F7f0": "UNI",
				"0xaf88d065e77c8cC2239327C5EDb3A432268e5831": "USDC",
				"0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8": "USDC.e",
				"0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9": "USDT",
				"0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1": "DAI",
				"0x17FC002b466eEc40DaE837Fc4bE5c67993ddBd6F": "FRAX",
				"0xFEa7a6a0B346362BF88A9e4A88416B77a57D6c2A": "MIM",
			}),
			domain.NetworkAvalanche: lowerKeys(map[string]string{
				"0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7": "WAVAX",
				"0x49D5c2BdFfac6CE2BFdB6640F4F80f226bc10bAB": "WETH.e",
				"0x50b7545627a5162F82A992c33b87aDc75187B218": "WBTC.e",
				"0x152b9d0FdC40C096757F570A51E494bd4b943E50": "BTC.b",
				"0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E": "USDC",
				"0xA7D7079b0FEaD91F3e65f86E8915Cb59c1a4C664": "USDC.e",
				"0x130966628846BFd36ff31a822705796e8cb8C18D": "MIM",
			}),
		},
		Stablecoins: stableSet(DefaultStablecoins),
	}
}

// WithOverrides returns a copy with extra address mappings for a network
// and, when non-empty, a replacement stablecoin allowlist.
func (t Tables) WithOverrides(network domain.Network, symbols map[string]string, stablecoins []string) Tables {
	out := Tables{
		Symbols:     make(map[domain.Network]map[string]string, len(t.Symbols)+1),
		Stablecoins: t.Stablecoins,
	}
	for n, m := range t.Symbols {
		cp := make(map[string]string, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out.Symbols[n] = cp
	}
	if len(symbols) > 0 {
		if out.Symbols[network] == nil {
			out.Symbols[network] = make(map[string]string, len(symbols))
		}
		for k, v := range symbols {
			out.Symbols[network][strings.ToLower(k)] = v
		}
	}
	if len(stablecoins) > 0 {
		out.Stablecoins = stableSet(stablecoins)
	}
	return out
}

// Resolve maps an identifier to its display name. Unknown identifiers pass through unchanged.
func (t Tables) Resolve(network domain.Network, id string) string {
	if name, ok := t.Symbols[network][strings.ToLower(id)]; ok {
		return name
	}
	return id
}

// IsStablecoin reports whether name is on the allowlist.
func (t Tables) IsStablecoin(name string) bool {
	return t.Stablecoins[name]
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func stableSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}
