package domain

import (
	"fmt"
	"strings"
)

// Network identifies an independent GLP deployment.
type Network string

const (
	NetworkArbitrum  Network = "arbitrum"
	NetworkAvalanche Network = "avalanche"
)

// NetworkChainIDs maps each supported network to its EVM chain id.
var NetworkChainIDs = map[Network]uint64{
	NetworkArbitrum:  42161,
	NetworkAvalanche: 43114,
}

// SupportedNetworks returns the networks in a stable order.
func SupportedNetworks() []Network {
	return []Network{NetworkArbitrum, NetworkAvalanche}
}

// ParseNetwork resolves a configured network name. Unknown names are a
// configuration error, never a transient one.
func ParseNetwork(name string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := NetworkChainIDs[n]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, name)
	}
	return n, nil
}

func (n Network) String() string {
	return string(n)
}
