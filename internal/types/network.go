package types

import (
	"fmt"
	"strings"
)

// Network is the closed enumeration of chains the payment core can route
// funds across. Trimmed from the original SDK's full Circle network list
// (core/types.py Network) down to the families spec.md's router and
// cross-chain adapter actually need: the EVM family, Solana, and a generic
// EVM fallback for chains without a dedicated constant.
type Network string

const (
	NetworkETH      Network = "ETH"
	NetworkArbitrum Network = "ARB"
	NetworkBase     Network = "BASE"
	NetworkPolygon  Network = "MATIC"
	NetworkOptimism Network = "OP"
	NetworkEVMOther Network = "EVM"
	NetworkSolana   Network = "SOL"
)

var allNetworks = []Network{
	NetworkETH, NetworkArbitrum, NetworkBase, NetworkPolygon, NetworkOptimism,
	NetworkEVMOther, NetworkSolana,
}

// ParseNetwork normalizes a free-form string into a Network, the Go
// equivalent of Network.from_string in the original SDK.
func ParseNetwork(s string) (Network, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for _, n := range allNetworks {
		if string(n) == upper {
			return n, nil
		}
	}
	return "", fmt.Errorf("types: unknown network %q", s)
}

// IsEVM reports whether the network uses EVM-style hex addresses.
func (n Network) IsEVM() bool {
	return n != NetworkSolana
}

// IsSolana reports whether the network uses Base58 addresses.
func (n Network) IsSolana() bool {
	return n == NetworkSolana
}
