package chain

import (
	"context"
	"math/big"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// DataPort defines the read-only chain access the valuation core needs.
// Values are raw on-chain integers; scaling happens in the core.
type DataPort interface {
	// GetBalance returns the ERC-20 balance of account on contract
	GetBalance(ctx context.Context, contract, account string) (*big.Int, error)

	// GetTotalSupply returns the ERC-20 total supply of contract
	GetTotalSupply(ctx context.Context, contract string) (*big.Int, error)

	// GetLogs returns logs emitted by contract in [from, to] whose first topic is topic
	GetLogs(ctx context.Context, contract string, from, to uint64, topic string) ([]domain.RawLog, error)

	// GetLatestBlock returns the latest block number on the network
	GetLatestBlock(ctx context.Context) (uint64, error)

	// GetReceiptLogs returns the logs of a mined transaction
	GetReceiptLogs(ctx context.Context, txHash string) ([]domain.RawLog, error)

	// Network returns the network this port reads from
	Network() domain.Network
}
