package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/infra/chain"
	"github.com/Thisisily/glp-monitor/internal/metrics"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

var parsedERC20 = mustParseABI(erc20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// RPCClient is the JSON-RPC surface the adapter needs.
type RPCClient interface {
	Call(ctx context.Context, method string, params []any) (any, error)
}

// EVMAdapter implements chain.DataPort over JSON-RPC.
type EVMAdapter struct {
	network domain.Network
	client  RPCClient
	log     *slog.Logger
}

var _ chain.DataPort = (*EVMAdapter)(nil)

func NewEVMAdapter(network domain.Network, client RPCClient) *EVMAdapter {
	return &EVMAdapter{
		network: network,
		client:  client,
		log:     slog.Default().With("component", "evm", "network", network),
	}
}

func (a *EVMAdapter) Network() domain.Network {
	return a.network
}

func (a *EVMAdapter) GetLatestBlock(ctx context.Context) (uint64, error) {
	result, err := a.client.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	blockHex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("%w: invalid block number response %T", domain.ErrDataShape, result)
	}

	height, err := hexutil.DecodeUint64(blockHex)
	if err != nil {
		return 0, fmt.Errorf("%w: block number %q: %v", domain.ErrDataShape, blockHex, err)
	}

	metrics.ChainLatestBlock.WithLabelValues(a.network.String()).Set(float64(height))
	return height, nil
}

func (a *EVMAdapter) GetBalance(ctx context.Context, contract, account string) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("%w: invalid account %q", domain.ErrConfiguration, account)
	}
	return a.callUint256(ctx, contract, "balanceOf", common.HexToAddress(account))
}

func (a *EVMAdapter) GetTotalSupply(ctx context.Context, contract string) (*big.Int, error) {
	return a.callUint256(ctx, contract, "totalSupply")
}

func (a *EVMAdapter) callUint256(ctx context.Context, contract, method string, args ...any) (*big.Int, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("%w: invalid contract %q", domain.ErrConfiguration, contract)
	}

	data, err := parsedERC20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	call := map[string]any{
		"to":   common.HexToAddress(contract).Hex(),
		"data": hexutil.Encode(data),
	}
	result, err := a.client.Call(ctx, "eth_call", []any{call, "latest"})
	if err != nil {
		return nil, fmt.Errorf("eth_call %s failed: %w", method, err)
	}

	out, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: invalid eth_call response %T", domain.ErrDataShape, result)
	}
	raw, err := hexutil.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_call %s: %v", domain.ErrDataShape, method, err)
	}

	values, err := parsedERC20.Unpack(method, raw)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("%w: unpack %s: %v", domain.ErrDataShape, method, err)
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", domain.ErrDataShape, method, values[0])
	}
	return n, nil
}

func (a *EVMAdapter) GetLogs(
	ctx context.Context,
	contract string,
	from, to uint64,
	topic string,
) ([]domain.RawLog, error) {
	filter := map[string]any{
		"address":   contract,
		"fromBlock": hexutil.EncodeUint64(from),
		"toBlock":   hexutil.EncodeUint64(to),
	}
	if topic != "" {
		filter["topics"] = []any{topic}
	}

	result, err := a.client.Call(ctx, "eth_getLogs", []any{filter})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs [%d, %d] failed: %w", from, to, err)
	}
	if result == nil {
		return nil, nil
	}

	rawLogs, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid logs response %T", domain.ErrDataShape, result)
	}
	return a.parseLogs(rawLogs), nil
}

func (a *EVMAdapter) GetReceiptLogs(ctx context.Context, txHash string) ([]domain.RawLog, error) {
	result, err := a.client.Call(ctx, "eth_getTransactionReceipt", []any{txHash})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: receipt not found for %s", domain.ErrTransientFetch, txHash)
	}

	receipt, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid receipt format", domain.ErrDataShape)
	}
	if st, ok := receipt["status"].(string); ok && st == "0x0" {
		return nil, nil
	}

	rawLogs, ok := receipt["logs"].([]any)
	if !ok {
		return nil, nil
	}
	return a.parseLogs(rawLogs), nil
}

func (a *EVMAdapter) parseLogs(rawLogs []any) []domain.RawLog {
	logs := make([]domain.RawLog, 0, len(rawLogs))
	for i, raw := range rawLogs {
		entry, ok := raw.(map[string]any)
		if !ok {
			a.log.Warn("skip malformed log", "index", i)
			continue
		}

		l, err := parseLog(entry)
		if err != nil {
			a.log.Warn("skip malformed log", "index", i, "error", err)
			continue
		}
		logs = append(logs, l)
	}
	return logs
}

func parseLog(raw map[string]any) (domain.RawLog, error) {
	var l domain.RawLog

	l.Address = strings.ToLower(getString(raw["address"]))
	l.TxHash = getString(raw["transactionHash"])

	if topics, ok := raw["topics"].([]any); ok {
		for _, t := range topics {
			l.Topics = append(l.Topics, strings.ToLower(getString(t)))
		}
	}

	if d := getString(raw["data"]); d != "" && d != "0x" {
		data, err := hexutil.Decode(d)
		if err != nil {
			return l, fmt.Errorf("%w: log data: %v", domain.ErrDataShape, err)
		}
		l.Data = data
	}

	if bn := getString(raw["blockNumber"]); bn != "" {
		n, err := hexutil.DecodeUint64(bn)
		if err != nil {
			return l, fmt.Errorf("%w: log block number: %v", domain.ErrDataShape, err)
		}
		l.BlockNumber = n
	}
	if li := getString(raw["logIndex"]); li != "" {
		n, err := hexutil.DecodeUint64(li)
		if err != nil {
			return l, fmt.Errorf("%w: log index: %v", domain.ErrDataShape, err)
		}
		l.LogIndex = uint(n)
	}

	return l, nil
}

func getString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
