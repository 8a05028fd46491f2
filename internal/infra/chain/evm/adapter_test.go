package evm

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

// MockProvider implements RPCClient for testing
type MockProvider struct {
	CallFunc func(ctx context.Context, method string, params []any) (any, error)
}

func (m *MockProvider) Call(ctx context.Context, method string, params []any) (any, error) {
	if m.CallFunc != nil {
		return m.CallFunc(ctx, method, params)
	}
	return nil, nil
}

const (
	glpAddr  = "0x4277f8F2c384827B5273592FF7CeBd9f2C1ac258"
	userAddr = "0x1111111111111111111111111111111111111111"
)

func word(n int64) string {
	return strings.TrimPrefix(hexutil.Encode(common.LeftPadBytes(big.NewInt(n).Bytes(), 32)), "0x")
}

func TestEVMAdapter_GetLatestBlock(t *testing.T) {
	mock := &MockProvider{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method == "eth_blockNumber" {
				return "0x12d687", nil // 1234567 in hex
			}
			return nil, nil
		},
	}

	adapter := NewEVMAdapter(domain.NetworkArbitrum, mock)
	height, err := adapter.GetLatestBlock(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if height != 1234567 {
		t.Errorf("expected height 1234567, got %d", height)
	}
}

func TestEVMAdapter_GetLatestBlock_BadShape(t *testing.T) {
	mock := &MockProvider{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			return 42.0, nil
		},
	}

	adapter := NewEVMAdapter(domain.NetworkArbitrum, mock)
	if _, err := adapter.GetLatestBlock(context.Background()); !errors.Is(err, domain.ErrDataShape) {
		t.Fatalf("expected data shape error, got %v", err)
	}
}

func TestEVMAdapter_GetBalance(t *testing.T) {
	mock := &MockProvider{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method != "eth_call" {
				t.Fatalf("unexpected method %s", method)
			}
			call := params[0].(map[string]any)
			data := call["data"].(string)

			// balanceOf(address) selector
			if !strings.HasPrefix(data, "0x70a08231") {
				t.Errorf("unexpected selector in %s", data)
			}
			if !strings.HasSuffix(data, strings.TrimPrefix(userAddr, "0x")) {
				t.Errorf("expected account in calldata, got %s", data)
			}
			if params[1] != "latest" {
				t.Errorf("expected latest block tag, got %v", params[1])
			}
			return "0x" + word(1500), nil
		},
	}

	adapter := NewEVMAdapter(domain.NetworkArbitrum, mock)
	bal, err := adapter.GetBalance(context.Background(), glpAddr, userAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Int64() != 1500 {
		t.Errorf("expected 1500, got %s", bal)
	}
}

func TestEVMAdapter_GetBalance_InvalidAccount(t *testing.T) {
	adapter := NewEVMAdapter(domain.NetworkArbitrum, &MockProvider{})
	if _, err := adapter.GetBalance(context.Background(), glpAddr, "nope"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEVMAdapter_GetTotalSupply(t *testing.T) {
	mock := &MockProvider{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			data := params[0].(map[string]any)["data"].(string)
			if data != "0x18160ddd" {
				t.Errorf("expected totalSupply selector, got %s", data)
			}
			return "0x" + word(7), nil
		},
	}

	adapter := NewEVMAdapter(domain.NetworkAvalanche, mock)
	supply, err := adapter.GetTotalSupply(context.Background(), glpAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if supply.Int64() != 7 {
		t.Errorf("expected 7, got %s", supply)
	}
}

func TestEVMAdapter_GetLogs(t *testing.T) {
	topic := "0x" + strings.Repeat("ab", 32)
	mock := &MockProvider{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method != "eth_getLogs" {
				t.Fatalf("unexpected method %s", method)
			}
			filter := params[0].(map[string]any)
			if filter["fromBlock"] != "0x64" || filter["toBlock"] != "0x863" {
				t.Errorf("unexpected range %v-%v", filter["fromBlock"], filter["toBlock"])
			}
			return []any{
				map[string]any{
					"address":         glpAddr,
					"topics":          []any{topic},
					"data":            "0x" + word(2),
					"blockNumber":     "0x65",
					"transactionHash": "0xaaa",
					"logIndex":        "0x3",
				},
				"garbage",
				map[string]any{
					"address": glpAddr,
					"data":    "0xzz",
				},
			}, nil
		},
	}

	adapter := NewEVMAdapter(domain.NetworkArbitrum, mock)
	logs, err := adapter.GetLogs(context.Background(), glpAddr, 100, 2147, topic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 well-formed log, got %d", len(logs))
	}

	l := logs[0]
	if l.BlockNumber != 101 || l.LogIndex != 3 || l.TxHash != "0xaaa" {
		t.Errorf("unexpected log %+v", l)
	}
	if len(l.Data) != 32 || l.Data[31] != 2 {
		t.Errorf("unexpected data %x", l.Data)
	}
	if l.Address != strings.ToLower(glpAddr) {
		t.Errorf("expected lowercased address, got %s", l.Address)
	}
}

func TestEVMAdapter_GetReceiptLogs(t *testing.T) {
	tests := []struct {
		name    string
		result  any
		want    int
		wantErr error
	}{
		{
			name: "success",
			result: map[string]any{
				"status": "0x1",
				"logs": []any{
					map[string]any{"address": glpAddr, "topics": []any{"0x01"}, "data": "0x"},
				},
			},
			want: 1,
		},
		{
			name:   "reverted",
			result: map[string]any{"status": "0x0", "logs": []any{}},
			want:   0,
		},
		{
			name:    "pending",
			result:  nil,
			wantErr: domain.ErrTransientFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockProvider{
				CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
					return tt.result, nil
				},
			}
			adapter := NewEVMAdapter(domain.NetworkArbitrum, mock)
			logs, err := adapter.GetReceiptLogs(context.Background(), "0xabc")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(logs) != tt.want {
				t.Errorf("expected %d logs, got %d", tt.want, len(logs))
			}
		})
	}
}
