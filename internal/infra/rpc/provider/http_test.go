package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
)

func TestHTTPProvider_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}

		if v, ok := req["jsonrpc"].(string); !ok || v != "2.0" {
			t.Errorf("expected jsonrpc: 2.0, got %v", req["jsonrpc"])
		}
		if req["method"] != "eth_blockNumber" {
			t.Errorf("unexpected method %v", req["method"])
		}
		if _, ok := req["params"].([]any); !ok {
			t.Errorf("expected params array, got %v", req["params"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"result": "0x123",
			"id":     req["id"],
		})
	}))
	defer server.Close()

	p := NewHTTPProvider("eth-mock", server.URL, 5*time.Second)

	result, err := p.Call(context.Background(), "eth_blockNumber", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "0x123" {
		t.Errorf("expected 0x123, got %v", result)
	}
	if h := p.GetHealth(); !h.Available || h.ErrorRate != 0 {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestHTTPProvider_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("eth-mock", server.URL, 5*time.Second)

	_, err := p.Call(context.Background(), "eth_call", []any{})
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
}

func TestHTTPProvider_Forbidden(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	p := NewHTTPProvider("eth-mock", server.URL, 5*time.Second)

	if _, err := p.Call(context.Background(), "eth_blockNumber", nil); err == nil {
		t.Fatal("expected error")
	}
	if p.IsAvailable() {
		t.Error("expected provider unavailable after 403")
	}

	// Blocked providers short-circuit without a request.
	if _, err := p.Call(context.Background(), "eth_blockNumber", nil); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 request, got %d", calls)
	}
}

func TestHTTPProvider_ErrorClasses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error is transient",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte("upstream down"))
			},
			want: domain.ErrTransientFetch,
		},
		{
			name: "rate limit is transient",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: domain.ErrTransientFetch,
		},
		{
			name: "malformed envelope is a data shape error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			want: domain.ErrDataShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p := NewHTTPProvider("eth-mock", server.URL, 5*time.Second)
			_, err := p.Call(context.Background(), "eth_blockNumber", nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if h := p.GetHealth(); h.ErrorRate != 1 || h.LastFailureAt.IsZero() {
				t.Errorf("expected failure recorded, got %+v", h)
			}
		})
	}
}
