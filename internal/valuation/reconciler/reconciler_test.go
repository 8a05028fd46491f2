package reconciler

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/infra/market"
)

type window struct{ from, to uint64 }

type mockHistory struct {
	windows       []window
	FetchLogsFunc func(ctx context.Context, contract string, from, to uint64) ([]domain.RawLog, error)
}

func (m *mockHistory) FetchLogs(ctx context.Context, contract string, from, to uint64) ([]domain.RawLog, error) {
	m.windows = append(m.windows, window{from, to})
	if m.FetchLogsFunc != nil {
		return m.FetchLogsFunc(ctx, contract, from, to)
	}
	return nil, nil
}

type mockHead struct {
	head uint64
	err  error
}

func (m mockHead) GetLatestBlock(ctx context.Context) (uint64, error) {
	return m.head, m.err
}

type mockRedemption struct {
	price float64
	err   error
}

func (m mockRedemption) RedemptionPrice(ctx context.Context, network domain.Network) (float64, error) {
	return m.price, m.err
}

// priceLog builds a log whose data holds price (in 18-decimal units) at word 0.
func priceLog(price float64) domain.RawLog {
	scaled, _ := new(big.Float).Mul(big.NewFloat(price), big.NewFloat(1e18)).Int(nil)
	return domain.RawLog{Data: common.LeftPadBytes(scaled.Bytes(), 32)}
}

func newReconciler(h HistoricalPriceSource, head HeadReader, redemption RedemptionSource) *Reconciler {
	return New(DefaultConfig(), redemption, map[domain.Network]Sources{
		domain.NetworkArbitrum: {History: h, Head: head},
	})
}

func TestReconcile_NoEventsIsSentinel(t *testing.T) {
	r := newReconciler(&mockHistory{}, nil, nil)

	res, err := r.Reconcile(context.Background(), domain.NetworkArbitrum, "0xglp", 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AverageMintPrice != 1.0 {
		t.Errorf("expected 1.0, got %v", res.AverageMintPrice)
	}
	if res.RedemptionPrice != 1.0 {
		t.Errorf("expected sentinel redemption 1.0, got %v", res.RedemptionPrice)
	}
	if res.Events != 0 || res.Windows != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestReconcile_MeanOfEventPrices(t *testing.T) {
	h := &mockHistory{FetchLogsFunc: func(ctx context.Context, contract string, from, to uint64) ([]domain.RawLog, error) {
		return []domain.RawLog{priceLog(0.9), priceLog(1.1), priceLog(1.0)}, nil
	}}
	r := newReconciler(h, nil, mockRedemption{price: 0.95})

	res, err := r.Reconcile(context.Background(), domain.NetworkArbitrum, "0xglp", 10, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.AverageMintPrice-1.0) > 1e-9 {
		t.Errorf("expected mean 1.0, got %v", res.AverageMintPrice)
	}
	if res.Events != 3 {
		t.Errorf("expected 3 events, got %d", res.Events)
	}
	if res.RedemptionPrice != 0.95 {
		t.Errorf("expected redemption 0.95, got %v", res.RedemptionPrice)
	}
}

func TestReconcile_Windows(t *testing.T) {
	h := &mockHistory{}
	r := newReconciler(h, nil, nil)

	res, err := r.Reconcile(context.Background(), domain.NetworkArbitrum, "0xglp", 1000, 1000+2048*2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []window{{1000, 3047}, {3048, 5095}, {5096, 5096}}
	if len(h.windows) != len(want) {
		t.Fatalf("expected %d windows, got %v", len(want), h.windows)
	}
	for i, w := range want {
		if h.windows[i] != w {
			t.Errorf("window %d = %v, want %v", i, h.windows[i], w)
		}
	}
	if res.Windows != 3 {
		t.Errorf("expected 3 windows, got %d", res.Windows)
	}
}

func TestReconcile_StopsEarlyOnWindowError(t *testing.T) {
	h := &mockHistory{FetchLogsFunc: func(ctx context.Context, contract string, from, to uint64) ([]domain.RawLog, error) {
		if from > 0 {
			return nil, domain.ErrTransientFetch
		}
		return []domain.RawLog{priceLog(1.2), priceLog(1.4)}, nil
	}}
	r := newReconciler(h, nil, nil)

	res, err := r.Reconcile(context.Background(), domain.NetworkArbitrum, "0xglp", 0, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Partial {
		t.Error("expected partial result")
	}
	if len(h.windows) != 2 {
		t.Errorf("expected walk to stop after failing window, got %v", h.windows)
	}
	if math.Abs(res.AverageMintPrice-1.3) > 1e-9 {
		t.Errorf("expected mean of accumulated events 1.3, got %v", res.AverageMintPrice)
	}
}

func TestReconcile_SkipsShortPayload(t *testing.T) {
	h := &mockHistory{FetchLogsFunc: func(ctx context.Context, contract string, from, to uint64) ([]domain.RawLog, error) {
		return []domain.RawLog{{Data: []byte{1, 2, 3}}, priceLog(2)}, nil
	}}
	r := newReconciler(h, nil, nil)

	res, err := r.Reconcile(context.Background(), domain.NetworkArbitrum, "0xglp", 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Events != 1 || res.AverageMintPrice != 2 {
		t.Errorf("expected one decoded event at 2, got %+v", res)
	}
}

func TestReconcile_PriceWord(t *testing.T) {
	h := &mockHistory{FetchLogsFunc: func(ctx context.Context, contract string, from, to uint64) ([]domain.RawLog, error) {
		first := priceLog(9)
		second := priceLog(1.5)
		return []domain.RawLog{{Data: append(first.Data, second.Data...)}}, nil
	}}
	cfg := DefaultConfig()
	cfg.PriceWord = 1
	r := New(cfg, nil, map[domain.Network]Sources{domain.NetworkArbitrum: {History: h}})

	res, err := r.Reconcile(context.Background(), domain.NetworkArbitrum, "0xglp", 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AverageMintPrice != 1.5 {
		t.Errorf("expected word 1 price 1.5, got %v", res.AverageMintPrice)
	}
}

func TestReconcile_Errors(t *testing.T) {
	r := newReconciler(&mockHistory{}, nil, nil)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, domain.NetworkArbitrum, "0xglp", 10, 5); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error for inverted range, got %v", err)
	}
	if _, err := r.Reconcile(ctx, domain.NetworkAvalanche, "0xglp", 0, 5); !errors.Is(err, domain.ErrUnsupportedNetwork) {
		t.Errorf("expected unsupported network, got %v", err)
	}
}

func TestReconcile_RedemptionFailureDegrades(t *testing.T) {
	r := newReconciler(&mockHistory{}, nil, mockRedemption{err: domain.ErrTransientFetch})

	res, err := r.Reconcile(context.Background(), domain.NetworkArbitrum, "0xglp", 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RedemptionPrice != NoDataPrice {
		t.Errorf("expected fallback redemption, got %v", res.RedemptionPrice)
	}
}

func TestReconcileRecent(t *testing.T) {
	h := &mockHistory{}
	r := newReconciler(h, mockHead{head: 50000}, nil)

	res, err := r.ReconcileRecent(context.Background(), domain.NetworkArbitrum, "0xglp", 20000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FromBlock != 30001 || res.ToBlock != 50000 {
		t.Errorf("expected range [30001, 50000], got [%d, %d]", res.FromBlock, res.ToBlock)
	}

	// lookback beyond genesis starts at 0
	r = newReconciler(&mockHistory{}, mockHead{head: 100}, nil)
	res, err = r.ReconcileRecent(context.Background(), domain.NetworkArbitrum, "0xglp", 20000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FromBlock != 0 {
		t.Errorf("expected from 0, got %d", res.FromBlock)
	}
}

func TestReconcileRecent_HeadFailure(t *testing.T) {
	h := &mockHistory{}
	r := newReconciler(h, mockHead{err: domain.ErrTransientFetch}, nil)

	res, err := r.ReconcileRecent(context.Background(), domain.NetworkArbitrum, "0xglp", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AverageMintPrice != NoDataPrice || !res.Partial {
		t.Errorf("expected degraded no-data result, got %+v", res)
	}
	if len(h.windows) != 0 {
		t.Errorf("expected no log queries, got %v", h.windows)
	}
}

type mockStats struct {
	stats market.PoolStats
	err   error
}

func (m mockStats) GetPoolStats(ctx context.Context, network domain.Network) (market.PoolStats, error) {
	return m.stats, m.err
}

func TestPoolStatsRedemption(t *testing.T) {
	p := NewPoolStats(mockStats{stats: market.PoolStats{AUMUSD: 450, GLPSupply: 500}})
	price, err := p.RedemptionPrice(context.Background(), domain.NetworkArbitrum)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 0.9 {
		t.Errorf("expected 0.9, got %v", price)
	}

	p = NewPoolStats(mockStats{stats: market.PoolStats{AUMUSD: 450}})
	if _, err := p.RedemptionPrice(context.Background(), domain.NetworkArbitrum); !errors.Is(err, domain.ErrDataShape) {
		t.Errorf("expected data shape error for empty supply, got %v", err)
	}
}

type mockLogReader struct {
	topic string
}

func (m *mockLogReader) GetLogs(ctx context.Context, contract string, from, to uint64, topic string) ([]domain.RawLog, error) {
	m.topic = topic
	return []domain.RawLog{priceLog(1)}, nil
}

func TestLogSources(t *testing.T) {
	for _, tt := range []struct {
		name string
		mk   func(LogReader, string) *LogSource
	}{
		{"chain", NewChainSource},
		{"explorer", NewExplorerSource},
	} {
		reader := &mockLogReader{}
		src := tt.mk(reader, "0xtopic")
		logs, err := src.FetchLogs(context.Background(), "0xglp", 0, 1)
		if err != nil || len(logs) != 1 {
			t.Errorf("%s: unexpected result %v %v", tt.name, logs, err)
		}
		if reader.topic != "0xtopic" {
			t.Errorf("%s: expected topic passed through, got %q", tt.name, reader.topic)
		}
		if src.Name() != tt.name {
			t.Errorf("expected name %s, got %s", tt.name, src.Name())
		}
	}
}
