// Package feed builds a user's GLP transaction history from the block explorer,
// enriched with the USD value of each mint from its receipt.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/infra/explorer"
)

// GlpManager AddLiquidity event. No indexed fields.
const glpManagerABI = `[{"anonymous":false,"inputs":[
	{"indexed":false,"name":"account","type":"address"},
	{"indexed":false,"name":"token","type":"address"},
	{"indexed":false,"name":"amount","type":"uint256"},
	{"indexed":false,"name":"aumInUsdg","type":"uint256"},
	{"indexed":false,"name":"glpSupply","type":"uint256"},
	{"indexed":false,"name":"usdgAmount","type":"uint256"},
	{"indexed":false,"name":"mintAmount","type":"uint256"}
],"name":"AddLiquidity","type":"event"}]`

// USDG has 18 decimals.
const usdgDecimals = 18

var (
	parsedGlpManager = mustParseABI(glpManagerABI)
	addLiquidityID   = strings.ToLower(parsedGlpManager.Events["AddLiquidity"].ID.Hex())
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// TransferLister lists token transfers for an account.
type TransferLister interface {
	TokenTransfers(ctx context.Context, contract, account string) ([]explorer.TokenTransfer, error)
}

// ReceiptReader reads the logs of a mined transaction.
type ReceiptReader interface {
	GetReceiptLogs(ctx context.Context, txHash string) ([]domain.RawLog, error)
}

// TransactionFeed returns a user's transaction history for a token contract.
type TransactionFeed interface {
	GetUserTransactions(ctx context.Context, contract, user string) []domain.TransactionRecord
}

// Feed implements TransactionFeed for one network.
type Feed struct {
	network     domain.Network
	lister      TransferLister
	receipts    ReceiptReader
	concurrency int
	log         *slog.Logger
}

// NewFeed creates a feed. receipts may be nil, in which case mints carry no USD value.
func NewFeed(network domain.Network, lister TransferLister, receipts ReceiptReader) *Feed {
	return &Feed{
		network:     network,
		lister:      lister,
		receipts:    receipts,
		concurrency: 5,
		log:         slog.Default().With("component", "feed", "network", network),
	}
}

// GetUserTransactions returns transfers of contract involving user in explorer order.
// Upstream failures degrade to an empty list.
func (f *Feed) GetUserTransactions(ctx context.Context, contract, user string) []domain.TransactionRecord {
	transfers, err := f.lister.TokenTransfers(ctx, contract, user)
	if err != nil {
		f.log.Warn("transaction listing failed", "user", user, "error", err)
		return []domain.TransactionRecord{}
	}

	records := make([]domain.TransactionRecord, 0, len(transfers))
	for _, t := range transfers {
		rec, err := toRecord(t)
		if err != nil {
			f.log.Warn("skip malformed transfer", "tx", t.Hash, "error", err)
			continue
		}
		records = append(records, rec)
	}

	if f.receipts != nil {
		f.enrich(ctx, user, records)
	}
	return records
}

// enrich fills ValueUSD of mint records from their AddLiquidity receipt log.
// Each goroutine owns one slice slot.
func (f *Feed) enrich(ctx context.Context, user string, records []domain.TransactionRecord) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i := range records {
		if !records[i].IsMint() {
			continue
		}
		g.Go(func() error {
			logs, err := f.receipts.GetReceiptLogs(ctx, records[i].Hash)
			if err != nil {
				f.log.Warn("failed to enrich transaction", "tx", records[i].Hash, "error", err)
				return nil
			}
			if usd, ok := addLiquidityUSD(logs, user); ok {
				records[i].ValueUSD = usd
			}
			return nil
		})
	}
	_ = g.Wait()
}

// addLiquidityUSD finds the AddLiquidity event for account and returns its USDG amount.
func addLiquidityUSD(logs []domain.RawLog, account string) (float64, bool) {
	for _, l := range logs {
		if len(l.Topics) == 0 || l.Topics[0] != addLiquidityID {
			continue
		}

		values, err := parsedGlpManager.Unpack("AddLiquidity", l.Data)
		if err != nil || len(values) != 7 {
			continue
		}
		acct, ok := values[0].(common.Address)
		if !ok || !strings.EqualFold(acct.Hex(), account) {
			continue
		}
		usdg, ok := values[5].(*big.Int)
		if !ok {
			continue
		}
		return domain.ScaleUnits(usdg, usdgDecimals), true
	}
	return 0, false
}

func toRecord(t explorer.TokenTransfer) (domain.TransactionRecord, error) {
	decimals := domain.DefaultDecimals
	if t.TokenDecimal != "" {
		d, err := strconv.ParseInt(t.TokenDecimal, 10, 32)
		if err != nil {
			return domain.TransactionRecord{}, fmt.Errorf("%w: token decimal %q", domain.ErrDataShape, t.TokenDecimal)
		}
		decimals = int32(d)
	}

	amount, err := domain.ParseUnits(t.Value, decimals)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	rec := domain.TransactionRecord{
		Hash:   t.Hash,
		From:   strings.ToLower(t.From),
		To:     strings.ToLower(t.To),
		Amount: amount,
		Kind:   classify(t),
	}
	if bn, err := strconv.ParseUint(t.BlockNumber, 10, 64); err == nil {
		rec.BlockNumber = bn
	}
	if ts, err := strconv.ParseInt(t.TimeStamp, 10, 64); err == nil {
		rec.Timestamp = time.Unix(ts, 0).UTC()
	}
	return rec, nil
}

func classify(t explorer.TokenTransfer) domain.MethodKind {
	if strings.EqualFold(t.From, common.Address{}.Hex()) {
		return domain.MethodMint
	}
	if strings.Contains(strings.ToLower(t.FunctionName), "mint") {
		return domain.MethodMint
	}
	return domain.MethodOther
}
