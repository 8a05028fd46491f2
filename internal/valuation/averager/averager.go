// Package averager computes a user's volume-weighted GLP entry price.
package averager

import "github.com/Thisisily/glp-monitor/internal/core/domain"

// Result is the weighted average over contributing mint records.
type Result struct {
	Price        float64 // USD per GLP, 0 when nothing contributes
	Amount       float64 // total GLP of contributing mints
	Contributing int
}

// Average weights each mint's per-unit price by its amount.
// Non-mint records, zero amounts and mints without a USD value are skipped.
// The result does not depend on record order.
func Average(records []domain.TransactionRecord) Result {
	var res Result
	var weighted float64

	for _, r := range records {
		if !r.IsMint() || r.Amount <= 0 || r.ValueUSD <= 0 {
			continue
		}
		price := r.ValueUSD / r.Amount
		weighted += price * r.Amount
		res.Amount += r.Amount
		res.Contributing++
	}

	if res.Contributing == 0 || res.Amount == 0 {
		return Result{}
	}
	res.Price = weighted / res.Amount
	return res
}

// AverageMintPrice returns Average(records).Price.
func AverageMintPrice(records []domain.TransactionRecord) float64 {
	return Average(records).Price
}
