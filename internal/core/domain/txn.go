package domain

import "time"

// MethodKind classifies a GLP transfer.
type MethodKind string

const (
	MethodMint  MethodKind = "mint"
	MethodOther MethodKind = "other"
)

// TransactionRecord is one GLP transfer or mint involving a user.
type TransactionRecord struct {
	Hash        string     `json:"hash"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Amount      float64    `json:"amount"`    // GLP units, already scaled
	ValueUSD    float64    `json:"value_usd"` // 0 when the USD value could not be recovered
	Kind        MethodKind `json:"kind"`
	BlockNumber uint64     `json:"block_number"`
	Timestamp   time.Time  `json:"timestamp"`
}

// IsMint reports whether the record contributes to an entry price.
func (r TransactionRecord) IsMint() bool {
	return r.Kind == MethodMint
}
