package domain

import "time"

// RawLog is an undecoded contract event log.
type RawLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        []byte   `json:"data"`
	BlockNumber uint64   `json:"block_number"`
	TxHash      string   `json:"tx_hash"`
	LogIndex    uint     `json:"log_index"`
}

// Observation is one user x network sample produced by a monitoring cycle.
type Observation struct {
	CycleID          string
	User             string
	Network          Network
	Balance          float64
	AverageMintPrice float64
	RedemptionPrice  float64
	RewardEstimate   float64
	FeeEstimate      float64
	Value            float64
	EntryPrice       float64 // 0 when the user has no priced mints
	PnL              float64
	Exposure         Exposure
	PartialPrices    bool
	ObservedAt       time.Time
}
