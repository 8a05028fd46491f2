// Package health provides monitor health tracking and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ProviderHealth is the state of one RPC provider.
type ProviderHealth struct {
	Name      string        `json:"name"`
	Available bool          `json:"available"`
	Latency   time.Duration `json:"latency"`
	ErrorRate float64       `json:"error_rate"`
	Status    string        `json:"status,omitempty"`
}

// NetworkHealth contains health data for one network.
type NetworkHealth struct {
	Network          string           `json:"network"`
	Status           SystemStatus     `json:"status"`
	LatestBlock      uint64           `json:"latest_block"`
	HeadError        string           `json:"head_error,omitempty"`
	Observations     int              `json:"observations"`
	Failures         int              `json:"failures"`
	PartialPrices    bool             `json:"partial_prices"`
	AverageMintPrice float64          `json:"average_mint_price"`
	RedemptionPrice  float64          `json:"redemption_price"`
	Providers        []ProviderHealth `json:"providers,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus    SystemStatus             `json:"system_status"`
	LastCycleID     string                   `json:"last_cycle_id,omitempty"`
	LastCycleAt     time.Time                `json:"last_cycle_at,omitempty"`
	CycleDuration   time.Duration            `json:"cycle_duration"`
	CyclesCompleted int                      `json:"cycles_completed"`
	CyclesCancelled int                      `json:"cycles_cancelled"`
	Networks        map[string]NetworkHealth `json:"networks"`
}
