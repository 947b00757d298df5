package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChainDailyMetric aggregates terminal deployment outcomes per chain and
// calendar day. Counters are monotonically non-decreasing and incremented
// with SQL-level atomic upserts.
type ChainDailyMetric struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	ChainID               uint            `gorm:"not null;uniqueIndex:idx_chain_day" json:"chain_id"`
	Date                  string          `gorm:"not null;type:varchar(10);uniqueIndex:idx_chain_day" json:"date"` // YYYY-MM-DD, UTC
	TotalDeployments      int64           `gorm:"not null;default:0" json:"total_deployments"`
	SuccessfulDeployments int64           `gorm:"not null;default:0" json:"successful_deployments"`
	TotalGasUsed          decimal.Decimal `gorm:"not null;default:0;type:decimal(78,0)" json:"total_gas_used"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// MetricDay formats t as the UTC day key used by ChainDailyMetric.
func MetricDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
