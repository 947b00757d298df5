package services

import (
	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetricDelta is the increment applied to a chain's daily counters for one
// terminal deployment event.
type MetricDelta struct {
	Deployments int64
	Successful  int64
	GasUsed     decimal.Decimal
}

type MetricsService interface {
	// IncrementDailyMetric atomically upserts the (chainID, day) row and adds
	// the delta to its counters. Safe under concurrent events for the same
	// chain and day.
	IncrementDailyMetric(chainID uint, day string, delta MetricDelta) error
	GetDailyMetric(chainID uint, day string) (*models.ChainDailyMetric, error)
	ListDailyMetricsByChain(chainID uint) ([]models.ChainDailyMetric, error)
}

type metricsService struct {
	db *gorm.DB
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(db *gorm.DB) MetricsService {
	return &metricsService{db: db}
}

func (s *metricsService) IncrementDailyMetric(chainID uint, day string, delta MetricDelta) error {
	row := models.ChainDailyMetric{
		ChainID:               chainID,
		Date:                  day,
		TotalDeployments:      delta.Deployments,
		SuccessfulDeployments: delta.Successful,
		TotalGasUsed:          delta.GasUsed,
	}

	// The increments run inside the conflict clause so concurrent writers
	// cannot lose updates. "excluded" works on both SQLite and Postgres.
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_deployments":      gorm.Expr("chain_daily_metrics.total_deployments + excluded.total_deployments"),
			"successful_deployments": gorm.Expr("chain_daily_metrics.successful_deployments + excluded.successful_deployments"),
			"total_gas_used":         gorm.Expr("chain_daily_metrics.total_gas_used + excluded.total_gas_used"),
		}),
	}).Create(&row).Error
}

func (s *metricsService) GetDailyMetric(chainID uint, day string) (*models.ChainDailyMetric, error) {
	var metric models.ChainDailyMetric
	err := s.db.Where("chain_id = ? AND date = ?", chainID, day).First(&metric).Error
	if err != nil {
		return nil, err
	}
	return &metric, nil
}

func (s *metricsService) ListDailyMetricsByChain(chainID uint) ([]models.ChainDailyMetric, error) {
	var metrics []models.ChainDailyMetric
	err := s.db.Where("chain_id = ?", chainID).Order("date DESC").Find(&metrics).Error
	return metrics, err
}
