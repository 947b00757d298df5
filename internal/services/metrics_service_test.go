package services

import (
	"sync"
	"testing"

	"github.com/rxtech-lab/launchpad-deployer/internal/database"
	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type MetricsServiceTestSuite struct {
	suite.Suite
	db      *database.Database
	service MetricsService
}

func (s *MetricsServiceTestSuite) SetupSuite() {
	db, err := database.NewDatabase(":memory:")
	s.Require().NoError(err)
	s.db = db

	// The in-memory database must stay on a single connection.
	sqlDB, err := db.DB.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.service = NewMetricsService(db.DB)
}

func (s *MetricsServiceTestSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *MetricsServiceTestSuite) SetupTest() {
	s.db.DB.Where("1 = 1").Delete(&models.ChainDailyMetric{})
}

func (s *MetricsServiceTestSuite) TestIncrementCreatesRow() {
	err := s.service.IncrementDailyMetric(1, "2026-08-29", MetricDelta{
		Deployments: 1,
		Successful:  1,
		GasUsed:     decimal.NewFromInt(21000),
	})
	s.Require().NoError(err)

	metric, err := s.service.GetDailyMetric(1, "2026-08-29")
	s.Require().NoError(err)
	s.Equal(int64(1), metric.TotalDeployments)
	s.Equal(int64(1), metric.SuccessfulDeployments)
	s.True(metric.TotalGasUsed.Equal(decimal.NewFromInt(21000)))
}

func (s *MetricsServiceTestSuite) TestIncrementAccumulates() {
	for i := 0; i < 5; i++ {
		err := s.service.IncrementDailyMetric(1, "2026-08-29", MetricDelta{
			Deployments: 1,
			Successful:  1,
			GasUsed:     decimal.NewFromInt(1000),
		})
		s.Require().NoError(err)
	}
	err := s.service.IncrementDailyMetric(1, "2026-08-29", MetricDelta{
		Deployments: 1,
		GasUsed:     decimal.NewFromInt(500),
	})
	s.Require().NoError(err)

	metric, err := s.service.GetDailyMetric(1, "2026-08-29")
	s.Require().NoError(err)
	s.Equal(int64(6), metric.TotalDeployments)
	s.Equal(int64(5), metric.SuccessfulDeployments)
	s.True(metric.TotalGasUsed.Equal(decimal.NewFromInt(5500)))

	// Only one row may exist for the (chain, day) pair.
	var count int64
	s.db.DB.Model(&models.ChainDailyMetric{}).Count(&count)
	s.Equal(int64(1), count)
}

func (s *MetricsServiceTestSuite) TestIncrementIsolatesChainAndDay() {
	s.Require().NoError(s.service.IncrementDailyMetric(1, "2026-08-29", MetricDelta{Deployments: 1}))
	s.Require().NoError(s.service.IncrementDailyMetric(2, "2026-08-29", MetricDelta{Deployments: 1}))
	s.Require().NoError(s.service.IncrementDailyMetric(1, "2026-08-30", MetricDelta{Deployments: 1}))

	metric, err := s.service.GetDailyMetric(1, "2026-08-29")
	s.Require().NoError(err)
	s.Equal(int64(1), metric.TotalDeployments)

	days, err := s.service.ListDailyMetricsByChain(1)
	s.Require().NoError(err)
	s.Require().Len(days, 2)
	// Ordered newest first.
	s.Equal("2026-08-30", days[0].Date)
	s.Equal("2026-08-29", days[1].Date)
}

func (s *MetricsServiceTestSuite) TestConcurrentIncrementsLoseNoUpdates() {
	const writers = 10
	const perWriter = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				errs <- s.service.IncrementDailyMetric(7, "2026-08-29", MetricDelta{
					Deployments: 1,
					Successful:  1,
					GasUsed:     decimal.NewFromInt(100),
				})
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	metric, err := s.service.GetDailyMetric(7, "2026-08-29")
	s.Require().NoError(err)
	s.Equal(int64(writers*perWriter), metric.TotalDeployments)
	s.Equal(int64(writers*perWriter), metric.SuccessfulDeployments)
	s.True(metric.TotalGasUsed.Equal(decimal.NewFromInt(writers * perWriter * 100)))
}

func (s *MetricsServiceTestSuite) TestGetMissingDayReturnsNotFound() {
	_, err := s.service.GetDailyMetric(99, "2026-01-01")
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func TestMetricsServiceTestSuite(t *testing.T) {
	suite.Run(t, new(MetricsServiceTestSuite))
}
