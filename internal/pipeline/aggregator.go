package pipeline

import (
	"math/big"

	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"github.com/rxtech-lab/launchpad-deployer/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// runAggregator folds terminal events into per-chain daily metrics. It is the
// only writer driving IncrementDailyMetric from this process, but the upsert
// itself is atomic so multiple deployer instances can share one database.
func (o *Orchestrator) runAggregator() {
	defer close(o.aggDone)

	for ev := range o.events {
		delta := services.MetricDelta{
			Deployments: 1,
			GasUsed:     decimal.NewFromBigInt(new(big.Int).SetUint64(ev.GasUsed), 0),
		}
		if ev.Status == models.DeploymentStatusSuccess {
			delta.Successful = 1
		}

		day := models.MetricDay(ev.OccurredAt)
		if err := o.svcs.DailyMetrics.IncrementDailyMetric(ev.ChainID, day, delta); err != nil {
			o.logger.Error("failed to record daily metric",
				zap.Uint("chain_id", ev.ChainID),
				zap.String("day", day),
				zap.Error(err))
		}
	}
}
