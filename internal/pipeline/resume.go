package pipeline

import (
	"time"

	"go.uber.org/zap"
)

// resumeUnconfirmed re-arms confirmation monitoring for deployments that were
// submitted but never finalized, typically after a restart or a timed-out
// monitor. Dedup on the transaction hash makes re-arming a live monitor a
// no-op, so running the sweep often is harmless.
func (o *Orchestrator) resumeUnconfirmed() {
	cutoff := time.Now().Add(-o.cfg.SweepAfter)
	stale, err := o.svcs.Deployments.ListUnconfirmed(cutoff)
	if err != nil {
		o.logger.Error("recovery sweep failed", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	for _, d := range stale {
		o.scheduleConfirmation(d.ID, d.ChainID, d.TransactionHash, 0)
	}
	o.logger.Info("recovery sweep re-armed confirmation monitors", zap.Int("count", len(stale)))
}
