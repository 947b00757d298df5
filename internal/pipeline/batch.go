package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// SubmitBatch submits the given specs and waits for each submission to finish.
// One failing item never aborts the rest; the result reports every item's
// outcome. Waiting is per item, so a batch completes in submission order.
func (o *Orchestrator) SubmitBatch(ctx context.Context, specs []DeploymentSpec) BatchResult {
	var result BatchResult

	for i, spec := range specs {
		sub, err := o.Submit(ctx, spec)
		if err != nil {
			o.logger.Warn("batch item rejected",
				zap.Int("index", i),
				zap.String("chain_id", spec.ChainID),
				zap.Error(err))
			result.Failed = append(result.Failed, BatchFailure{Index: i, Spec: spec, Error: err.Error()})
			continue
		}
		if err := sub.Wait(ctx); err != nil {
			result.Failed = append(result.Failed, BatchFailure{Index: i, Spec: spec, Error: err.Error()})
			continue
		}
		result.Successful = append(result.Successful, BatchItem{Index: i, DeploymentID: sub.DeploymentID})
	}

	o.logger.Info("batch completed",
		zap.Int("total", len(specs)),
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)))

	return result
}
