package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rxtech-lab/launchpad-deployer/internal/metrics"
	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"github.com/rxtech-lab/launchpad-deployer/internal/queue"
	"github.com/rxtech-lab/launchpad-deployer/internal/services"
	"go.uber.org/zap"
)

// handleConfirmation polls for the receipt of one submitted transaction. A
// missing receipt requeues the task at a fixed interval until the retry
// budget runs out; a mined receipt finalizes the deployment exactly once.
func (o *Orchestrator) handleConfirmation(ctx context.Context, job *queue.Job[ConfirmationTask]) error {
	task := job.Payload
	log := o.logger.With(
		zap.String("deployment_id", task.DeploymentID),
		zap.String("tx_hash", task.TransactionHash))

	chain, err := o.svcs.Chains.GetChainByID(task.ChainID)
	if err != nil {
		log.Warn("failed to load chain for confirmation", zap.Error(err))
		return o.pollAgain(job, log)
	}

	receipt, err := o.svcs.ChainClient.GetReceipt(ctx, chain, task.TransactionHash)
	if err != nil {
		metrics.ConfirmationPollsTotal.WithLabelValues("error").Inc()
		log.Warn("receipt poll failed", zap.Error(err))
		return o.pollAgain(job, log)
	}
	if receipt == nil {
		metrics.ConfirmationPollsTotal.WithLabelValues("miss").Inc()
		return o.pollAgain(job, log)
	}

	status := models.DeploymentStatusSuccess
	patch := services.FinalizePatch{
		GasUsed:         receipt.GasUsed,
		BlockNumber:     receipt.BlockNumber,
		ContractAddress: receipt.ContractAddress,
	}
	if receipt.Success() {
		metrics.ConfirmationPollsTotal.WithLabelValues("confirmed").Inc()
	} else {
		status = models.DeploymentStatusFailed
		patch.Error = "transaction failed on chain"
		metrics.ConfirmationPollsTotal.WithLabelValues("reverted").Inc()
	}

	applied, err := o.svcs.Deployments.Finalize(task.DeploymentID, status, patch)
	if err != nil {
		log.Error("failed to finalize deployment", zap.Error(err))
		return o.pollAgain(job, log)
	}
	if !applied {
		// Another monitor or the failure path won the race; the terminal
		// event was already emitted.
		log.Info("deployment already finalized, skipping")
		return nil
	}

	metrics.DeploymentsTotal.WithLabelValues(chain.NetworkID, string(status)).Inc()
	log.Info("deployment confirmed",
		zap.String("status", string(status)),
		zap.Uint64("block_number", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed),
		zap.String("contract_address", receipt.ContractAddress))

	o.emitTerminal(TerminalEvent{
		ChainID:    chain.ID,
		NetworkID:  chain.NetworkID,
		Status:     status,
		GasUsed:    receipt.GasUsed,
		OccurredAt: time.Now(),
	})
	return nil
}

// pollAgain requeues the task after the poll interval, or times the task out
// once the budget is spent. A timed-out deployment stays processing so the
// recovery sweep can pick it up again later.
func (o *Orchestrator) pollAgain(job *queue.Job[ConfirmationTask], log *zap.Logger) error {
	if job.Requeues() >= job.Payload.MaxRetries {
		metrics.ConfirmationTimeoutsTotal.Inc()
		log.Error("confirmation retry budget exhausted",
			zap.Int("polls", job.Requeues()+1))
		return queue.Permanent(fmt.Errorf("%w: %s", ErrConfirmationTimeout, job.Payload.TransactionHash))
	}
	return queue.RetryAfter(o.cfg.ConfirmPollInterval)
}

// emitTerminal hands a terminal event to the aggregator. Dropping events
// would skew daily metrics, so this blocks if the buffer is full.
func (o *Orchestrator) emitTerminal(ev TerminalEvent) {
	defer func() {
		// Stop closes the channel after both queues drained; a late emit
		// from a racing handler must not crash the process.
		if r := recover(); r != nil {
			o.logger.Warn("terminal event dropped during shutdown")
		}
	}()
	o.events <- ev
}
