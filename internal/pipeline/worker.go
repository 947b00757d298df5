package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rxtech-lab/launchpad-deployer/internal/metrics"
	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"github.com/rxtech-lab/launchpad-deployer/internal/queue"
	"github.com/rxtech-lab/launchpad-deployer/internal/services"
	"go.uber.org/zap"
)

// handleDeployJob runs one deployment attempt: compile, estimate, submit,
// then hand off to the confirmation monitor. Compile failures are permanent;
// estimation and submission failures retry with backoff until the attempt
// budget runs out.
func (o *Orchestrator) handleDeployJob(ctx context.Context, job *queue.Job[DeploymentJob]) error {
	p := job.Payload
	log := o.logger.With(zap.String("deployment_id", p.DeploymentID))
	start := time.Now()

	if err := o.svcs.Deployments.MarkProcessing(p.DeploymentID); err != nil {
		if errors.Is(err, services.ErrStaleTransition) {
			log.Warn("skipping job, deployment already finalized")
			return nil
		}
		return err
	}

	chain, err := o.svcs.Chains.GetChainByID(p.ChainID)
	if err != nil {
		return o.retryOrFail(job, log, fmt.Errorf("failed to load chain %d: %w", p.ChainID, err))
	}

	contract, err := o.svcs.ChainClient.CompileTemplate(ctx, services.CompileTemplateArgs{
		TemplateCode:   p.TemplateCode,
		ContractName:   p.ContractName,
		TemplateValues: p.TemplateValues,
	})
	if err != nil {
		log.Error("compilation failed", zap.Error(err))
		o.markFailed(p.DeploymentID, chain, err, log)
		return queue.Permanent(err)
	}

	estimate, err := o.svcs.ChainClient.EstimateDeploymentGas(ctx, services.EstimateDeploymentGasArgs{
		Chain:           chain,
		Contract:        contract,
		ConstructorArgs: p.ConstructorArgs,
	})
	if err != nil {
		return o.retryOrFailOnChain(job, log, chain, err)
	}

	submitArgs := services.SubmitDeploymentArgs{
		Chain:           chain,
		Contract:        contract,
		ConstructorArgs: p.ConstructorArgs,
		GasLimit:        gasLimit(p.GasSettings, estimate, o.cfg.GasSafetyMarginPercent),
	}
	if p.GasSettings != nil {
		submitArgs.GasPrice, err = parseWei(p.GasSettings.GasPrice)
		if err == nil {
			submitArgs.MaxFeePerGas, err = parseWei(p.GasSettings.MaxFeePerGas)
		}
		if err == nil {
			submitArgs.MaxPriorityFeePerGas, err = parseWei(p.GasSettings.MaxPriorityFeePerGas)
		}
		if err != nil {
			log.Error("invalid gas settings", zap.Error(err))
			o.markFailed(p.DeploymentID, chain, err, log)
			return queue.Permanent(err)
		}
	}

	txHash, err := o.svcs.ChainClient.SubmitDeployment(ctx, submitArgs)
	if err != nil {
		return o.retryOrFailOnChain(job, log, chain, err)
	}
	metrics.SubmissionDuration.Observe(time.Since(start).Seconds())

	if err := o.svcs.Deployments.SetSubmitted(p.DeploymentID, txHash, estimate); err != nil {
		// The transaction is on chain; keep monitoring even if the store
		// write lost a race.
		log.Error("failed to persist transaction hash", zap.String("tx_hash", txHash), zap.Error(err))
	}

	log.Info("deployment submitted",
		zap.String("tx_hash", txHash),
		zap.Uint64("gas_limit", submitArgs.GasLimit),
		zap.Uint64("gas_estimate", estimate))

	o.scheduleConfirmation(p.DeploymentID, p.ChainID, txHash, o.cfg.ConfirmInitialDelay)
	return nil
}

// retryOrFail marks the record failed when no automatic retry remains, then
// returns the error so the queue can apply its retry policy.
func (o *Orchestrator) retryOrFail(job *queue.Job[DeploymentJob], log *zap.Logger, err error) error {
	if job.FinalAttempt() {
		o.markFailed(job.Payload.DeploymentID, nil, err, log)
	}
	return err
}

func (o *Orchestrator) retryOrFailOnChain(job *queue.Job[DeploymentJob], log *zap.Logger, chain *models.Chain, err error) error {
	// Bad constructor arguments surface as compile errors from estimation or
	// submission; retrying cannot fix them.
	var compileErr *services.CompileError
	if errors.As(err, &compileErr) {
		log.Error("deployment rejected", zap.Error(err))
		o.markFailed(job.Payload.DeploymentID, chain, err, log)
		return queue.Permanent(err)
	}
	if job.FinalAttempt() {
		o.markFailed(job.Payload.DeploymentID, chain, err, log)
	}
	return err
}

// markFailed writes the terminal failure and emits the terminal event. Only
// used on pre-submission failures; once a transaction hash exists the
// confirmation monitor owns the terminal transition.
func (o *Orchestrator) markFailed(deploymentID string, chain *models.Chain, cause error, log *zap.Logger) {
	if err := o.svcs.Deployments.MarkFailed(deploymentID, cause.Error()); err != nil {
		if errors.Is(err, services.ErrStaleTransition) {
			return
		}
		log.Error("failed to mark deployment failed", zap.Error(err))
		return
	}
	if chain != nil {
		metrics.DeploymentsTotal.WithLabelValues(chain.NetworkID, string(models.DeploymentStatusFailed)).Inc()
		o.emitTerminal(TerminalEvent{
			ChainID:    chain.ID,
			NetworkID:  chain.NetworkID,
			Status:     models.DeploymentStatusFailed,
			OccurredAt: time.Now(),
		})
	}
}

// scheduleConfirmation enqueues a receipt poll keyed by transaction hash. A
// duplicate key means a monitor is already live for this transaction, which
// is the desired state.
func (o *Orchestrator) scheduleConfirmation(deploymentID string, chainID uint, txHash string, delay time.Duration) {
	_, err := o.confirmQueue.Enqueue(ConfirmationTask{
		DeploymentID:    deploymentID,
		ChainID:         chainID,
		TransactionHash: txHash,
		MaxRetries:      o.cfg.ConfirmMaxRetries,
	}, queue.WithKey(txHash), queue.WithDelay(delay))
	if err != nil && !errors.Is(err, queue.ErrDuplicateJob) {
		// Record stays processing with its hash; the recovery sweep will
		// re-arm monitoring.
		o.logger.Error("failed to schedule confirmation",
			zap.String("deployment_id", deploymentID),
			zap.String("tx_hash", txHash),
			zap.Error(err))
	}
}

// gasLimit prefers the caller's explicit limit, otherwise pads the estimate
// with the safety margin.
func gasLimit(settings *models.GasSettings, estimate uint64, marginPercent uint64) uint64 {
	if settings != nil && settings.GasLimit > 0 {
		return settings.GasLimit
	}
	return estimate + estimate*marginPercent/100
}

// parseWei converts a decimal string to wei; empty means "use market value".
func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}
