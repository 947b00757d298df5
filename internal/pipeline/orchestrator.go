// Package pipeline wires the deployment queue, the confirmation monitor and
// the metrics aggregator into one orchestrator. Callers submit deployment
// specs; the pipeline compiles, submits and confirms them asynchronously.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"github.com/rxtech-lab/launchpad-deployer/internal/queue"
	"github.com/rxtech-lab/launchpad-deployer/internal/services"
	"go.uber.org/zap"
)

// Services bundles the collaborators the orchestrator depends on.
type Services struct {
	Deployments  services.DeploymentService
	Templates    services.TemplateService
	Chains       services.ChainService
	DailyMetrics services.MetricsService
	ChainClient  services.ChainClient
}

// Orchestrator owns the deployment pipeline: a priority queue of deployment
// jobs, a confirmation queue polling for receipts, an aggregator folding
// terminal events into daily metrics, and a periodic sweep that re-arms
// monitoring for deployments left unconfirmed across restarts.
type Orchestrator struct {
	cfg      Config
	logger   *zap.Logger
	svcs     Services
	validate *validator.Validate

	deployQueue  *queue.Queue[DeploymentJob]
	confirmQueue *queue.Queue[ConfirmationTask]

	events  chan TerminalEvent
	aggDone chan struct{}

	cron *cron.Cron
}

// New creates an orchestrator and starts its worker pools. Call Start to
// enable the recovery sweep and Stop for a drained shutdown.
func New(cfg Config, svcs Services, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		svcs:     svcs,
		validate: validator.New(),
		cron:     cron.New(),
	}

	o.events = make(chan TerminalEvent, o.cfg.EventBuffer)
	o.aggDone = make(chan struct{})

	o.deployQueue = queue.New("deploy", o.handleDeployJob,
		queue.WithWorkers(o.cfg.DeployWorkers),
		queue.WithMaxAttempts(o.cfg.SubmitMaxAttempts),
		queue.WithBackoff(o.cfg.SubmitRetryBackoff),
		queue.WithLogger(logger))

	// Confirmation polls budget their own requeues; a handler error other
	// than RetryAfter fails the task immediately.
	o.confirmQueue = queue.New("confirm", o.handleConfirmation,
		queue.WithWorkers(o.cfg.ConfirmWorkers),
		queue.WithMaxAttempts(1),
		queue.WithLogger(logger))

	go o.runAggregator()

	return o
}

// Start runs the startup recovery sweep and schedules the periodic one.
func (o *Orchestrator) Start() error {
	if _, err := o.cron.AddFunc(o.cfg.SweepSchedule, o.resumeUnconfirmed); err != nil {
		return fmt.Errorf("failed to schedule recovery sweep: %w", err)
	}
	o.cron.Start()
	o.resumeUnconfirmed()
	return nil
}

// Stop drains the pipeline: no new sweeps, deployment jobs finish before
// confirmation tasks, and the aggregator flushes buffered events last.
func (o *Orchestrator) Stop() {
	<-o.cron.Stop().Done()
	o.deployQueue.Close()
	o.confirmQueue.Close()
	close(o.events)
	<-o.aggDone
	o.logger.Info("pipeline stopped")
}

// Submit validates a deployment spec, persists a pending record and enqueues
// the deployment job. The returned Submission resolves once the transaction
// is submitted (not confirmed).
func (o *Orchestrator) Submit(ctx context.Context, spec DeploymentSpec) (*Submission, error) {
	if err := o.validate.Struct(spec); err != nil {
		return nil, err
	}

	chain, err := o.svcs.Chains.GetChainByNetworkID(spec.ChainID)
	if err != nil {
		return nil, fmt.Errorf("unknown or inactive chain %q: %w", spec.ChainID, err)
	}

	code, name := spec.TemplateCode, spec.ContractName
	var templateID *uint
	if spec.TemplateID != nil {
		tmpl, err := o.svcs.Templates.GetTemplateByID(*spec.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("template %d not found: %w", *spec.TemplateID, err)
		}
		if tmpl.ChainType != chain.ChainType {
			return nil, fmt.Errorf("template %d targets %s, chain %q is %s",
				tmpl.ID, tmpl.ChainType, spec.ChainID, chain.ChainType)
		}
		code, name = tmpl.TemplateCode, tmpl.ContractName
		templateID = spec.TemplateID
	}
	if code == "" || name == "" {
		return nil, errors.New("either template_id or template_code with contract_name is required")
	}

	deployment := &models.Deployment{
		ID:              uuid.New().String(),
		UserID:          spec.UserID,
		TemplateID:      templateID,
		ChainID:         chain.ID,
		ContractName:    name,
		TemplateValues:  spec.TemplateValues,
		ConstructorArgs: spec.ConstructorArgs,
		GasSettings:     spec.GasSettings,
		Status:          models.DeploymentStatusPending,
	}
	if err := o.svcs.Deployments.CreateDeployment(deployment); err != nil {
		return nil, fmt.Errorf("failed to create deployment record: %w", err)
	}

	handle, err := o.deployQueue.Enqueue(DeploymentJob{
		DeploymentID:    deployment.ID,
		ChainID:         chain.ID,
		TemplateCode:    code,
		ContractName:    name,
		TemplateValues:  spec.TemplateValues,
		ConstructorArgs: spec.ConstructorArgs,
		GasSettings:     spec.GasSettings,
	}, queue.WithPriority(ChainPriority(spec.ChainID)))
	if err != nil {
		// Record stays pending; the operator can resubmit after restart.
		return nil, fmt.Errorf("failed to enqueue deployment %s: %w", deployment.ID, err)
	}

	o.logger.Info("deployment queued",
		zap.String("deployment_id", deployment.ID),
		zap.String("chain_id", spec.ChainID),
		zap.String("contract", name),
		zap.Int("priority", ChainPriority(spec.ChainID)))

	return &Submission{DeploymentID: deployment.ID, handle: handle}, nil
}

// SubmitDeployment is the fire-and-forget variant of Submit.
func (o *Orchestrator) SubmitDeployment(ctx context.Context, spec DeploymentSpec) (string, error) {
	sub, err := o.Submit(ctx, spec)
	if err != nil {
		return "", err
	}
	return sub.DeploymentID, nil
}

// GetStatus returns the current deployment record.
func (o *Orchestrator) GetStatus(id string) (*models.Deployment, error) {
	return o.svcs.Deployments.GetDeploymentByID(id)
}
