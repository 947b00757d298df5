package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"github.com/rxtech-lab/launchpad-deployer/internal/queue"
)

// ErrConfirmationTimeout is reported when a confirmation task exhausts its
// retry budget without observing a receipt.
var ErrConfirmationTimeout = errors.New("confirmation timed out waiting for receipt")

// DeploymentSpec is one caller-supplied deployment request. Either TemplateID
// or inline TemplateCode+ContractName must be provided.
type DeploymentSpec struct {
	UserID          *string                `json:"user_id,omitempty"`
	ChainID         string                 `json:"chain_id" validate:"required"` // blockchain chain ID, e.g. "11155111"
	TemplateID      *uint                  `json:"template_id,omitempty"`
	TemplateCode    string                 `json:"template_code,omitempty"`
	ContractName    string                 `json:"contract_name,omitempty"`
	TemplateValues  map[string]interface{} `json:"template_values,omitempty"`
	ConstructorArgs []interface{}          `json:"constructor_args,omitempty"`
	GasSettings     *models.GasSettings    `json:"gas_settings,omitempty"`
}

// DeploymentJob is the unit of work consumed by the deployment workers.
type DeploymentJob struct {
	DeploymentID    string
	ChainID         uint // chains table ID
	TemplateCode    string
	ContractName    string
	TemplateValues  map[string]interface{}
	ConstructorArgs []interface{}
	GasSettings     *models.GasSettings
}

// ConfirmationTask polls one submitted transaction until it is mined or the
// retry budget runs out. The transaction hash doubles as the dedup key.
type ConfirmationTask struct {
	DeploymentID    string
	ChainID         uint
	TransactionHash string
	MaxRetries      int
}

// TerminalEvent is emitted once per deployment reaching a terminal state and
// consumed by the metrics aggregator.
type TerminalEvent struct {
	ChainID    uint
	NetworkID  string
	Status     models.DeploymentStatus
	GasUsed    uint64
	OccurredAt time.Time
}

// Submission is the async handle for one accepted deployment request.
type Submission struct {
	DeploymentID string
	handle       *queue.Handle
}

// Wait blocks until the deployment job finished submission (or was rejected).
// It does not wait for on-chain confirmation.
func (s *Submission) Wait(ctx context.Context) error {
	return s.handle.Wait(ctx)
}

// Done is closed once the deployment job finished submission.
func (s *Submission) Done() <-chan struct{} { return s.handle.Done() }

// BatchItem identifies one successfully submitted batch entry.
type BatchItem struct {
	Index        int    `json:"index"`
	DeploymentID string `json:"deployment_id"`
}

// BatchFailure captures one rejected batch entry together with its cause.
type BatchFailure struct {
	Index int            `json:"index"`
	Spec  DeploymentSpec `json:"spec"`
	Error string         `json:"error"`
}

// BatchResult aggregates per-item outcomes of a batch submission.
type BatchResult struct {
	Successful []BatchItem    `json:"successful"`
	Failed     []BatchFailure `json:"failed"`
}
