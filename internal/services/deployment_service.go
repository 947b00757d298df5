package services

import (
	"errors"
	"time"

	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"gorm.io/gorm"
)

// ErrStaleTransition is returned when a status write is rejected because the
// record has already reached a later stage.
var ErrStaleTransition = errors.New("deployment already reached a later stage")

// FinalizePatch carries the receipt-derived fields written together with a
// terminal status.
type FinalizePatch struct {
	ContractAddress string
	GasUsed         uint64
	BlockNumber     uint64
	Error           string
}

type DeploymentService interface {
	CreateDeployment(deployment *models.Deployment) error
	GetDeploymentByID(id string) (*models.Deployment, error)
	GetDeploymentByTransactionHash(txHash string) (*models.Deployment, error)
	ListDeployments() ([]models.Deployment, error)
	ListDeploymentsByUser(userID string) ([]models.Deployment, error)
	// MarkProcessing moves a pending record to processing. Calling it again
	// for a record already processing is a no-op; a terminal record returns
	// ErrStaleTransition.
	MarkProcessing(id string) error
	// SetSubmitted persists the transaction hash and gas estimate while the
	// record stays processing.
	SetSubmitted(id string, txHash string, gasEstimate uint64) error
	// MarkFailed transitions a non-terminal record to failed with the given
	// error message. A terminal record is left untouched.
	MarkFailed(id string, errMsg string) error
	// Finalize writes the terminal status and receipt fields. It reports
	// whether the write was applied; false means another writer already
	// finalized the record.
	Finalize(id string, status models.DeploymentStatus, patch FinalizePatch) (bool, error)
	// ListUnconfirmed returns processing records that carry a transaction
	// hash but have not been updated since the given time.
	ListUnconfirmed(olderThan time.Time) ([]models.Deployment, error)
}

type deploymentService struct {
	db *gorm.DB
}

// NewDeploymentService creates a new DeploymentService
func NewDeploymentService(db *gorm.DB) DeploymentService {
	return &deploymentService{db: db}
}

// CreateDeployment creates a new deployment
func (s *deploymentService) CreateDeployment(deployment *models.Deployment) error {
	if deployment.Status == "" {
		deployment.Status = models.DeploymentStatusPending
	}
	return s.db.Create(deployment).Error
}

// GetDeploymentByID returns a deployment by its ID
func (s *deploymentService) GetDeploymentByID(id string) (*models.Deployment, error) {
	var deployment models.Deployment
	err := s.db.Preload("Template").Preload("Chain").Where("id = ?", id).First(&deployment).Error
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}

// GetDeploymentByTransactionHash returns a deployment by its transaction hash
func (s *deploymentService) GetDeploymentByTransactionHash(txHash string) (*models.Deployment, error) {
	var deployment models.Deployment
	err := s.db.Preload("Template").Preload("Chain").Where("transaction_hash = ?", txHash).First(&deployment).Error
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}

// ListDeployments returns all deployments
func (s *deploymentService) ListDeployments() ([]models.Deployment, error) {
	var deployments []models.Deployment
	err := s.db.Preload("Template").Preload("Chain").Find(&deployments).Error
	return deployments, err
}

// ListDeploymentsByUser returns all deployments for a specific user
func (s *deploymentService) ListDeploymentsByUser(userID string) ([]models.Deployment, error) {
	var deployments []models.Deployment
	err := s.db.Preload("Template").Preload("Chain").Where("user_id = ?", userID).Find(&deployments).Error
	return deployments, err
}

func (s *deploymentService) MarkProcessing(id string) error {
	res := s.db.Model(&models.Deployment{}).
		Where("id = ? AND status IN ?", id, []models.DeploymentStatus{
			models.DeploymentStatusPending,
			models.DeploymentStatusProcessing,
		}).
		Update("status", models.DeploymentStatusProcessing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.staleOrMissing(id)
	}
	return nil
}

func (s *deploymentService) SetSubmitted(id string, txHash string, gasEstimate uint64) error {
	res := s.db.Model(&models.Deployment{}).
		Where("id = ? AND status = ?", id, models.DeploymentStatusProcessing).
		Updates(map[string]interface{}{
			"transaction_hash": txHash,
			"gas_estimate":     gasEstimate,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.staleOrMissing(id)
	}
	return nil
}

func (s *deploymentService) MarkFailed(id string, errMsg string) error {
	res := s.db.Model(&models.Deployment{}).
		Where("id = ? AND status IN ?", id, []models.DeploymentStatus{
			models.DeploymentStatusPending,
			models.DeploymentStatusProcessing,
		}).
		Updates(map[string]interface{}{
			"status": models.DeploymentStatusFailed,
			"error":  errMsg,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.staleOrMissing(id)
	}
	return nil
}

func (s *deploymentService) Finalize(id string, status models.DeploymentStatus, patch FinalizePatch) (bool, error) {
	if !status.Terminal() {
		return false, errors.New("finalize requires a terminal status")
	}

	updates := map[string]interface{}{
		"status":       status,
		"gas_used":     patch.GasUsed,
		"block_number": patch.BlockNumber,
	}
	// Contract address only accompanies success; error only failure.
	if status == models.DeploymentStatusSuccess && patch.ContractAddress != "" {
		updates["contract_address"] = patch.ContractAddress
	}
	if status == models.DeploymentStatusFailed {
		updates["error"] = patch.Error
	}

	res := s.db.Model(&models.Deployment{}).
		Where("id = ? AND status IN ?", id, []models.DeploymentStatus{
			models.DeploymentStatusPending,
			models.DeploymentStatusProcessing,
		}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *deploymentService) ListUnconfirmed(olderThan time.Time) ([]models.Deployment, error) {
	var deployments []models.Deployment
	err := s.db.Preload("Chain").
		Where("status = ? AND transaction_hash <> '' AND updated_at < ?",
			models.DeploymentStatusProcessing, olderThan).
		Find(&deployments).Error
	return deployments, err
}

// staleOrMissing distinguishes a guarded update that lost to a terminal
// write from one that targeted a record that does not exist.
func (s *deploymentService) staleOrMissing(id string) error {
	var deployment models.Deployment
	if err := s.db.Select("id", "status").Where("id = ?", id).First(&deployment).Error; err != nil {
		return err
	}
	return ErrStaleTransition
}
