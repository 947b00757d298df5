package services

import (
	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"gorm.io/gorm"
)

// ChainService handles chain-related operations
type ChainService interface {
	CreateChain(chain *models.Chain) error
	GetChainByID(id uint) (*models.Chain, error)
	// GetChainByNetworkID resolves an active chain by its blockchain chain ID
	// (e.g. "11155111" for Sepolia).
	GetChainByNetworkID(networkID string) (*models.Chain, error)
	ListChains() ([]models.Chain, error)
	UpdateChainConfig(networkID, rpc string) error
}

type chainService struct {
	db *gorm.DB
}

// NewChainService creates a new ChainService
func NewChainService(db *gorm.DB) ChainService {
	return &chainService{db: db}
}

// CreateChain creates a new chain
func (s *chainService) CreateChain(chain *models.Chain) error {
	return s.db.Create(chain).Error
}

// GetChainByID returns a chain by its database ID
func (s *chainService) GetChainByID(id uint) (*models.Chain, error) {
	var chain models.Chain
	err := s.db.First(&chain, id).Error
	if err != nil {
		return nil, err
	}
	return &chain, nil
}

func (s *chainService) GetChainByNetworkID(networkID string) (*models.Chain, error) {
	var chain models.Chain
	err := s.db.Where("chain_id = ? AND is_active = ?", networkID, true).First(&chain).Error
	if err != nil {
		return nil, err
	}
	return &chain, nil
}

// ListChains returns all chains
func (s *chainService) ListChains() ([]models.Chain, error) {
	var chains []models.Chain
	err := s.db.Find(&chains).Error
	return chains, err
}

// UpdateChainConfig updates the RPC endpoint of a chain
func (s *chainService) UpdateChainConfig(networkID, rpc string) error {
	return s.db.Model(&models.Chain{}).
		Where("chain_id = ?", networkID).
		Update("rpc", rpc).Error
}
