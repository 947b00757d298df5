package server

import (
	"fmt"

	"github.com/rxtech-lab/launchpad-deployer/internal/config"
	"github.com/rxtech-lab/launchpad-deployer/internal/pipeline"
	"github.com/rxtech-lab/launchpad-deployer/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InitializeServices constructs the store-backed services and the EVM chain
// client and bundles them for the pipeline.
func InitializeServices(db *gorm.DB, cfg *config.Config, logger *zap.Logger) (pipeline.Services, error) {
	chainClient, err := services.NewEvmChainClient(cfg.DeployerPrivateKey, cfg.SolcVersion, logger)
	if err != nil {
		return pipeline.Services{}, fmt.Errorf("failed to initialize chain client: %w", err)
	}

	return pipeline.Services{
		Deployments:  services.NewDeploymentService(db),
		Templates:    services.NewTemplateService(db),
		Chains:       services.NewChainService(db),
		DailyMetrics: services.NewMetricsService(db),
		ChainClient:  chainClient,
	}, nil
}
