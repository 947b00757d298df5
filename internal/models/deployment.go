package models

import "time"

type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusProcessing DeploymentStatus = "processing"
	DeploymentStatusSuccess    DeploymentStatus = "success"
	DeploymentStatusFailed     DeploymentStatus = "failed"
)

// Terminal reports whether no further status transitions are allowed.
func (s DeploymentStatus) Terminal() bool {
	return s == DeploymentStatusSuccess || s == DeploymentStatusFailed
}

// GasSettings are optional caller overrides for the deployment transaction.
// Fields left zero default to the estimate (limit) or market values (price/fees).
type GasSettings struct {
	GasLimit             uint64 `json:"gas_limit,omitempty"`
	GasPrice             string `json:"gas_price,omitempty"`                // wei, decimal string
	MaxFeePerGas         string `json:"max_fee_per_gas,omitempty"`          // wei, decimal string
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas,omitempty"` // wei, decimal string
}

// Deployment tracks one contract-deployment request from submission to
// on-chain finality. Status only moves pending -> processing -> success|failed.
type Deployment struct {
	ID              string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID          *string          `gorm:"index;type:varchar(255)" json:"user_id,omitempty"`
	TemplateID      *uint            `gorm:"index" json:"template_id,omitempty"`
	ChainID         uint             `gorm:"not null;index" json:"chain_id"`
	ContractName    string           `gorm:"not null" json:"contract_name"`
	TemplateValues  JSON             `gorm:"type:text" json:"template_values"` // Runtime template parameter values
	ConstructorArgs JSONArray        `gorm:"type:text" json:"constructor_args"`
	GasSettings     *GasSettings     `gorm:"serializer:json" json:"gas_settings,omitempty"`
	Status          DeploymentStatus `gorm:"default:pending;index" json:"status"` // pending, processing, success, failed
	TransactionHash string           `gorm:"index" json:"transaction_hash"`
	ContractAddress string           `json:"contract_address"`
	GasEstimate     uint64           `json:"gas_estimate"`
	GasUsed         uint64           `json:"gas_used"`
	BlockNumber     uint64           `json:"block_number"`
	Error           string           `json:"error"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`

	Template *Template `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	Chain    Chain     `gorm:"foreignKey:ChainID;references:ID" json:"chain,omitempty"`
}
