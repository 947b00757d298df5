package models

import (
	"time"

	"gorm.io/gorm"
)

// Template represents smart contract templates by chain type
type Template struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Name                 string         `gorm:"not null" json:"name"`
	Description          string         `json:"description"`
	UserId               *string        `gorm:"index;type:varchar(255)" json:"user_id,omitempty"`
	ChainType            ChainType      `gorm:"not null" json:"chain_type"`
	ContractName         string         `gorm:"not null" json:"contract_name"`
	TemplateCode         string         `gorm:"type:text;not null" json:"template_code"`
	Metadata             JSON           `gorm:"type:text" json:"metadata"` // Template parameter definitions (key: empty value pairs)
	SampleTemplateValues JSON           `gorm:"type:text" json:"sample_template_values"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}
