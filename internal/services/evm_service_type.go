package services

import (
	"fmt"
	"math/big"

	"github.com/rxtech-lab/launchpad-deployer/internal/models"
)

// CompiledContract is the output of template compilation and the input to
// estimation and submission.
type CompiledContract struct {
	ContractName string `json:"contract_name"`
	Bytecode     string `json:"bytecode"`
	AbiJSON      string `json:"abi"`
}

type CompileTemplateArgs struct {
	// TemplateCode is the Solidity template source
	TemplateCode string `validate:"required"`
	// ContractName selects the contract from the compilation output
	ContractName string `validate:"required"`
	// TemplateValues are substituted into the template before compiling
	TemplateValues map[string]interface{}
}

type EstimateDeploymentGasArgs struct {
	Chain           *models.Chain    `validate:"required"`
	Contract        CompiledContract `validate:"required"`
	ConstructorArgs []any
}

type SubmitDeploymentArgs struct {
	Chain           *models.Chain    `validate:"required"`
	Contract        CompiledContract `validate:"required"`
	ConstructorArgs []any
	// GasLimit is mandatory; the caller either supplied it or it was derived
	// from the estimate plus the safety margin.
	GasLimit uint64 `validate:"required"`
	// Nil price/fee fields default to the market values of the target chain.
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// TransactionReceipt is the subset of an EVM receipt the pipeline consumes.
type TransactionReceipt struct {
	Status          uint64
	GasUsed         uint64
	BlockNumber     uint64
	ContractAddress string
}

// Success reports whether on-chain execution succeeded.
func (r *TransactionReceipt) Success() bool {
	return r.Status == 1
}

// CompileError marks a template that failed to render or compile. Compile
// errors are permanent; retrying cannot fix them.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string { return fmt.Sprintf("compile error: %v", e.Err) }
func (e *CompileError) Unwrap() error { return e.Err }

// EstimationError marks a failed gas estimation. Usually transient RPC
// trouble, eligible for retry.
type EstimationError struct {
	Err error
}

func (e *EstimationError) Error() string { return fmt.Sprintf("gas estimation error: %v", e.Err) }
func (e *EstimationError) Unwrap() error { return e.Err }

// SubmissionError marks a failed transaction submission.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return fmt.Sprintf("submission error: %v", e.Err) }
func (e *SubmissionError) Unwrap() error { return e.Err }
