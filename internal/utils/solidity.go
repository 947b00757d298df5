package utils

import (
	"encoding/json"
	"fmt"

	"github.com/rxtech-lab/solc-go"
)

type CompilationResult struct {
	Bytecode map[string]string
	Abi      map[string]any
}

// CompileSolidity compiles a single self-contained Solidity source. Template
// code is expected to inline its dependencies; external imports are rejected
// by the import callback.
func CompileSolidity(version string, code string) (CompilationResult, error) {
	compiler, err := solc.NewWithVersion(version)
	if err != nil {
		return CompilationResult{}, err
	}

	opts := solc.CompileOptions{
		ImportCallback: func(u string) solc.ImportResult {
			return solc.ImportResult{
				Error: fmt.Sprintf("import %s not found: templates must be self-contained", u),
			}
		},
	}
	result, err := compiler.CompileWithOptions(&solc.Input{
		Language: "Solidity",
		Sources: map[string]solc.SourceIn{
			"contract.sol": {
				Content: code,
			},
		},
		Settings: solc.Settings{
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": []string{"abi", "evm.bytecode"},
				},
			},
		},
	}, &opts)
	if err != nil {
		return CompilationResult{}, err
	}

	if len(result.Errors) > 0 {
		return CompilationResult{}, fmt.Errorf("compilation errors: %v", result.Errors)
	}

	bytecodeMap := make(map[string]string)
	abiMap := make(map[string]any)

	for fileName, contract := range result.Contracts {
		if fileName != "contract.sol" {
			continue
		}
		for contractName, contract := range contract {
			bytecodeMap[contractName] = contract.EVM.Bytecode.Object
			abiMap[contractName] = contract.ABI
		}
	}

	return CompilationResult{
		Bytecode: bytecodeMap,
		Abi:      abiMap,
	}, nil
}

// AbiJSON marshals the raw ABI of one contract from a compilation result.
func (r CompilationResult) AbiJSON(contractName string) (string, error) {
	abiData, exists := r.Abi[contractName]
	if !exists {
		return "", fmt.Errorf("ABI for contract %s not found", contractName)
	}
	abiBytes, err := json.Marshal(abiData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ABI: %w", err)
	}
	return string(abiBytes), nil
}
