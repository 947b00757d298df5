package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"github.com/rxtech-lab/launchpad-deployer/internal/utils"
	"go.uber.org/zap"
)

// ChainClient compiles, estimates, submits and queries deployment
// transactions per chain.
type ChainClient interface {
	CompileTemplate(ctx context.Context, args CompileTemplateArgs) (CompiledContract, error)
	EstimateDeploymentGas(ctx context.Context, args EstimateDeploymentGasArgs) (uint64, error)
	SubmitDeployment(ctx context.Context, args SubmitDeploymentArgs) (string, error)
	// GetReceipt returns nil without error while the transaction is
	// unconfirmed.
	GetReceipt(ctx context.Context, chain *models.Chain, txHash string) (*TransactionReceipt, error)
}

type evmChainClient struct {
	validator   *validator.Validate
	logger      *zap.Logger
	privateKey  *ecdsa.PrivateKey
	address     common.Address
	solcVersion string

	mu      sync.Mutex
	clients map[uint]*ethclient.Client
}

// NewEvmChainClient creates a ChainClient that signs deployment transactions
// with the given operator key.
func NewEvmChainClient(privateKeyHex string, solcVersion string, logger *zap.Logger) (ChainClient, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	return &evmChainClient{
		validator:   validator.New(),
		logger:      logger,
		privateKey:  privateKey,
		address:     crypto.PubkeyToAddress(privateKey.PublicKey),
		solcVersion: solcVersion,
		clients:     make(map[uint]*ethclient.Client),
	}, nil
}

// CompileTemplate renders the template values into the source and compiles it.
func (c *evmChainClient) CompileTemplate(ctx context.Context, args CompileTemplateArgs) (CompiledContract, error) {
	if err := c.validator.Struct(args); err != nil {
		return CompiledContract{}, &CompileError{Err: err}
	}

	code := args.TemplateCode
	if len(args.TemplateValues) > 0 {
		rendered, err := utils.RenderContractTemplate(args.TemplateCode, args.TemplateValues)
		if err != nil {
			return CompiledContract{}, &CompileError{Err: err}
		}
		code = rendered
	}

	result, err := utils.CompileSolidity(c.solcVersion, code)
	if err != nil {
		return CompiledContract{}, &CompileError{Err: err}
	}

	bytecode, exists := result.Bytecode[args.ContractName]
	if !exists {
		return CompiledContract{}, &CompileError{Err: fmt.Errorf("contract %s not found in compilation result", args.ContractName)}
	}

	abiJSON, err := result.AbiJSON(args.ContractName)
	if err != nil {
		return CompiledContract{}, &CompileError{Err: err}
	}

	return CompiledContract{
		ContractName: args.ContractName,
		Bytecode:     bytecode,
		AbiJSON:      abiJSON,
	}, nil
}

// EstimateDeploymentGas estimates the gas for the deployment transaction.
func (c *evmChainClient) EstimateDeploymentGas(ctx context.Context, args EstimateDeploymentGasArgs) (uint64, error) {
	if err := c.validator.Struct(args); err != nil {
		return 0, &EstimationError{Err: err}
	}

	data, err := c.deploymentData(args.Contract, args.ConstructorArgs)
	if err != nil {
		// Bad constructor arguments cannot be fixed by retrying
		return 0, &CompileError{Err: err}
	}

	client, err := c.clientFor(args.Chain)
	if err != nil {
		return 0, &EstimationError{Err: err}
	}

	estimate, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.address,
		To:   nil, // contract creation
		Data: data,
	})
	if err != nil {
		return 0, &EstimationError{Err: err}
	}

	return estimate, nil
}

// SubmitDeployment signs and broadcasts the deployment transaction and
// returns its hash.
func (c *evmChainClient) SubmitDeployment(ctx context.Context, args SubmitDeploymentArgs) (string, error) {
	if err := c.validator.Struct(args); err != nil {
		return "", &SubmissionError{Err: err}
	}

	data, err := c.deploymentData(args.Contract, args.ConstructorArgs)
	if err != nil {
		return "", &CompileError{Err: err}
	}

	client, err := c.clientFor(args.Chain)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}

	chainID, ok := new(big.Int).SetString(args.Chain.NetworkID, 10)
	if !ok {
		return "", &SubmissionError{Err: fmt.Errorf("invalid chain id %q", args.Chain.NetworkID)}
	}

	nonce, err := client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return "", &SubmissionError{Err: fmt.Errorf("failed to get nonce: %w", err)}
	}

	var txData types.TxData
	if args.MaxFeePerGas != nil {
		tip := args.MaxPriorityFeePerGas
		if tip == nil {
			tip, err = client.SuggestGasTipCap(ctx)
			if err != nil {
				return "", &SubmissionError{Err: fmt.Errorf("failed to suggest gas tip: %w", err)}
			}
		}
		txData = &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: args.MaxFeePerGas,
			Gas:       args.GasLimit,
			To:        nil,
			Data:      data,
		}
	} else {
		gasPrice := args.GasPrice
		if gasPrice == nil {
			gasPrice, err = client.SuggestGasPrice(ctx)
			if err != nil {
				return "", &SubmissionError{Err: fmt.Errorf("failed to suggest gas price: %w", err)}
			}
		}
		txData = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      args.GasLimit,
			To:       nil,
			Data:     data,
		}
	}

	signedTx, err := types.SignNewTx(c.privateKey, types.LatestSignerForChainID(chainID), txData)
	if err != nil {
		return "", &SubmissionError{Err: fmt.Errorf("failed to sign transaction: %w", err)}
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return "", &SubmissionError{Err: err}
	}

	c.logger.Info("deployment transaction submitted",
		zap.String("chain_id", args.Chain.NetworkID),
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("gas_limit", args.GasLimit))

	return signedTx.Hash().Hex(), nil
}

// GetReceipt fetches the receipt for a transaction hash.
func (c *evmChainClient) GetReceipt(ctx context.Context, chain *models.Chain, txHash string) (*TransactionReceipt, error) {
	client, err := c.clientFor(chain)
	if err != nil {
		return nil, err
	}

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	mapped := &TransactionReceipt{
		Status:  receipt.Status,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		mapped.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.ContractAddress != (common.Address{}) {
		mapped.ContractAddress = receipt.ContractAddress.Hex()
	}

	return mapped, nil
}

func (c *evmChainClient) deploymentData(contract CompiledContract, constructorArgs []any) ([]byte, error) {
	encodedArgs, err := utils.EncodeContractConstructorArgs(contract.AbiJSON, constructorArgs)
	if err != nil {
		return nil, err
	}

	return hexutil.Decode(utils.BuildDeploymentTransactionData(contract.Bytecode, encodedArgs))
}

// clientFor returns a cached RPC client for the chain, dialing on first use.
func (c *evmChainClient) clientFor(chain *models.Chain) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[chain.ID]; ok {
		return client, nil
	}

	client, err := ethclient.Dial(chain.RPC)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", chain.Name, err)
	}
	c.clients[chain.ID] = client
	return client, nil
}
