package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/launchpad-deployer/internal/database"
	"github.com/rxtech-lab/launchpad-deployer/internal/models"
	"github.com/rxtech-lab/launchpad-deployer/internal/services"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// mockChainClient fakes compilation and chain access. Each behavior can be
// overridden per test; defaults succeed immediately.
type mockChainClient struct {
	compile  func(services.CompileTemplateArgs) (services.CompiledContract, error)
	estimate func(services.EstimateDeploymentGasArgs) (uint64, error)
	submit   func(services.SubmitDeploymentArgs) (string, error)
	receipt  func(*models.Chain, string) (*services.TransactionReceipt, error)

	submits atomic.Int32
	polls   atomic.Int32
}

func (m *mockChainClient) CompileTemplate(ctx context.Context, args services.CompileTemplateArgs) (services.CompiledContract, error) {
	if m.compile != nil {
		return m.compile(args)
	}
	return services.CompiledContract{
		ContractName: args.ContractName,
		Bytecode:     "0x6080604052",
		AbiJSON:      `[]`,
	}, nil
}

func (m *mockChainClient) EstimateDeploymentGas(ctx context.Context, args services.EstimateDeploymentGasArgs) (uint64, error) {
	if m.estimate != nil {
		return m.estimate(args)
	}
	return 100000, nil
}

func (m *mockChainClient) SubmitDeployment(ctx context.Context, args services.SubmitDeploymentArgs) (string, error) {
	n := m.submits.Add(1)
	if m.submit != nil {
		return m.submit(args)
	}
	return fmt.Sprintf("0xhash%d", n), nil
}

func (m *mockChainClient) GetReceipt(ctx context.Context, chain *models.Chain, txHash string) (*services.TransactionReceipt, error) {
	m.polls.Add(1)
	if m.receipt != nil {
		return m.receipt(chain, txHash)
	}
	return &services.TransactionReceipt{
		Status:          1,
		GasUsed:         90000,
		BlockNumber:     7,
		ContractAddress: "0xc0ffee",
	}, nil
}

type PipelineTestSuite struct {
	suite.Suite
	db    *database.Database
	mock  *mockChainClient
	orch  *Orchestrator
	svcs  Services
	chain *models.Chain
}

func (s *PipelineTestSuite) SetupTest() {
	db, err := database.NewDatabase(":memory:")
	s.Require().NoError(err)
	s.db = db

	sqlDB, err := db.DB.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.chain = &models.Chain{
		ChainType: models.ChainTypeEthereum,
		RPC:       "http://localhost:8545",
		NetworkID: "31337",
		Name:      "Test Chain",
		IsActive:  true,
	}
	s.Require().NoError(db.DB.Create(s.chain).Error)

	s.mock = &mockChainClient{}
	s.svcs = Services{
		Deployments:  services.NewDeploymentService(db.DB),
		Templates:    services.NewTemplateService(db.DB),
		Chains:       services.NewChainService(db.DB),
		DailyMetrics: services.NewMetricsService(db.DB),
		ChainClient:  s.mock,
	}

	s.orch = New(Config{
		DeployWorkers:       2,
		ConfirmWorkers:      4,
		SubmitMaxAttempts:   3,
		SubmitRetryBackoff:  time.Millisecond,
		ConfirmInitialDelay: time.Millisecond,
		ConfirmPollInterval: 5 * time.Millisecond,
		ConfirmMaxRetries:   3,
		SweepAfter:          time.Millisecond,
		EventBuffer:         16,
	}, s.svcs, zap.NewNop())
}

func (s *PipelineTestSuite) TearDownTest() {
	s.orch.Stop()
	s.db.Close()
}

func (s *PipelineTestSuite) spec() DeploymentSpec {
	return DeploymentSpec{
		ChainID:      "31337",
		TemplateCode: "contract TestToken {}",
		ContractName: "TestToken",
	}
}

func (s *PipelineTestSuite) eventuallyStatus(id string, want models.DeploymentStatus) *models.Deployment {
	var found *models.Deployment
	s.Require().Eventually(func() bool {
		d, err := s.svcs.Deployments.GetDeploymentByID(id)
		if err != nil {
			return false
		}
		found = d
		return d.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return found
}

func (s *PipelineTestSuite) TestDeploymentConfirmedOnSecondPoll() {
	var polls atomic.Int32
	s.mock.receipt = func(chain *models.Chain, txHash string) (*services.TransactionReceipt, error) {
		if polls.Add(1) < 2 {
			return nil, nil
		}
		return &services.TransactionReceipt{
			Status:          1,
			GasUsed:         90000,
			BlockNumber:     42,
			ContractAddress: "0xc0ffee",
		}, nil
	}

	sub, err := s.orch.Submit(context.Background(), s.spec())
	s.Require().NoError(err)
	s.Require().NoError(sub.Wait(context.Background()))

	found := s.eventuallyStatus(sub.DeploymentID, models.DeploymentStatusSuccess)
	s.Equal("0xc0ffee", found.ContractAddress)
	s.Equal(uint64(90000), found.GasUsed)
	s.Equal(uint64(42), found.BlockNumber)
	s.Equal("0xhash1", found.TransactionHash)
	s.Equal(int32(2), polls.Load())

	// The aggregator folds the terminal event into the daily counters.
	day := models.MetricDay(time.Now())
	s.Require().Eventually(func() bool {
		metric, err := s.svcs.DailyMetrics.GetDailyMetric(s.chain.ID, day)
		return err == nil &&
			metric.TotalDeployments == 1 &&
			metric.SuccessfulDeployments == 1 &&
			metric.TotalGasUsed.IntPart() == 90000
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *PipelineTestSuite) TestCompileFailureIsPermanent() {
	s.mock.compile = func(services.CompileTemplateArgs) (services.CompiledContract, error) {
		return services.CompiledContract{}, &services.CompileError{Err: errors.New("expected pragma")}
	}

	sub, err := s.orch.Submit(context.Background(), s.spec())
	s.Require().NoError(err)

	err = sub.Wait(context.Background())
	s.Require().Error(err)
	s.Contains(err.Error(), "expected pragma")

	found := s.eventuallyStatus(sub.DeploymentID, models.DeploymentStatusFailed)
	s.Contains(found.Error, "expected pragma")
	s.Empty(found.TransactionHash)
	// No retry and no submission for a compile failure.
	s.Equal(int32(0), s.mock.submits.Load())
}

func (s *PipelineTestSuite) TestInvalidConstructorArgsFailWithoutRetry() {
	var estimates atomic.Int32
	s.mock.estimate = func(services.EstimateDeploymentGasArgs) (uint64, error) {
		estimates.Add(1)
		return 0, &services.CompileError{Err: errors.New("expected 2 arguments, got 0")}
	}

	sub, err := s.orch.Submit(context.Background(), s.spec())
	s.Require().NoError(err)
	s.Require().Error(sub.Wait(context.Background()))

	found := s.eventuallyStatus(sub.DeploymentID, models.DeploymentStatusFailed)
	s.Contains(found.Error, "expected 2 arguments")
	s.Equal(int32(1), estimates.Load())
	s.Equal(int32(0), s.mock.submits.Load())
}

func (s *PipelineTestSuite) TestTransientSubmissionRetries() {
	s.mock.submit = func(services.SubmitDeploymentArgs) (string, error) {
		if s.mock.submits.Load() < 3 {
			return "", &services.SubmissionError{Err: errors.New("nonce too low")}
		}
		return "0xretried", nil
	}

	sub, err := s.orch.Submit(context.Background(), s.spec())
	s.Require().NoError(err)
	s.Require().NoError(sub.Wait(context.Background()))

	found := s.eventuallyStatus(sub.DeploymentID, models.DeploymentStatusSuccess)
	s.Equal("0xretried", found.TransactionHash)
	s.Equal(int32(3), s.mock.submits.Load())
}

func (s *PipelineTestSuite) TestSubmissionExhaustionMarksFailed() {
	s.mock.submit = func(services.SubmitDeploymentArgs) (string, error) {
		return "", &services.SubmissionError{Err: errors.New("rpc unreachable")}
	}

	sub, err := s.orch.Submit(context.Background(), s.spec())
	s.Require().NoError(err)

	err = sub.Wait(context.Background())
	s.Require().Error(err)

	found := s.eventuallyStatus(sub.DeploymentID, models.DeploymentStatusFailed)
	s.Contains(found.Error, "rpc unreachable")
	s.Empty(found.TransactionHash)
	s.Equal(int32(3), s.mock.submits.Load())
}

func (s *PipelineTestSuite) TestRevertedTransaction() {
	s.mock.receipt = func(chain *models.Chain, txHash string) (*services.TransactionReceipt, error) {
		return &services.TransactionReceipt{
			Status:      0,
			GasUsed:     50000,
			BlockNumber: 9,
		}, nil
	}

	sub, err := s.orch.Submit(context.Background(), s.spec())
	s.Require().NoError(err)
	s.Require().NoError(sub.Wait(context.Background()))

	found := s.eventuallyStatus(sub.DeploymentID, models.DeploymentStatusFailed)
	s.Equal("transaction failed on chain", found.Error)
	s.Empty(found.ContractAddress)

	// Reverts count toward the daily total but not the successes.
	day := models.MetricDay(time.Now())
	s.Require().Eventually(func() bool {
		metric, err := s.svcs.DailyMetrics.GetDailyMetric(s.chain.ID, day)
		return err == nil &&
			metric.TotalDeployments == 1 &&
			metric.SuccessfulDeployments == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *PipelineTestSuite) TestConfirmationTimeoutLeavesProcessing() {
	s.mock.receipt = func(chain *models.Chain, txHash string) (*services.TransactionReceipt, error) {
		return nil, nil
	}

	sub, err := s.orch.Submit(context.Background(), s.spec())
	s.Require().NoError(err)
	s.Require().NoError(sub.Wait(context.Background()))

	// Initial poll plus ConfirmMaxRetries requeues, then the task times out.
	s.Require().Eventually(func() bool {
		return s.mock.polls.Load() == 4
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	s.Equal(int32(4), s.mock.polls.Load())

	// The record keeps its hash and stays processing for the recovery sweep.
	found, err := s.svcs.Deployments.GetDeploymentByID(sub.DeploymentID)
	s.Require().NoError(err)
	s.Equal(models.DeploymentStatusProcessing, found.Status)
	s.Equal("0xhash1", found.TransactionHash)
}

func (s *PipelineTestSuite) TestBatchPartialFailure() {
	s.mock.compile = func(args services.CompileTemplateArgs) (services.CompiledContract, error) {
		if args.ContractName == "Broken" {
			return services.CompiledContract{}, &services.CompileError{Err: errors.New("unterminated string literal")}
		}
		return services.CompiledContract{ContractName: args.ContractName, Bytecode: "0x6080", AbiJSON: `[]`}, nil
	}

	broken := s.spec()
	broken.ContractName = "Broken"
	specs := []DeploymentSpec{s.spec(), broken, s.spec()}

	result := s.orch.SubmitBatch(context.Background(), specs)

	s.Require().Len(result.Successful, 2)
	s.Equal(0, result.Successful[0].Index)
	s.Equal(2, result.Successful[1].Index)

	s.Require().Len(result.Failed, 1)
	s.Equal(1, result.Failed[0].Index)
	s.Equal("Broken", result.Failed[0].Spec.ContractName)
	s.Contains(result.Failed[0].Error, "unterminated string literal")

	for _, item := range result.Successful {
		s.eventuallyStatus(item.DeploymentID, models.DeploymentStatusSuccess)
	}
}

func (s *PipelineTestSuite) TestBatchRejectedItemDoesNotAbortRest() {
	specs := []DeploymentSpec{
		s.spec(),
		{ChainID: "99999", TemplateCode: "contract X {}", ContractName: "X"},
		s.spec(),
	}

	result := s.orch.SubmitBatch(context.Background(), specs)

	s.Require().Len(result.Successful, 2)
	s.Require().Len(result.Failed, 1)
	s.Equal(1, result.Failed[0].Index)
	s.Contains(result.Failed[0].Error, "99999")
}

func (s *PipelineTestSuite) TestDuplicateMonitorsFinalizeOnce() {
	deployment := &models.Deployment{
		ID:           uuid.New().String(),
		ChainID:      s.chain.ID,
		ContractName: "TestToken",
	}
	s.Require().NoError(s.svcs.Deployments.CreateDeployment(deployment))
	s.Require().NoError(s.svcs.Deployments.MarkProcessing(deployment.ID))
	s.Require().NoError(s.svcs.Deployments.SetSubmitted(deployment.ID, "0xsame", 1))

	// Both schedules race for the same transaction; dedup admits one monitor.
	s.orch.scheduleConfirmation(deployment.ID, s.chain.ID, "0xsame", time.Millisecond)
	s.orch.scheduleConfirmation(deployment.ID, s.chain.ID, "0xsame", time.Millisecond)

	s.eventuallyStatus(deployment.ID, models.DeploymentStatusSuccess)

	time.Sleep(50 * time.Millisecond)
	s.Equal(int32(1), s.mock.polls.Load())

	day := models.MetricDay(time.Now())
	s.Require().Eventually(func() bool {
		metric, err := s.svcs.DailyMetrics.GetDailyMetric(s.chain.ID, day)
		return err == nil && metric.TotalDeployments == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *PipelineTestSuite) TestRecoverySweepResumesMonitoring() {
	deployment := &models.Deployment{
		ID:           uuid.New().String(),
		ChainID:      s.chain.ID,
		ContractName: "TestToken",
	}
	s.Require().NoError(s.svcs.Deployments.CreateDeployment(deployment))
	s.Require().NoError(s.svcs.Deployments.MarkProcessing(deployment.ID))
	s.Require().NoError(s.svcs.Deployments.SetSubmitted(deployment.ID, "0xorphaned", 1))

	// Let the record age past SweepAfter.
	time.Sleep(5 * time.Millisecond)

	s.orch.resumeUnconfirmed()

	found := s.eventuallyStatus(deployment.ID, models.DeploymentStatusSuccess)
	s.Equal("0xc0ffee", found.ContractAddress)
}

func (s *PipelineTestSuite) TestSubmitRejectsUnknownChain() {
	spec := s.spec()
	spec.ChainID = "424242"

	_, err := s.orch.Submit(context.Background(), spec)
	s.Error(err)
}

func (s *PipelineTestSuite) TestSubmitRequiresTemplateSource() {
	spec := DeploymentSpec{ChainID: "31337"}

	_, err := s.orch.Submit(context.Background(), spec)
	s.Error(err)
}

func (s *PipelineTestSuite) TestSubmitWithStoredTemplate() {
	template := &models.Template{
		Name:         "ERC20",
		ChainType:    models.ChainTypeEthereum,
		ContractName: "StoredToken",
		TemplateCode: "contract StoredToken {}",
	}
	s.Require().NoError(s.svcs.Templates.CreateTemplate(template))

	spec := DeploymentSpec{ChainID: "31337", TemplateID: &template.ID}
	sub, err := s.orch.Submit(context.Background(), spec)
	s.Require().NoError(err)
	s.Require().NoError(sub.Wait(context.Background()))

	found := s.eventuallyStatus(sub.DeploymentID, models.DeploymentStatusSuccess)
	s.Equal("StoredToken", found.ContractName)
	s.Require().NotNil(found.TemplateID)
	s.Equal(template.ID, *found.TemplateID)
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

func TestChainPriority(t *testing.T) {
	if got := ChainPriority("1"); got != 10 {
		t.Errorf("mainnet priority = %d, want 10", got)
	}
	if got := ChainPriority("11155111"); got != 3 {
		t.Errorf("sepolia priority = %d, want 3", got)
	}
	if got := ChainPriority("31337"); got != defaultChainPriority {
		t.Errorf("unknown chain priority = %d, want %d", got, defaultChainPriority)
	}
}

func TestGasLimit(t *testing.T) {
	if got := gasLimit(nil, 100000, 20); got != 120000 {
		t.Errorf("padded gas limit = %d, want 120000", got)
	}
	if got := gasLimit(&models.GasSettings{GasLimit: 500000}, 100000, 20); got != 500000 {
		t.Errorf("explicit gas limit = %d, want 500000", got)
	}
	if got := gasLimit(&models.GasSettings{}, 100000, 20); got != 120000 {
		t.Errorf("zero explicit limit should fall back to estimate, got %d", got)
	}
}

func TestParseWei(t *testing.T) {
	v, err := parseWei("1500000000")
	if err != nil || v.Int64() != 1500000000 {
		t.Errorf("parseWei(1500000000) = %v, %v", v, err)
	}
	if v, err := parseWei(""); err != nil || v != nil {
		t.Errorf("parseWei(empty) = %v, %v, want nil, nil", v, err)
	}
	if _, err := parseWei("not-a-number"); err == nil {
		t.Error("parseWei should reject non-numeric input")
	}
}
