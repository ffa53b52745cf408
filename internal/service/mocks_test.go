package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/repository"
)

// Моки хранилищ и внешних клиентов, общие для тестов пакета.

type mockJobStore struct {
	mock.Mock
}

func (m *mockJobStore) Create(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *mockJobStore) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *mockJobStore) List(ctx context.Context, state string, openOnly bool, limit, offset int) ([]models.Job, error) {
	args := m.Called(ctx, state, openOnly, limit, offset)
	return args.Get(0).([]models.Job), args.Error(1)
}

func (m *mockJobStore) Transition(ctx context.Context, jobID int64, from, to string) error {
	args := m.Called(ctx, jobID, from, to)
	return args.Error(0)
}

func (m *mockJobStore) MarkDelivered(ctx context.Context, jobID int64, evidenceURI string) error {
	args := m.Called(ctx, jobID, evidenceURI)
	return args.Error(0)
}

func (m *mockJobStore) Complete(ctx context.Context, jobID int64, fromState string, payout *models.Transfer) error {
	args := m.Called(ctx, jobID, fromState, payout)
	return args.Error(0)
}

func (m *mockJobStore) Refund(ctx context.Context, jobID int64, fromState string, refund *models.Transfer) error {
	args := m.Called(ctx, jobID, fromState, refund)
	return args.Error(0)
}

func (m *mockJobStore) Cancel(ctx context.Context, jobID int64, refund *models.Transfer) error {
	args := m.Called(ctx, jobID, refund)
	return args.Error(0)
}

func (m *mockJobStore) ApplyFunding(ctx context.Context, t *models.Transfer) (*repository.FundingResult, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.FundingResult), args.Error(1)
}

type mockMilestoneStore struct {
	mock.Mock
}

func (m *mockMilestoneStore) Create(ctx context.Context, ms *models.Milestone) error {
	args := m.Called(ctx, ms)
	return args.Error(0)
}

func (m *mockMilestoneStore) ListByJob(ctx context.Context, jobID int64) ([]models.Milestone, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]models.Milestone), args.Error(1)
}

func (m *mockMilestoneStore) SumByJob(ctx context.Context, jobID int64) (int64, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMilestoneStore) SubmitOldest(ctx context.Context, jobID int64, evidenceURI string) (*models.Milestone, error) {
	args := m.Called(ctx, jobID, evidenceURI)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Milestone), args.Error(1)
}

func (m *mockMilestoneStore) OldestSubmitted(ctx context.Context, jobID int64) (*models.Milestone, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Milestone), args.Error(1)
}

func (m *mockMilestoneStore) Approve(ctx context.Context, ms *models.Milestone, payout *models.Transfer) error {
	args := m.Called(ctx, ms, payout)
	return args.Error(0)
}

type mockBidStore struct {
	mock.Mock
}

func (m *mockBidStore) Create(ctx context.Context, b *models.Bid) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *mockBidStore) GetByID(ctx context.Context, id int64) (*models.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidStore) ListByJob(ctx context.Context, jobID int64) ([]models.Bid, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]models.Bid), args.Error(1)
}

func (m *mockBidStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockBidStore) Select(ctx context.Context, jobID, bidID int64, deadline time.Time) (*models.Bid, error) {
	args := m.Called(ctx, jobID, bidID, deadline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

type mockArbitratorStore struct {
	mock.Mock
}

func (m *mockArbitratorStore) Upsert(ctx context.Context, account string, feePercent int) (*models.Arbitrator, error) {
	args := m.Called(ctx, account, feePercent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Arbitrator), args.Error(1)
}

func (m *mockArbitratorStore) GetByAccount(ctx context.Context, account string) (*models.Arbitrator, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Arbitrator), args.Error(1)
}

func (m *mockArbitratorStore) List(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Arbitrator, error) {
	args := m.Called(ctx, activeOnly, limit, offset)
	return args.Get(0).([]models.Arbitrator), args.Error(1)
}

func (m *mockArbitratorStore) AddStake(ctx context.Context, t *models.Transfer) (*models.Arbitrator, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Arbitrator), args.Error(1)
}

func (m *mockArbitratorStore) Activate(ctx context.Context, account string, minStake int64) error {
	args := m.Called(ctx, account, minStake)
	return args.Error(0)
}

func (m *mockArbitratorStore) Deactivate(ctx context.Context, account string) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockArbitratorStore) RequestUnstake(ctx context.Context, account string, amount int64, availableAt time.Time) (*models.ArbitratorUnstake, error) {
	args := m.Called(ctx, account, amount, availableAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ArbitratorUnstake), args.Error(1)
}

func (m *mockArbitratorStore) GetUnstake(ctx context.Context, account string) (*models.ArbitratorUnstake, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ArbitratorUnstake), args.Error(1)
}

func (m *mockArbitratorStore) WithdrawUnstake(ctx context.Context, account string, payout *models.Transfer) (*models.ArbitratorUnstake, error) {
	args := m.Called(ctx, account, payout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ArbitratorUnstake), args.Error(1)
}

type mockDisputeStore struct {
	mock.Mock
}

func (m *mockDisputeStore) Open(ctx context.Context, d *models.Dispute, arbitrator string) error {
	args := m.Called(ctx, d, arbitrator)
	return args.Error(0)
}

func (m *mockDisputeStore) GetOpenByJob(ctx context.Context, jobID int64) (*models.Dispute, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) ListByJob(ctx context.Context, jobID int64) ([]models.Dispute, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) Resolve(ctx context.Context, res repository.Resolution) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

type mockConfigStore struct {
	mock.Mock
}

func (m *mockConfigStore) Get(ctx context.Context) (*models.EngineConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EngineConfig), args.Error(1)
}

func (m *mockConfigStore) Update(ctx context.Context, cfg *models.EngineConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *mockConfigStore) SetOwner(ctx context.Context, newOwner string) error {
	args := m.Called(ctx, newOwner)
	return args.Error(0)
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) IsRegisteredAndActive(ctx context.Context, account string) (bool, error) {
	args := m.Called(ctx, account)
	return args.Bool(0), args.Error(1)
}

func (m *mockRegistry) IncrementJobCount(ctx context.Context, account string) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Transfer(ctx context.Context, txID uuid.UUID, to string, amount int64, symbol, memo string) error {
	args := m.Called(ctx, txID, to, amount, symbol, memo)
	return args.Error(0)
}

type mockTransferStore struct {
	mock.Mock
}

func (m *mockTransferStore) RecordRejected(ctx context.Context, t *models.Transfer) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockTransferStore) MarkStatus(ctx context.Context, txID uuid.UUID, status string) error {
	args := m.Called(ctx, txID, status)
	return args.Error(0)
}

func (m *mockTransferStore) ListByAccount(ctx context.Context, account string, limit, offset int) ([]models.Transfer, error) {
	args := m.Called(ctx, account, limit, offset)
	return args.Get(0).([]models.Transfer), args.Error(1)
}

func (m *mockTransferStore) ListByJob(ctx context.Context, jobID int64) ([]models.Transfer, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]models.Transfer), args.Error(1)
}

func (m *mockTransferStore) ListPendingOutbound(ctx context.Context, limit int) ([]models.Transfer, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.Transfer), args.Error(1)
}

// runningConfig — мок политики с работающим (не приостановленным) движком.
func runningConfig() *mockConfigStore {
	cfg := new(mockConfigStore)
	cfg.On("Get", mock.Anything).Return(defaultEngineConfig(), nil)
	return cfg
}

// pausedConfig — мок политики с движком на паузе.
func pausedConfig() *mockConfigStore {
	paused := defaultEngineConfig()
	paused.Paused = true
	cfg := new(mockConfigStore)
	cfg.On("Get", mock.Anything).Return(paused, nil)
	return cfg
}

// defaultEngineConfig — типовая политика движка для тестов.
func defaultEngineConfig() *models.EngineConfig {
	return &models.EngineConfig{
		Owner:                 "engine.owner",
		PlatformFeeBps:        250,
		MinJobAmount:          100,
		DefaultDeadlineDays:   30,
		DisputeWindowSecs:     0,
		AcceptanceTimeoutSecs: 86400,
		MinArbitratorStake:    10000,
		ArbUnstakeDelaySecs:   604800,
	}
}
