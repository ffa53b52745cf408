package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-engine/internal/repository"
)

func newArbServiceForTest(arbs *mockArbitratorStore, cfg *mockConfigStore, ledger *mockLedger, transfers *mockTransferStore) *ArbitratorService {
	return NewArbitratorService(arbs, cfg, ledger, transfers, "TOKEN")
}

func TestArbitratorService_Register_Success(t *testing.T) {
	arbs := new(mockArbitratorStore)
	cfg := new(mockConfigStore)
	svc := newArbServiceForTest(arbs, cfg, new(mockLedger), new(mockTransferStore))
	ctx := context.Background()

	cfg.On("Get", ctx).Return(defaultEngineConfig(), nil)
	arbs.On("Upsert", ctx, "judge", 5).Return(&models.Arbitrator{Account: "judge", FeePercent: 5}, nil)

	arb, err := svc.Register(ctx, "judge", 5)
	assert.NoError(t, err)
	assert.Equal(t, 5, arb.FeePercent)
}

func TestArbitratorService_Register_FeeOutOfRange(t *testing.T) {
	svc := newArbServiceForTest(new(mockArbitratorStore), new(mockConfigStore), new(mockLedger), new(mockTransferStore))

	_, err := svc.Register(context.Background(), "judge", 51)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "0–50")

	_, err = svc.Register(context.Background(), "judge", -1)
	assert.Error(t, err)
}

func TestArbitratorService_Activate_InsufficientStake(t *testing.T) {
	arbs := new(mockArbitratorStore)
	cfg := new(mockConfigStore)
	svc := newArbServiceForTest(arbs, cfg, new(mockLedger), new(mockTransferStore))
	ctx := context.Background()

	arbs.On("GetByAccount", ctx, "judge").Return(&models.Arbitrator{Account: "judge", Stake: 500}, nil)
	cfg.On("Get", ctx).Return(defaultEngineConfig(), nil)
	arbs.On("Activate", ctx, "judge", int64(10000)).Return(repository.ErrInsufficientStake)

	_, err := svc.Activate(ctx, "judge")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ниже минимального порога")
}

func TestArbitratorService_Activate_Success(t *testing.T) {
	arbs := new(mockArbitratorStore)
	cfg := new(mockConfigStore)
	svc := newArbServiceForTest(arbs, cfg, new(mockLedger), new(mockTransferStore))
	ctx := context.Background()

	arbs.On("GetByAccount", ctx, "judge").Return(&models.Arbitrator{Account: "judge", Stake: 20000}, nil)
	cfg.On("Get", ctx).Return(defaultEngineConfig(), nil)
	arbs.On("Activate", ctx, "judge", int64(10000)).Return(nil)

	arb, err := svc.Activate(ctx, "judge")
	assert.NoError(t, err)
	assert.True(t, arb.Active)
}

func TestArbitratorService_Deactivate_Busy(t *testing.T) {
	arbs := new(mockArbitratorStore)
	svc := newArbServiceForTest(arbs, new(mockConfigStore), new(mockLedger), new(mockTransferStore))
	ctx := context.Background()

	arbs.On("GetByAccount", ctx, "judge").Return(&models.Arbitrator{Account: "judge", Active: true, ActiveDisputes: 2}, nil)
	arbs.On("Deactivate", ctx, "judge").Return(repository.ErrArbitratorBusy)

	_, err := svc.Deactivate(ctx, "judge")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "открытые споры")
}

func TestArbitratorService_RequestUnstake_Success(t *testing.T) {
	arbs := new(mockArbitratorStore)
	cfg := new(mockConfigStore)
	svc := newArbServiceForTest(arbs, cfg, new(mockLedger), new(mockTransferStore))
	ctx := context.Background()

	arbs.On("GetByAccount", ctx, "judge").Return(&models.Arbitrator{Account: "judge", Stake: 20000}, nil)
	cfg.On("Get", ctx).Return(defaultEngineConfig(), nil)
	arbs.On("RequestUnstake", ctx, "judge", int64(5000), mock.AnythingOfType("time.Time")).
		Return(&models.ArbitratorUnstake{Account: "judge", Amount: 5000, AvailableAt: time.Now().Add(604800 * time.Second)}, nil)

	u, err := svc.RequestUnstake(ctx, "judge", 5000)
	assert.NoError(t, err)
	assert.Equal(t, int64(5000), u.Amount)
}

func TestArbitratorService_RequestUnstake_TooMuch(t *testing.T) {
	arbs := new(mockArbitratorStore)
	cfg := new(mockConfigStore)
	svc := newArbServiceForTest(arbs, cfg, new(mockLedger), new(mockTransferStore))
	ctx := context.Background()

	arbs.On("GetByAccount", ctx, "judge").Return(&models.Arbitrator{Account: "judge", Stake: 1000}, nil)
	cfg.On("Get", ctx).Return(defaultEngineConfig(), nil)
	arbs.On("RequestUnstake", ctx, "judge", int64(5000), mock.Anything).Return(nil, repository.ErrInsufficientStake)

	_, err := svc.RequestUnstake(ctx, "judge", 5000)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "превышает стейк")
}

func TestArbitratorService_RequestUnstake_Pending(t *testing.T) {
	arbs := new(mockArbitratorStore)
	cfg := new(mockConfigStore)
	svc := newArbServiceForTest(arbs, cfg, new(mockLedger), new(mockTransferStore))
	ctx := context.Background()

	arbs.On("GetByAccount", ctx, "judge").Return(&models.Arbitrator{Account: "judge", Stake: 20000}, nil)
	cfg.On("Get", ctx).Return(defaultEngineConfig(), nil)
	arbs.On("RequestUnstake", ctx, "judge", int64(5000), mock.Anything).Return(nil, repository.ErrUnstakePending)

	_, err := svc.RequestUnstake(ctx, "judge", 5000)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "уже есть незавершённый запрос")
}

func TestArbitratorService_WithdrawStake_NotMatured(t *testing.T) {
	arbs := new(mockArbitratorStore)
	svc := newArbServiceForTest(arbs, runningConfig(), new(mockLedger), new(mockTransferStore))
	ctx := context.Background()

	arbs.On("GetUnstake", ctx, "judge").Return(&models.ArbitratorUnstake{
		Account: "judge", Amount: 5000, AvailableAt: time.Now().Add(time.Hour),
	}, nil)

	_, err := svc.WithdrawStake(ctx, "judge")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ещё не истекла")
}

func TestArbitratorService_WithdrawStake_Success(t *testing.T) {
	arbs := new(mockArbitratorStore)
	ledger := new(mockLedger)
	transfers := new(mockTransferStore)
	svc := newArbServiceForTest(arbs, runningConfig(), ledger, transfers)
	ctx := context.Background()

	matured := &models.ArbitratorUnstake{Account: "judge", Amount: 5000, AvailableAt: time.Now().Add(-time.Hour)}
	arbs.On("GetUnstake", ctx, "judge").Return(matured, nil)
	arbs.On("WithdrawUnstake", ctx, "judge", mock.MatchedBy(func(tr *models.Transfer) bool {
		return tr.Account == "judge" && tr.Amount == 5000 && tr.Symbol == "TOKEN"
	})).Return(matured, nil)
	ledger.On("Transfer", ctx, mock.Anything, "judge", int64(5000), "TOKEN", "unstake").Return(nil)
	transfers.On("MarkStatus", ctx, mock.Anything, models.TransferStatusSent).Return(nil)

	u, err := svc.WithdrawStake(ctx, "judge")
	assert.NoError(t, err)
	assert.Equal(t, int64(5000), u.Amount)
	ledger.AssertExpectations(t)
}

func TestArbitratorService_WithdrawStake_NoRequest(t *testing.T) {
	arbs := new(mockArbitratorStore)
	svc := newArbServiceForTest(arbs, runningConfig(), new(mockLedger), new(mockTransferStore))
	ctx := context.Background()

	arbs.On("GetUnstake", ctx, "judge").Return(nil, repository.ErrUnstakeNotFound)

	_, err := svc.WithdrawStake(ctx, "judge")
	assert.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestArbitratorService_WithdrawStake_Paused(t *testing.T) {
	arbs := new(mockArbitratorStore)
	ledger := new(mockLedger)
	svc := newArbServiceForTest(arbs, pausedConfig(), ledger, new(mockTransferStore))

	_, err := svc.WithdrawStake(context.Background(), "judge")
	assert.ErrorIs(t, err, apperror.ErrEnginePaused)
	arbs.AssertNotCalled(t, "WithdrawUnstake", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
