package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
)

func validConfigInput() EngineConfigInput {
	return EngineConfigInput{
		PlatformFeeBps:        300,
		MinJobAmount:          500,
		DefaultDeadlineDays:   14,
		DisputeWindowSecs:     259200,
		AcceptanceTimeoutSecs: 86400,
		MinArbitratorStake:    20000,
		ArbUnstakeDelaySecs:   604800,
	}
}

func TestConfigService_SetConfig_Success(t *testing.T) {
	store := new(mockConfigStore)
	svc := NewConfigService(store)
	ctx := context.Background()

	store.On("Get", ctx).Return(defaultEngineConfig(), nil)
	store.On("Update", ctx, mock.Anything).Return(nil)

	cfg, err := svc.SetConfig(ctx, "engine.owner", validConfigInput())
	assert.NoError(t, err)
	assert.Equal(t, 300, cfg.PlatformFeeBps)
	assert.Equal(t, "engine.owner", cfg.Owner)
	store.AssertExpectations(t)
}

func TestConfigService_SetConfig_NotOwner(t *testing.T) {
	store := new(mockConfigStore)
	svc := NewConfigService(store)
	ctx := context.Background()

	store.On("Get", ctx).Return(defaultEngineConfig(), nil)

	_, err := svc.SetConfig(ctx, "mallory", validConfigInput())
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestConfigService_SetConfig_InvalidFee(t *testing.T) {
	store := new(mockConfigStore)
	svc := NewConfigService(store)
	ctx := context.Background()

	store.On("Get", ctx).Return(defaultEngineConfig(), nil)

	in := validConfigInput()
	in.PlatformFeeBps = 10001
	_, err := svc.SetConfig(ctx, "engine.owner", in)
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestConfigService_SetConfig_NegativeTimeout(t *testing.T) {
	store := new(mockConfigStore)
	svc := NewConfigService(store)
	ctx := context.Background()

	store.On("Get", ctx).Return(defaultEngineConfig(), nil)

	in := validConfigInput()
	in.AcceptanceTimeoutSecs = -1
	_, err := svc.SetConfig(ctx, "engine.owner", in)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "отрицательными")
}

func TestConfigService_SetConfig_PauseEngine(t *testing.T) {
	store := new(mockConfigStore)
	svc := NewConfigService(store)
	ctx := context.Background()

	store.On("Get", ctx).Return(defaultEngineConfig(), nil)
	store.On("Update", ctx, mock.Anything).Return(nil)

	in := validConfigInput()
	in.Paused = true
	cfg, err := svc.SetConfig(ctx, "engine.owner", in)
	assert.NoError(t, err)
	assert.True(t, cfg.Paused)
}

func TestConfigService_SetOwner_Success(t *testing.T) {
	store := new(mockConfigStore)
	svc := NewConfigService(store)
	ctx := context.Background()

	store.On("Get", ctx).Return(defaultEngineConfig(), nil)
	store.On("SetOwner", ctx, "new.owner").Return(nil)

	err := svc.SetOwner(ctx, "engine.owner", "new.owner")
	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestConfigService_SetOwner_NotOwner(t *testing.T) {
	store := new(mockConfigStore)
	svc := NewConfigService(store)
	ctx := context.Background()

	store.On("Get", ctx).Return(defaultEngineConfig(), nil)

	err := svc.SetOwner(ctx, "mallory", "mallory")
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestConfigService_SetOwner_Empty(t *testing.T) {
	svc := NewConfigService(new(mockConfigStore))

	err := svc.SetOwner(context.Background(), "engine.owner", "")
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}
