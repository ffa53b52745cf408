package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-engine/internal/logger"
	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
)

// EngineConfigStore — хранилище единственной строки политики движка.
type EngineConfigStore interface {
	Get(ctx context.Context) (*models.EngineConfig, error)
	Update(ctx context.Context, cfg *models.EngineConfig) error
	SetOwner(ctx context.Context, newOwner string) error
}

// ConfigService управляет политикой движка. Мутации доступны только
// текущему владельцу.
type ConfigService struct {
	store EngineConfigStore
}

func NewConfigService(store EngineConfigStore) *ConfigService {
	return &ConfigService{store: store}
}

func (s *ConfigService) Get(ctx context.Context) (*models.EngineConfig, error) {
	return s.store.Get(ctx)
}

// EngineConfigInput — новая политика движка целиком.
type EngineConfigInput struct {
	RegistryAccount       string
	ReputationAccount     string
	PlatformFeeBps        int
	MinJobAmount          int64
	DefaultDeadlineDays   int
	DisputeWindowSecs     int64
	Paused                bool
	AcceptanceTimeoutSecs int64
	MinArbitratorStake    int64
	ArbUnstakeDelaySecs   int64
}

// SetConfig перезаписывает политику движка. Владелец при этом не
// меняется — для передачи владения есть SetOwner.
func (s *ConfigService) SetConfig(ctx context.Context, caller string, in EngineConfigInput) (*models.EngineConfig, error) {
	cfg, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if caller != cfg.Owner {
		return nil, apperror.New(apperror.ErrCodeForbidden, "менять политику движка может только владелец")
	}

	if in.PlatformFeeBps < 0 || in.PlatformFeeBps > 10000 {
		return nil, apperror.New(apperror.ErrCodeValidation, "комиссия платформы должна быть в пределах 0–10000 б.п.")
	}
	if in.MinJobAmount < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "минимальная сумма сделки не может быть отрицательной")
	}
	if in.DefaultDeadlineDays <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "дефолтный дедлайн должен быть положительным")
	}
	if in.DisputeWindowSecs < 0 || in.AcceptanceTimeoutSecs < 0 || in.ArbUnstakeDelaySecs < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "таймауты не могут быть отрицательными")
	}
	if in.MinArbitratorStake < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "минимальный стейк не может быть отрицательным")
	}

	cfg.RegistryAccount = in.RegistryAccount
	cfg.ReputationAccount = in.ReputationAccount
	cfg.PlatformFeeBps = in.PlatformFeeBps
	cfg.MinJobAmount = in.MinJobAmount
	cfg.DefaultDeadlineDays = in.DefaultDeadlineDays
	cfg.DisputeWindowSecs = in.DisputeWindowSecs
	cfg.Paused = in.Paused
	cfg.AcceptanceTimeoutSecs = in.AcceptanceTimeoutSecs
	cfg.MinArbitratorStake = in.MinArbitratorStake
	cfg.ArbUnstakeDelaySecs = in.ArbUnstakeDelaySecs

	if err := s.store.Update(ctx, cfg); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить политику движка")
	}

	logger.Log.WithFields(logrus.Fields{"owner": caller, "paused": cfg.Paused}).
		Info("политика движка обновлена")
	return cfg, nil
}

// SetOwner передаёт владение движком другому счёту.
func (s *ConfigService) SetOwner(ctx context.Context, caller, newOwner string) error {
	if newOwner == "" {
		return apperror.New(apperror.ErrCodeValidation, "новый владелец обязателен")
	}

	cfg, err := s.store.Get(ctx)
	if err != nil {
		return err
	}
	if caller != cfg.Owner {
		return apperror.New(apperror.ErrCodeForbidden, "передать владение может только текущий владелец")
	}

	if err := s.store.SetOwner(ctx, newOwner); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сменить владельца")
	}

	logger.Log.WithFields(logrus.Fields{"old_owner": caller, "new_owner": newOwner}).
		Warn("владение движком передано")
	return nil
}
