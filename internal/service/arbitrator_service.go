package service

import (
	"context"
	"errors"
	"time"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-engine/internal/repository"
)

// ArbitratorStore — хранилище арбитров и их запросов на вывод стейка.
type ArbitratorStore interface {
	Upsert(ctx context.Context, account string, feePercent int) (*models.Arbitrator, error)
	GetByAccount(ctx context.Context, account string) (*models.Arbitrator, error)
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Arbitrator, error)
	Activate(ctx context.Context, account string, minStake int64) error
	Deactivate(ctx context.Context, account string) error
	RequestUnstake(ctx context.Context, account string, amount int64, availableAt time.Time) (*models.ArbitratorUnstake, error)
	GetUnstake(ctx context.Context, account string) (*models.ArbitratorUnstake, error)
	WithdrawUnstake(ctx context.Context, account string, payout *models.Transfer) (*models.ArbitratorUnstake, error)
}

// ArbitratorService управляет жизненным циклом арбитров: регистрация,
// активация, деактивация и вывод стейка. Пополнение стейка идёт только
// входящими переводами с мемо arbstake, см. TransferService.
type ArbitratorService struct {
	arbitrators  ArbitratorStore
	config       ConfigStore
	dispatcher   *payoutDispatcher
	nativeSymbol string
}

func NewArbitratorService(
	arbitrators ArbitratorStore,
	config ConfigStore,
	ledger TokenLedger,
	transfers TransferStore,
	nativeSymbol string,
) *ArbitratorService {
	return &ArbitratorService{
		arbitrators:  arbitrators,
		config:       config,
		dispatcher:   newPayoutDispatcher(ledger, transfers),
		nativeSymbol: nativeSymbol,
	}
}

// Register регистрирует вызывающего как арбитра. Повторный вызов лишь
// обновляет комиссию.
func (s *ArbitratorService) Register(ctx context.Context, caller string, feePercent int) (*models.Arbitrator, error) {
	if feePercent < 0 || feePercent > 50 {
		return nil, apperror.New(apperror.ErrCodeValidation, "комиссия арбитра должна быть в пределах 0–50 процентов")
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}

	arb, err := s.arbitrators.Upsert(ctx, caller, feePercent)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось зарегистрировать арбитра")
	}
	return arb, nil
}

// Activate включает арбитра в пул. Требуется стейк не ниже порога из
// политики движка; активация — разовый шлагбаум, последующее снижение
// стейка арбитра автоматически не выключает.
func (s *ArbitratorService) Activate(ctx context.Context, caller string) (*models.Arbitrator, error) {
	arb, err := s.getArbitrator(ctx, caller)
	if err != nil {
		return nil, err
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.arbitrators.Activate(ctx, caller, cfg.MinArbitratorStake); err != nil {
		if errors.Is(err, repository.ErrInsufficientStake) {
			return nil, apperror.New(apperror.ErrCodeEconomic, "стейк ниже минимального порога активации")
		}
		return nil, err
	}

	arb.Active = true
	return arb, nil
}

// Deactivate выводит арбитра из пула. Открытые споры блокируют выход.
func (s *ArbitratorService) Deactivate(ctx context.Context, caller string) (*models.Arbitrator, error) {
	arb, err := s.getArbitrator(ctx, caller)
	if err != nil {
		return nil, err
	}

	if err := s.arbitrators.Deactivate(ctx, caller); err != nil {
		if errors.Is(err, repository.ErrArbitratorBusy) {
			return nil, apperror.New(apperror.ErrCodeEconomic, "за арбитром числятся открытые споры")
		}
		return nil, err
	}

	arb.Active = false
	return arb, nil
}

// RequestUnstake создаёт отложенный запрос на вывод стейка. Средства
// спишутся при фактическом выводе после задержки из политики движка.
func (s *ArbitratorService) RequestUnstake(ctx context.Context, caller string, amount int64) (*models.ArbitratorUnstake, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма вывода должна быть положительной")
	}

	if _, err := s.getArbitrator(ctx, caller); err != nil {
		return nil, err
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	availableAt := time.Now().Add(cfg.ArbUnstakeDelay())
	u, err := s.arbitrators.RequestUnstake(ctx, caller, amount, availableAt)
	switch {
	case errors.Is(err, repository.ErrArbitratorBusy):
		return nil, apperror.New(apperror.ErrCodeEconomic, "за арбитром числятся открытые споры")
	case errors.Is(err, repository.ErrInsufficientStake):
		return nil, apperror.New(apperror.ErrCodeEconomic, "запрошенная сумма превышает стейк")
	case errors.Is(err, repository.ErrUnstakePending):
		return nil, apperror.New(apperror.ErrCodeConflict, "у арбитра уже есть незавершённый запрос на вывод")
	case err != nil:
		return nil, err
	}
	return u, nil
}

// WithdrawStake завершает созревший вывод: стейк списывается и уходит
// арбитру переводом в нативной валюте.
func (s *ArbitratorService) WithdrawStake(ctx context.Context, caller string) (*models.ArbitratorUnstake, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}

	u, err := s.arbitrators.GetUnstake(ctx, caller)
	if errors.Is(err, repository.ErrUnstakeNotFound) {
		return nil, apperror.New(apperror.ErrCodeNotFound, "запрос на вывод стейка не найден")
	}
	if err != nil {
		return nil, err
	}
	if time.Now().Before(u.AvailableAt) {
		return nil, apperror.New(apperror.ErrCodeTiming, "задержка вывода стейка ещё не истекла")
	}

	payout := models.NewOutboundTransfer(caller, u.Amount, s.nativeSymbol, unstakeMemo(), nil)
	u, err = s.arbitrators.WithdrawUnstake(ctx, caller, payout)
	switch {
	case errors.Is(err, repository.ErrUnstakeNotFound):
		return nil, apperror.New(apperror.ErrCodeNotFound, "запрос на вывод стейка не найден")
	case errors.Is(err, repository.ErrInsufficientStake):
		return nil, apperror.New(apperror.ErrCodeEconomic, "стейк недоступен: открытые споры или недостаток средств")
	case err != nil:
		return nil, err
	}

	s.dispatcher.dispatch(ctx, payout)
	return u, nil
}

func (s *ArbitratorService) GetArbitrator(ctx context.Context, account string) (*models.Arbitrator, error) {
	return s.getArbitrator(ctx, account)
}

func (s *ArbitratorService) ListArbitrators(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Arbitrator, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.arbitrators.List(ctx, activeOnly, limit, offset)
}

func (s *ArbitratorService) getArbitrator(ctx context.Context, account string) (*models.Arbitrator, error) {
	arb, err := s.arbitrators.GetByAccount(ctx, account)
	if errors.Is(err, repository.ErrArbitratorNotFound) {
		return nil, apperror.ErrArbitratorNotFound
	}
	if err != nil {
		return nil, err
	}
	return arb, nil
}
