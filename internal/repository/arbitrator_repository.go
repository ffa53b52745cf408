package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-engine/internal/models"
)

var (
	ErrArbitratorNotFound = errors.New("arbitrator not found")
	ErrUnstakeNotFound    = errors.New("unstake request not found")
	// ErrUnstakePending — у арбитра уже есть незавершённый запрос на вывод.
	ErrUnstakePending = errors.New("unstake request already pending")
	// ErrArbitratorBusy — защитный WHERE по active_disputes = 0 не сработал.
	ErrArbitratorBusy = errors.New("arbitrator has active disputes")
	// ErrInsufficientStake — стейка не хватает для операции.
	ErrInsufficientStake = errors.New("insufficient stake")
)

type ArbitratorRepository struct {
	db *sqlx.DB
}

func NewArbitratorRepository(db *sqlx.DB) *ArbitratorRepository {
	return &ArbitratorRepository{db: db}
}

// Upsert регистрирует арбитра. Повторная регистрация не ошибка:
// обновляется только комиссия, стейк и счётчики сохраняются.
func (r *ArbitratorRepository) Upsert(ctx context.Context, account string, feePercent int) (*models.Arbitrator, error) {
	var a models.Arbitrator
	query := `
		INSERT INTO arbitrators (account, fee_percent)
		VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET fee_percent = EXCLUDED.fee_percent, updated_at = NOW()
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &a, query, account, feePercent); err != nil {
		return nil, fmt.Errorf("arbitrator repository: upsert %w", err)
	}
	return &a, nil
}

func (r *ArbitratorRepository) GetByAccount(ctx context.Context, account string) (*models.Arbitrator, error) {
	var a models.Arbitrator
	err := r.db.GetContext(ctx, &a, `SELECT * FROM arbitrators WHERE account = $1`, account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArbitratorNotFound
	}
	return &a, err
}

func (r *ArbitratorRepository) List(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Arbitrator, error) {
	var as []models.Arbitrator
	err := r.db.SelectContext(ctx, &as, `
		SELECT * FROM arbitrators WHERE (NOT $1 OR active) ORDER BY account LIMIT $2 OFFSET $3
	`, activeOnly, limit, offset)
	return as, err
}

// AddStake применяет входящий перевод arbstake: строка журнала плюс
// увеличение стейка в одной транзакции.
func (r *ArbitratorRepository) AddStake(ctx context.Context, t *models.Transfer) (*models.Arbitrator, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var a models.Arbitrator
	err = tx.GetContext(ctx, &a, `SELECT * FROM arbitrators WHERE account = $1 FOR UPDATE`, t.Account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArbitratorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("arbitrator repository: stake select %w", err)
	}

	if err := insertTransfer(ctx, tx, t, models.TransferStatusReceived); err != nil {
		return nil, err
	}

	a.Stake += t.Amount
	if _, err := tx.ExecContext(ctx, `
		UPDATE arbitrators SET stake = $2, updated_at = NOW() WHERE account = $1
	`, a.Account, a.Stake); err != nil {
		return nil, fmt.Errorf("arbitrator repository: stake update %w", err)
	}

	return &a, tx.Commit()
}

// Activate включает арбитра, если стейк не ниже порога.
func (r *ArbitratorRepository) Activate(ctx context.Context, account string, minStake int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE arbitrators SET active = TRUE, updated_at = NOW()
		WHERE account = $1 AND stake >= $2
	`, account, minStake)
	if err != nil {
		return fmt.Errorf("arbitrator repository: activate %w", err)
	}
	return requireOneRow(res, ErrInsufficientStake)
}

// Deactivate выключает арбитра. Открытые споры блокируют выход:
// арбитр не может бросить назначенные ему дела.
func (r *ArbitratorRepository) Deactivate(ctx context.Context, account string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE arbitrators SET active = FALSE, updated_at = NOW()
		WHERE account = $1 AND active_disputes = 0
	`, account)
	if err != nil {
		return fmt.Errorf("arbitrator repository: deactivate %w", err)
	}
	return requireOneRow(res, ErrArbitratorBusy)
}

// RequestUnstake создаёт отложенный вывод стейка. Открытые споры и уже
// существующий запрос блокируют операцию; стейк списывается позже,
// при фактическом выводе.
func (r *ArbitratorRepository) RequestUnstake(ctx context.Context, account string, amount int64, availableAt time.Time) (*models.ArbitratorUnstake, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var a models.Arbitrator
	err = tx.GetContext(ctx, &a, `SELECT * FROM arbitrators WHERE account = $1 FOR UPDATE`, account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArbitratorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("arbitrator repository: unstake select %w", err)
	}

	if a.ActiveDisputes > 0 {
		return nil, ErrArbitratorBusy
	}
	if a.Stake < amount {
		return nil, ErrInsufficientStake
	}

	var u models.ArbitratorUnstake
	err = tx.GetContext(ctx, &u, `
		INSERT INTO arbitrator_unstakes (account, amount, available_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, account, amount, availableAt)
	if isUniqueViolation(err) {
		return nil, ErrUnstakePending
	}
	if err != nil {
		return nil, fmt.Errorf("arbitrator repository: unstake insert %w", err)
	}

	return &u, tx.Commit()
}

func (r *ArbitratorRepository) GetUnstake(ctx context.Context, account string) (*models.ArbitratorUnstake, error) {
	var u models.ArbitratorUnstake
	err := r.db.GetContext(ctx, &u, `SELECT * FROM arbitrator_unstakes WHERE account = $1`, account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnstakeNotFound
	}
	return &u, err
}

// WithdrawUnstake завершает созревший вывод: списывает стейк, удаляет
// запрос и оформляет исходящий перевод арбитру. Проверку срока делает
// сервис, открытые споры перепроверяются здесь.
func (r *ArbitratorRepository) WithdrawUnstake(ctx context.Context, account string, payout *models.Transfer) (*models.ArbitratorUnstake, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var u models.ArbitratorUnstake
	err = tx.GetContext(ctx, &u, `SELECT * FROM arbitrator_unstakes WHERE account = $1 FOR UPDATE`, account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnstakeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("arbitrator repository: withdraw select %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE arbitrators SET stake = stake - $2, updated_at = NOW()
		WHERE account = $1 AND stake >= $2 AND active_disputes = 0
	`, account, u.Amount)
	if err != nil {
		return nil, fmt.Errorf("arbitrator repository: withdraw update %w", err)
	}
	if err := requireOneRow(res, ErrInsufficientStake); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM arbitrator_unstakes WHERE account = $1`, account); err != nil {
		return nil, fmt.Errorf("arbitrator repository: withdraw delete %w", err)
	}

	if err := insertTransfer(ctx, tx, payout, models.TransferStatusPending); err != nil {
		return nil, err
	}

	return &u, tx.Commit()
}
