package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-engine/internal/models"
)

type TransferRepository struct {
	db *sqlx.DB
}

func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// RecordRejected фиксирует отклонённое входящее уведомление, чтобы
// адаптер леджера видел судьбу каждого tx_id. Повторный tx_id —
// уже обработанный перевод.
func (r *TransferRepository) RecordRejected(ctx context.Context, t *models.Transfer) error {
	t.Status = models.TransferStatusRejected
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO transfers (tx_id, direction, account, amount, symbol, memo, job_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, t.TxID, t.Direction, t.Account, t.Amount, t.Symbol, t.Memo, t.JobID, t.Status).
		Scan(&t.ID, &t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateTransfer
	}
	if err != nil {
		return fmt.Errorf("transfer repository: record rejected %w", err)
	}
	return nil
}

// MarkStatus обновляет статус исходящего перевода после попытки доставки.
func (r *TransferRepository) MarkStatus(ctx context.Context, txID uuid.UUID, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transfers SET status = $2 WHERE tx_id = $1`, txID, status)
	if err != nil {
		return fmt.Errorf("transfer repository: mark status %w", err)
	}
	return nil
}

func (r *TransferRepository) ListByAccount(ctx context.Context, account string, limit, offset int) ([]models.Transfer, error) {
	var ts []models.Transfer
	err := r.db.SelectContext(ctx, &ts, `
		SELECT * FROM transfers WHERE account = $1 ORDER BY id DESC LIMIT $2 OFFSET $3
	`, account, limit, offset)
	return ts, err
}

func (r *TransferRepository) ListByJob(ctx context.Context, jobID int64) ([]models.Transfer, error) {
	var ts []models.Transfer
	err := r.db.SelectContext(ctx, &ts, `
		SELECT * FROM transfers WHERE job_id = $1 ORDER BY id
	`, jobID)
	return ts, err
}

// ListPendingOutbound возвращает исходящие переводы, ожидающие доставки
// в леджер (для повторной отправки оператором).
func (r *TransferRepository) ListPendingOutbound(ctx context.Context, limit int) ([]models.Transfer, error) {
	var ts []models.Transfer
	err := r.db.SelectContext(ctx, &ts, `
		SELECT * FROM transfers
		WHERE direction = $1 AND status IN ($2, $3)
		ORDER BY id LIMIT $4
	`, models.TransferDirectionOut, models.TransferStatusPending, models.TransferStatusFailed, limit)
	return ts, err
}
