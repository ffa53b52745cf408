package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-engine/internal/models"
)

var (
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDisputeExists — по сделке уже открыт спор.
	ErrDisputeExists = errors.New("dispute already open for this job")
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Open атомарно открывает спор: вставляет запись (частичный уникальный
// индекс отсекает второй открытый спор), переводит сделку delivered →
// disputed и увеличивает active_disputes назначенного арбитра.
// arbitrator пустой — спор пойдёт по фолбэку на владельца.
func (r *DisputeRepository) Open(ctx context.Context, d *models.Dispute, arbitrator string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO disputes (job_id, raised_by, reason, evidence_uri, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, d.JobID, d.RaisedBy, d.Reason, d.EvidenceURI, models.DisputeStatusOpen).
		Scan(&d.ID, &d.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDisputeExists
	}
	if err != nil {
		return fmt.Errorf("dispute repository: open insert %w", err)
	}
	d.Status = models.DisputeStatusOpen

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = $2, updated_at = NOW() WHERE id = $1 AND state = $3
	`, d.JobID, models.JobStateDisputed, models.JobStateDelivered)
	if err != nil {
		return fmt.Errorf("dispute repository: open job update %w", err)
	}
	if err := requireOneRow(res, ErrJobStateConflict); err != nil {
		return err
	}

	if arbitrator != "" {
		res, err = tx.ExecContext(ctx, `
			UPDATE arbitrators SET active_disputes = active_disputes + 1, updated_at = NOW()
			WHERE account = $1
		`, arbitrator)
		if err != nil {
			return fmt.Errorf("dispute repository: open arbitrator update %w", err)
		}
		if err := requireOneRow(res, ErrArbitratorNotFound); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetOpenByJob возвращает открытый спор по сделке.
func (r *DisputeRepository) GetOpenByJob(ctx context.Context, jobID int64) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes WHERE job_id = $1 AND status = $2
	`, jobID, models.DisputeStatusOpen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	return &d, err
}

// ListByJob возвращает все споры по сделке, включая разрешённые.
func (r *DisputeRepository) ListByJob(ctx context.Context, jobID int64) ([]models.Dispute, error) {
	var ds []models.Dispute
	err := r.db.SelectContext(ctx, &ds, `SELECT * FROM disputes WHERE job_id = $1 ORDER BY id`, jobID)
	return ds, err
}

// Resolution описывает итог арбитража для атомарного применения.
type Resolution struct {
	DisputeID     int64
	JobID         int64
	Status        string
	Resolver      string
	Notes         string
	ClientPercent int
	// Arbitrator — назначенный арбитр; пустой при фолбэке на владельца.
	Arbitrator string
	// AgentSuccess — исполнитель получил ненулевую долю: засчитываем
	// арбитру успешное дело.
	AgentSuccess bool
	// Payouts — выплаты сторонам, создаются той же транзакцией.
	Payouts []*models.Transfer
}

// Resolve атомарно применяет решение арбитра: закрывает спор, переводит
// сделку disputed → arbitrated (released добивается до funded — всё
// распределено), обновляет счётчики арбитра и оформляет выплаты.
func (r *DisputeRepository) Resolve(ctx context.Context, res Resolution) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upd, err := tx.ExecContext(ctx, `
		UPDATE disputes SET status = $2, resolver = $3, resolution_notes = $4, client_percent = $5, resolved_at = NOW()
		WHERE id = $1 AND status = $6
	`, res.DisputeID, res.Status, res.Resolver, res.Notes, res.ClientPercent, models.DisputeStatusOpen)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve update %w", err)
	}
	if err := requireOneRow(upd, ErrDisputeNotFound); err != nil {
		return err
	}

	upd, err = tx.ExecContext(ctx, `
		UPDATE jobs SET state = $2, released_amount = funded_amount, updated_at = NOW()
		WHERE id = $1 AND state = $3
	`, res.JobID, models.JobStateArbitrated, models.JobStateDisputed)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve job update %w", err)
	}
	if err := requireOneRow(upd, ErrJobStateConflict); err != nil {
		return err
	}

	if res.Arbitrator != "" {
		success := 0
		if res.AgentSuccess {
			success = 1
		}
		upd, err = tx.ExecContext(ctx, `
			UPDATE arbitrators
			SET active_disputes = active_disputes - 1,
			    total_cases = total_cases + 1,
			    successful_cases = successful_cases + $2,
			    updated_at = NOW()
			WHERE account = $1 AND active_disputes > 0
		`, res.Arbitrator, success)
		if err != nil {
			return fmt.Errorf("dispute repository: resolve arbitrator update %w", err)
		}
		if err := requireOneRow(upd, ErrArbitratorNotFound); err != nil {
			return err
		}
	}

	for _, payout := range res.Payouts {
		if err := insertTransfer(ctx, tx, payout, models.TransferStatusPending); err != nil {
			return err
		}
	}

	return tx.Commit()
}
