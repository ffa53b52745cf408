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
	ErrBidNotFound = errors.New("bid not found")
	// ErrDuplicateBid — у исполнителя уже есть ставка на эту сделку.
	ErrDuplicateBid = errors.New("agent already has a bid on this job")
)

type BidRepository struct {
	db *sqlx.DB
}

func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

func (r *BidRepository) Create(ctx context.Context, b *models.Bid) error {
	query := `
		INSERT INTO bids (job_id, agent, amount, timeline_secs, proposal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, b.JobID, b.Agent, b.Amount, b.TimelineSecs, b.Proposal).
		Scan(&b.ID, &b.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateBid
	}
	return err
}

func (r *BidRepository) GetByID(ctx context.Context, id int64) (*models.Bid, error) {
	var b models.Bid
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bids WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	return &b, err
}

func (r *BidRepository) ListByJob(ctx context.Context, jobID int64) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids, `SELECT * FROM bids WHERE job_id = $1 ORDER BY id`, jobID)
	return bids, err
}

// Delete удаляет ставку. Право владельца проверяет сервис.
func (r *BidRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bids WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bid repository: delete %w", err)
	}
	return requireOneRow(res, ErrBidNotFound)
}

// Select атомарно выбирает победившую ставку: назначает исполнителя,
// перезаписывает цену и дедлайн сделки и удаляет все ставки по ней —
// ставки живут только в открытой фазе. Защитный WHERE допускает выбор
// только на открытой, ещё не фондированной сделке.
func (r *BidRepository) Select(ctx context.Context, jobID, bidID int64, deadline time.Time) (*models.Bid, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var b models.Bid
	err = tx.GetContext(ctx, &b, `SELECT * FROM bids WHERE id = $1 AND job_id = $2 FOR UPDATE`, bidID, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bid repository: select bid %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET agent = $2, amount = $3, deadline = $4, updated_at = NOW()
		WHERE id = $1 AND state = $5 AND agent = '' AND funded_amount = 0
	`, jobID, b.Agent, b.Amount, deadline, models.JobStateCreated)
	if err != nil {
		return nil, fmt.Errorf("bid repository: select update job %w", err)
	}
	if err := requireOneRow(res, ErrJobStateConflict); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE job_id = $1`, jobID); err != nil {
		return nil, fmt.Errorf("bid repository: select cleanup %w", err)
	}

	return &b, tx.Commit()
}
