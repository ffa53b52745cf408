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
	// ErrNoPendingMilestone — у сделки нет этапа в нужном состоянии.
	ErrNoPendingMilestone   = errors.New("no pending milestone for job")
	ErrNoSubmittedMilestone = errors.New("no submitted milestone for job")
)

type MilestoneRepository struct {
	db *sqlx.DB
}

func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

func (r *MilestoneRepository) Create(ctx context.Context, m *models.Milestone) error {
	query := `
		INSERT INTO milestones (job_id, title, description, amount, ord)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, state, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query, m.JobID, m.Title, m.Description, m.Amount, m.Ord).
		Scan(&m.ID, &m.State, &m.CreatedAt, &m.UpdatedAt)
}

func (r *MilestoneRepository) ListByJob(ctx context.Context, jobID int64) ([]models.Milestone, error) {
	var ms []models.Milestone
	err := r.db.SelectContext(ctx, &ms, `
		SELECT * FROM milestones WHERE job_id = $1 ORDER BY ord, id
	`, jobID)
	return ms, err
}

// SumByJob возвращает сумму всех этапов сделки; создатель этапов обязан
// держать её в пределах цены сделки, сами этапы не самобалансируются.
func (r *MilestoneRepository) SumByJob(ctx context.Context, jobID int64) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM milestones WHERE job_id = $1
	`, jobID)
	return sum, err
}

// SubmitOldest переводит самый ранний pending-этап (по ord, id)
// в submitted и записывает ссылку на доказательства.
func (r *MilestoneRepository) SubmitOldest(ctx context.Context, jobID int64, evidenceURI string) (*models.Milestone, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var m models.Milestone
	err = tx.GetContext(ctx, &m, `
		SELECT * FROM milestones WHERE job_id = $1 AND state = $2 ORDER BY ord, id LIMIT 1 FOR UPDATE
	`, jobID, models.MilestoneStatePending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPendingMilestone
	}
	if err != nil {
		return nil, fmt.Errorf("milestone repository: submit select %w", err)
	}

	m.State = models.MilestoneStateSubmitted
	m.EvidenceURI = evidenceURI
	_, err = tx.ExecContext(ctx, `
		UPDATE milestones SET state = $2, evidence_uri = $3, updated_at = NOW() WHERE id = $1
	`, m.ID, m.State, m.EvidenceURI)
	if err != nil {
		return nil, fmt.Errorf("milestone repository: submit update %w", err)
	}

	return &m, tx.Commit()
}

// OldestSubmitted возвращает самый ранний submitted-этап сделки.
func (r *MilestoneRepository) OldestSubmitted(ctx context.Context, jobID int64) (*models.Milestone, error) {
	var m models.Milestone
	err := r.db.GetContext(ctx, &m, `
		SELECT * FROM milestones WHERE job_id = $1 AND state = $2 ORDER BY ord, id LIMIT 1
	`, jobID, models.MilestoneStateSubmitted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSubmittedMilestone
	}
	return &m, err
}

// Approve одобряет конкретный submitted-этап: увеличивает released_amount
// сделки на сумму этапа и оформляет частичную выплату исполнителю.
// Инвариант released ≤ funded охраняется защитным WHERE: превышение
// откатывает всё действие.
func (r *MilestoneRepository) Approve(ctx context.Context, m *models.Milestone, payout *models.Transfer) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE milestones SET state = $2, updated_at = NOW() WHERE id = $1 AND state = $3
	`, m.ID, models.MilestoneStateApproved, models.MilestoneStateSubmitted)
	if err != nil {
		return fmt.Errorf("milestone repository: approve update %w", err)
	}
	if err := requireOneRow(res, ErrNoSubmittedMilestone); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE jobs SET released_amount = released_amount + $2, updated_at = NOW()
		WHERE id = $1 AND released_amount + $2 <= funded_amount
	`, m.JobID, m.Amount)
	if err != nil {
		return fmt.Errorf("milestone repository: approve release %w", err)
	}
	if err := requireOneRow(res, ErrOverRelease); err != nil {
		return err
	}

	if payout != nil {
		if err := insertTransfer(ctx, tx, payout, models.TransferStatusPending); err != nil {
			return err
		}
	}

	m.State = models.MilestoneStateApproved
	return tx.Commit()
}
