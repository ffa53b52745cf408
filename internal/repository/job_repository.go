package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-engine/internal/models"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrJobStateConflict — защитный WHERE по состоянию не нашёл строку.
	ErrJobStateConflict  = errors.New("job state conflict")
	ErrDuplicateTransfer = errors.New("transfer already processed")
	ErrSymbolMismatch    = errors.New("transfer symbol does not match job symbol")
	ErrOverRelease       = errors.New("release exceeds funded amount")
)

type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create сохраняет новую сделку в состоянии created.
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	query := `
		INSERT INTO jobs (client, agent, title, description, deliverables, amount, symbol, state, deadline, arbitrator, job_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, funded_amount, released_amount, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		j.Client, j.Agent, j.Title, j.Description, pq.Array(j.Deliverables),
		j.Amount, j.Symbol, j.State, j.Deadline, j.Arbitrator, j.JobHash,
	).Scan(&j.ID, &j.FundedAmount, &j.ReleasedAmount, &j.CreatedAt, &j.UpdatedAt)
}

func (r *JobRepository) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	var j models.Job
	err := r.db.GetContext(ctx, &j, `SELECT * FROM jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return &j, err
}

// List возвращает сделки, опционально фильтруя по состоянию и открытости.
func (r *JobRepository) List(ctx context.Context, state string, openOnly bool, limit, offset int) ([]models.Job, error) {
	query := `SELECT * FROM jobs WHERE ($1 = '' OR state = $1) AND (NOT $2 OR agent = '') ORDER BY id DESC LIMIT $3 OFFSET $4`
	var jobs []models.Job
	err := r.db.SelectContext(ctx, &jobs, query, state, openOnly, limit, offset)
	return jobs, err
}

// Transition переводит сделку из from в to. Защитный WHERE по состоянию
// делает повторный вызов действия безопасным: ноль обновлённых строк — конфликт.
func (r *JobRepository) Transition(ctx context.Context, jobID int64, from, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET state = $3, updated_at = NOW() WHERE id = $1 AND state = $2
	`, jobID, from, to)
	if err != nil {
		return fmt.Errorf("job repository: transition %w", err)
	}
	return requireOneRow(res, ErrJobStateConflict)
}

// MarkDelivered фиксирует сдачу работы: состояние delivered плюс ссылка
// на доказательства и время сдачи (от него отсчитывается окно спора).
func (r *JobRepository) MarkDelivered(ctx context.Context, jobID int64, evidenceURI string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET state = $2, evidence_uri = $3, delivered_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND state = $4
	`, jobID, models.JobStateDelivered, evidenceURI, models.JobStateActive)
	if err != nil {
		return fmt.Errorf("job repository: mark delivered %w", err)
	}
	return requireOneRow(res, ErrJobStateConflict)
}

// FundingResult — итог применения входящего перевода к сделке.
type FundingResult struct {
	Job      *models.Job
	Accepted int64
	// Excess — переплата сверх цены сделки; возвращается отправителю
	// в том же действии отдельным исходящим переводом.
	Excess       int64
	RefundTx     *models.Transfer
	BecameFunded bool
}

// ApplyFunding атомарно применяет входящий перевод fund:<id>: записывает
// строку журнала (tx_id — ключ идемпотентности), увеличивает funded_amount,
// при полном покрытии цены переводит сделку в funded, а переплату оформляет
// как исходящий возврат отправителю.
func (r *JobRepository) ApplyFunding(ctx context.Context, t *models.Transfer) (*FundingResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var job models.Job
	err = tx.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = $1 FOR UPDATE`, *t.JobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("job repository: funding select %w", err)
	}

	if job.State != models.JobStateCreated {
		return nil, ErrJobStateConflict
	}
	if job.Symbol != t.Symbol {
		return nil, ErrSymbolMismatch
	}

	if err := insertTransfer(ctx, tx, t, models.TransferStatusReceived); err != nil {
		return nil, err
	}

	res := &FundingResult{}
	res.Accepted = job.Amount - job.FundedAmount
	if t.Amount < res.Accepted {
		res.Accepted = t.Amount
	}
	res.Excess = t.Amount - res.Accepted

	job.FundedAmount += res.Accepted
	if job.FundedAmount >= job.Amount {
		job.State = models.JobStateFunded
		res.BecameFunded = true
		_, err = tx.ExecContext(ctx, `
			UPDATE jobs SET funded_amount = $2, state = $3, funded_at = NOW(), updated_at = NOW() WHERE id = $1
		`, job.ID, job.FundedAmount, job.State)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE jobs SET funded_amount = $2, updated_at = NOW() WHERE id = $1
		`, job.ID, job.FundedAmount)
	}
	if err != nil {
		return nil, fmt.Errorf("job repository: funding update %w", err)
	}

	if res.Excess > 0 {
		refund := models.NewOutboundTransfer(t.Account, res.Excess, job.Symbol,
			fmt.Sprintf("refund:%d", job.ID), &job.ID)
		if err := insertTransfer(ctx, tx, refund, models.TransferStatusPending); err != nil {
			return nil, err
		}
		res.RefundTx = refund
	}

	res.Job = &job
	return res, tx.Commit()
}

// Complete завершает сделку из состояния fromState: выплачивает остаток
// исполнителю (released_amount добивается до цены) и переводит в completed.
// payout может быть nil, если остаток после этапов нулевой.
func (r *JobRepository) Complete(ctx context.Context, jobID int64, fromState string, payout *models.Transfer) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = $3, released_amount = amount, updated_at = NOW()
		WHERE id = $1 AND state = $2
	`, jobID, fromState, models.JobStateCompleted)
	if err != nil {
		return fmt.Errorf("job repository: complete %w", err)
	}
	if err := requireOneRow(res, ErrJobStateConflict); err != nil {
		return err
	}

	if payout != nil {
		if err := insertTransfer(ctx, tx, payout, models.TransferStatusPending); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Refund переводит сделку из fromState в refunded, оформляя возврат
// клиенту (nil — возвращать нечего).
func (r *JobRepository) Refund(ctx context.Context, jobID int64, fromState string, refund *models.Transfer) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = $3, updated_at = NOW() WHERE id = $1 AND state = $2
	`, jobID, fromState, models.JobStateRefunded)
	if err != nil {
		return fmt.Errorf("job repository: refund %w", err)
	}
	if err := requireOneRow(res, ErrJobStateConflict); err != nil {
		return err
	}

	if refund != nil {
		if err := insertTransfer(ctx, tx, refund, models.TransferStatusPending); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Cancel отменяет непринятую сделку: refunded, все ставки удаляются,
// частичный фандинг (если был) возвращается клиенту.
func (r *JobRepository) Cancel(ctx context.Context, jobID int64, refund *models.Transfer) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = $3, updated_at = NOW() WHERE id = $1 AND state = $2
	`, jobID, models.JobStateCreated, models.JobStateRefunded)
	if err != nil {
		return fmt.Errorf("job repository: cancel %w", err)
	}
	if err := requireOneRow(res, ErrJobStateConflict); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("job repository: cancel delete bids %w", err)
	}

	if refund != nil {
		if err := insertTransfer(ctx, tx, refund, models.TransferStatusPending); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// insertTransfer пишет строку журнала переводов внутри транзакции.
// Повторный tx_id — уже обработанное уведомление.
func insertTransfer(ctx context.Context, tx *sqlx.Tx, t *models.Transfer, status string) error {
	t.Status = status
	err := tx.QueryRowContext(ctx, `
		INSERT INTO transfers (tx_id, direction, account, amount, symbol, memo, job_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, t.TxID, t.Direction, t.Account, t.Amount, t.Symbol, t.Memo, t.JobID, t.Status).
		Scan(&t.ID, &t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateTransfer
	}
	if err != nil {
		return fmt.Errorf("transfer insert %w", err)
	}
	return nil
}

// isUniqueViolation проверяет нарушение уникального индекса Postgres.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// requireOneRow превращает «ноль обновлённых строк» в conflictErr.
func requireOneRow(res sql.Result, conflictErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return conflictErr
	}
	return nil
}
