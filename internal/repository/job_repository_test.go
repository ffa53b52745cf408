package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/escrow-engine/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var jobColumns = []string{
	"id", "client", "agent", "title", "description", "deliverables",
	"amount", "symbol", "funded_amount", "released_amount", "state",
	"deadline", "arbitrator", "job_hash", "evidence_uri",
	"funded_at", "delivered_at", "created_at", "updated_at",
}

func jobRow(id int64, state string, amount, funded, released int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(jobColumns).AddRow(
		id, "alice", "bob", "Сайт-визитка", "", "{}",
		amount, "TOKEN", funded, released, state,
		now.Add(24*time.Hour), "", "", "",
		nil, nil, now, now,
	)
}

func TestJobRepository_ApplyFunding_CapsAndRefundsExcess(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	jobID := int64(1)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM jobs WHERE id = \$1 FOR UPDATE`).
		WithArgs(jobID).
		WillReturnRows(jobRow(jobID, models.JobStateCreated, 10000, 0, 0))
	// Само уведомление пишется в журнал как received.
	mock.ExpectQuery(`INSERT INTO transfers`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	// Фандинг добивает цену целиком: funded_amount = 10000, состояние funded.
	mock.ExpectExec(`UPDATE jobs SET funded_amount`).
		WithArgs(jobID, int64(10000), models.JobStateFunded).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Переплата 2000 оформляется возвратом отправителю в той же транзакции.
	mock.ExpectQuery(`INSERT INTO transfers`).
		WithArgs(sqlmock.AnyArg(), models.TransferDirectionOut, "alice", int64(2000),
			"TOKEN", "refund:1", jobID, models.TransferStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), now))
	mock.ExpectCommit()

	res, err := repo.ApplyFunding(ctx, &models.Transfer{
		TxID: uuid.New(), Direction: models.TransferDirectionIn,
		Account: "alice", Amount: 12000, Symbol: "TOKEN", Memo: "fund:1", JobID: &jobID,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(10000), res.Accepted)
	assert.Equal(t, int64(2000), res.Excess)
	assert.True(t, res.BecameFunded)
	assert.NotNil(t, res.RefundTx)
	assert.Equal(t, int64(2000), res.RefundTx.Amount)
	assert.Equal(t, int64(10000), res.Job.FundedAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_ApplyFunding_PartialKeepsCreated(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	jobID := int64(1)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM jobs WHERE id = \$1 FOR UPDATE`).
		WithArgs(jobID).
		WillReturnRows(jobRow(jobID, models.JobStateCreated, 10000, 3000, 0))
	mock.ExpectQuery(`INSERT INTO transfers`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	// Частичный взнос: funded_amount растёт, состояние не меняется.
	mock.ExpectExec(`UPDATE jobs SET funded_amount`).
		WithArgs(jobID, int64(7000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.ApplyFunding(ctx, &models.Transfer{
		TxID: uuid.New(), Direction: models.TransferDirectionIn,
		Account: "alice", Amount: 4000, Symbol: "TOKEN", Memo: "fund:1", JobID: &jobID,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(4000), res.Accepted)
	assert.Equal(t, int64(0), res.Excess)
	assert.False(t, res.BecameFunded)
	assert.Nil(t, res.RefundTx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_ApplyFunding_WrongState(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	jobID := int64(1)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM jobs WHERE id = \$1 FOR UPDATE`).
		WithArgs(jobID).
		WillReturnRows(jobRow(jobID, models.JobStateFunded, 10000, 10000, 0))
	mock.ExpectRollback()

	_, err := repo.ApplyFunding(ctx, &models.Transfer{
		TxID: uuid.New(), Direction: models.TransferDirectionIn,
		Account: "alice", Amount: 4000, Symbol: "TOKEN", Memo: "fund:1", JobID: &jobID,
	})
	assert.ErrorIs(t, err, ErrJobStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_ApplyFunding_SymbolMismatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	jobID := int64(1)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM jobs WHERE id = \$1 FOR UPDATE`).
		WithArgs(jobID).
		WillReturnRows(jobRow(jobID, models.JobStateCreated, 10000, 0, 0))
	mock.ExpectRollback()

	_, err := repo.ApplyFunding(ctx, &models.Transfer{
		TxID: uuid.New(), Direction: models.TransferDirectionIn,
		Account: "alice", Amount: 4000, Symbol: "USDX", Memo: "fund:1", JobID: &jobID,
	})
	assert.ErrorIs(t, err, ErrSymbolMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}
