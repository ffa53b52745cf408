package models

import (
	"time"

	"github.com/google/uuid"
)

// Направления переводов
const (
	TransferDirectionIn  = "in"
	TransferDirectionOut = "out"
)

// Статусы переводов
const (
	TransferStatusReceived = "received"
	TransferStatusRejected = "rejected"
	TransferStatusPending  = "pending"
	TransferStatusSent     = "sent"
	TransferStatusFailed   = "failed"
)

// Префиксы и значения мемо входящих переводов. Перевод с нераспознанным
// мемо отклоняется, чтобы средства не застревали на счёте движка.
const (
	MemoFundPrefix = "fund:"
	MemoArbStake   = "arbstake"
)

// NewOutboundTransfer готовит исходящий перевод со свежим tx_id.
// Статус проставит репозиторий при записи.
func NewOutboundTransfer(account string, amount int64, symbol, memo string, jobID *int64) *Transfer {
	return &Transfer{
		TxID:      uuid.New(),
		Direction: TransferDirectionOut,
		Account:   account,
		Amount:    amount,
		Symbol:    symbol,
		Memo:      memo,
		JobID:     jobID,
	}
}

// Transfer — строка журнала переводов. Входящие строки фиксируют
// уведомления леджера (tx_id служит ключом идемпотентности), исходящие
// создаются в той же транзакции БД, что и вызвавшее их изменение
// состояния, и отправляются в леджер после коммита.
type Transfer struct {
	ID        int64     `db:"id" json:"id"`
	TxID      uuid.UUID `db:"tx_id" json:"tx_id"`
	Direction string    `db:"direction" json:"direction"`
	Account   string    `db:"account" json:"account"`
	Amount    int64     `db:"amount" json:"amount"`
	Symbol    string    `db:"symbol" json:"symbol"`
	Memo      string    `db:"memo" json:"memo"`
	JobID     *int64    `db:"job_id" json:"job_id,omitempty"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
