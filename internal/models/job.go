package models

import (
	"time"

	"github.com/lib/pq"
)

// Job описывает escrow-сделку между клиентом и исполнителем.
// Поле Agent может быть пустым — такая сделка считается «открытой»
// и доступна для ставок исполнителей.
type Job struct {
	ID             int64          `db:"id" json:"id"`
	Client         string         `db:"client" json:"client"`
	Agent          string         `db:"agent" json:"agent"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Deliverables   pq.StringArray `db:"deliverables" json:"deliverables"`
	Amount         int64          `db:"amount" json:"amount"`
	Symbol         string         `db:"symbol" json:"symbol"`
	FundedAmount   int64          `db:"funded_amount" json:"funded_amount"`
	ReleasedAmount int64          `db:"released_amount" json:"released_amount"`
	State          string         `db:"state" json:"state"`
	Deadline       time.Time      `db:"deadline" json:"deadline"`
	Arbitrator     string         `db:"arbitrator" json:"arbitrator"`
	JobHash        string         `db:"job_hash" json:"job_hash"`
	EvidenceURI    string         `db:"evidence_uri" json:"evidence_uri"`
	FundedAt       *time.Time     `db:"funded_at" json:"funded_at,omitempty"`
	DeliveredAt    *time.Time     `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// IsOpen сообщает, открыта ли сделка для ставок.
func (j *Job) IsOpen() bool {
	return j.Agent == ""
}

// Remaining возвращает ещё не выплаченный остаток эскроу.
func (j *Job) Remaining() int64 {
	return j.Amount - j.ReleasedAmount
}

// Milestone описывает этап сделки с собственной суммой выплаты.
// Этапы добавляются только до фандинга; порядок задаётся полем Ord.
type Milestone struct {
	ID          int64     `db:"id" json:"id"`
	JobID       int64     `db:"job_id" json:"job_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Amount      int64     `db:"amount" json:"amount"`
	Ord         int       `db:"ord" json:"ord"`
	State       string    `db:"state" json:"state"`
	EvidenceURI string    `db:"evidence_uri" json:"evidence_uri"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
