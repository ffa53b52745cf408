package models

import "time"

// Bid представляет ставку исполнителя на открытую сделку.
// На пару (сделка, исполнитель) допускается не больше одной ставки.
// Ставки живут только пока сделка открыта: выбор победителя или отмена
// сделки удаляет все ставки целиком.
type Bid struct {
	ID           int64     `db:"id" json:"id"`
	JobID        int64     `db:"job_id" json:"job_id"`
	Agent        string    `db:"agent" json:"agent"`
	Amount       int64     `db:"amount" json:"amount"`
	TimelineSecs int64     `db:"timeline_secs" json:"timeline_secs"`
	Proposal     string    `db:"proposal" json:"proposal"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
