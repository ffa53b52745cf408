package models

import "time"

// Arbitrator описывает арбитра — нейтральную сторону, разрешающую споры.
// Стейк растёт только входящими переводами с мемо arbstake, уменьшается
// только выводом через запрос на анстейк. Пока за арбитром числятся
// открытые споры, деактивация и анстейк запрещены.
type Arbitrator struct {
	Account         string    `db:"account" json:"account"`
	Stake           int64     `db:"stake" json:"stake"`
	FeePercent      int       `db:"fee_percent" json:"fee_percent"`
	Active          bool      `db:"active" json:"active"`
	TotalCases      int       `db:"total_cases" json:"total_cases"`
	SuccessfulCases int       `db:"successful_cases" json:"successful_cases"`
	ActiveDisputes  int       `db:"active_disputes" json:"active_disputes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ArbitratorUnstake — отложенный вывод стейка. На арбитра допускается
// не больше одного незавершённого запроса.
type ArbitratorUnstake struct {
	Account     string    `db:"account" json:"account"`
	Amount      int64     `db:"amount" json:"amount"`
	RequestedAt time.Time `db:"requested_at" json:"requested_at"`
	AvailableAt time.Time `db:"available_at" json:"available_at"`
}
