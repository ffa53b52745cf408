package models

import "time"

// EngineConfig — единственная строка с политикой движка. Меняется только
// действиями setconfig/setowner с проверкой прав владельца.
type EngineConfig struct {
	Owner                 string    `db:"owner" json:"owner"`
	RegistryAccount       string    `db:"registry_account" json:"registry_account"`
	ReputationAccount     string    `db:"reputation_account" json:"reputation_account"`
	PlatformFeeBps        int       `db:"platform_fee_bps" json:"platform_fee_bps"`
	MinJobAmount          int64     `db:"min_job_amount" json:"min_job_amount"`
	DefaultDeadlineDays   int       `db:"default_deadline_days" json:"default_deadline_days"`
	DisputeWindowSecs     int64     `db:"dispute_window_secs" json:"dispute_window_secs"`
	Paused                bool      `db:"paused" json:"paused"`
	AcceptanceTimeoutSecs int64     `db:"acceptance_timeout_secs" json:"acceptance_timeout_secs"`
	MinArbitratorStake    int64     `db:"min_arbitrator_stake" json:"min_arbitrator_stake"`
	ArbUnstakeDelaySecs   int64     `db:"arb_unstake_delay_secs" json:"arb_unstake_delay_secs"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// AcceptanceTimeout возвращает таймаут принятия сделки как Duration.
func (c *EngineConfig) AcceptanceTimeout() time.Duration {
	return time.Duration(c.AcceptanceTimeoutSecs) * time.Second
}

// DisputeWindow возвращает окно подачи спора; 0 — окно не ограничено.
func (c *EngineConfig) DisputeWindow() time.Duration {
	return time.Duration(c.DisputeWindowSecs) * time.Second
}

// ArbUnstakeDelay возвращает задержку вывода стейка арбитра.
func (c *EngineConfig) ArbUnstakeDelay() time.Duration {
	return time.Duration(c.ArbUnstakeDelaySecs) * time.Second
}
