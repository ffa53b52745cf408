package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-engine/internal/models"
)

// ConfigRepository работает с единственной строкой политики движка.
type ConfigRepository struct {
	db *sqlx.DB
}

func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) Get(ctx context.Context) (*models.EngineConfig, error) {
	var cfg models.EngineConfig
	err := r.db.GetContext(ctx, &cfg, `
		SELECT owner, registry_account, reputation_account, platform_fee_bps, min_job_amount,
		       default_deadline_days, dispute_window_secs, paused, acceptance_timeout_secs,
		       min_arbitrator_stake, arb_unstake_delay_secs, updated_at
		FROM engine_config WHERE id
	`)
	if err != nil {
		return nil, fmt.Errorf("config repository: get %w", err)
	}
	return &cfg, nil
}

// Update перезаписывает политику целиком. Права владельца проверяет сервис.
func (r *ConfigRepository) Update(ctx context.Context, cfg *models.EngineConfig) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE engine_config SET
			registry_account = $1, reputation_account = $2, platform_fee_bps = $3,
			min_job_amount = $4, default_deadline_days = $5, dispute_window_secs = $6,
			paused = $7, acceptance_timeout_secs = $8, min_arbitrator_stake = $9,
			arb_unstake_delay_secs = $10, updated_at = NOW()
		WHERE id
	`, cfg.RegistryAccount, cfg.ReputationAccount, cfg.PlatformFeeBps,
		cfg.MinJobAmount, cfg.DefaultDeadlineDays, cfg.DisputeWindowSecs,
		cfg.Paused, cfg.AcceptanceTimeoutSecs, cfg.MinArbitratorStake,
		cfg.ArbUnstakeDelaySecs)
	if err != nil {
		return fmt.Errorf("config repository: update %w", err)
	}
	return nil
}

// SetOwner передаёт владение движком.
func (r *ConfigRepository) SetOwner(ctx context.Context, newOwner string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE engine_config SET owner = $1, updated_at = NOW() WHERE id
	`, newOwner)
	if err != nil {
		return fmt.Errorf("config repository: set owner %w", err)
	}
	return nil
}
