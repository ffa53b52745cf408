package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-engine/internal/models"
)

// Интерфейсы внешних зависимостей сервисов. Реализации живут в
// internal/repository, internal/registry, internal/token и internal/ws;
// в тестах подставляются моки.

// ConfigStore отдаёт актуальную политику движка.
type ConfigStore interface {
	Get(ctx context.Context) (*models.EngineConfig, error)
}

// RegistryClient — внешний реестр исполнителей. Его флаг active —
// единственный критерий допуска исполнителя к сделкам.
type RegistryClient interface {
	IsRegisteredAndActive(ctx context.Context, account string) (bool, error)
	IncrementJobCount(ctx context.Context, account string) error
}

// TokenLedger доставляет исходящие переводы в токен-леджер.
type TokenLedger interface {
	Transfer(ctx context.Context, txID uuid.UUID, to string, amount int64, symbol, memo string) error
}

// TransferStore — журнал переводов.
type TransferStore interface {
	RecordRejected(ctx context.Context, t *models.Transfer) error
	MarkStatus(ctx context.Context, txID uuid.UUID, status string) error
	ListByAccount(ctx context.Context, account string, limit, offset int) ([]models.Transfer, error)
	ListByJob(ctx context.Context, jobID int64) ([]models.Transfer, error)
	ListPendingOutbound(ctx context.Context, limit int) ([]models.Transfer, error)
}

// Notifier рассылает события аккаунтам. Может быть nil — тогда
// уведомления просто не отправляются.
type Notifier interface {
	Notify(account, event string, data any) error
}
