package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-engine/internal/logger"
	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/telemetry"
)

// payoutDispatcher доставляет уже записанные в журнал исходящие переводы.
// Строка журнала создаётся в той же транзакции БД, что и изменение
// состояния; здесь только отправка в леджер после коммита. Неудача
// доставки не откатывает состояние — перевод помечается failed и
// переотправляется оператором из журнала.
type payoutDispatcher struct {
	ledger    TokenLedger
	transfers TransferStore
}

func newPayoutDispatcher(ledger TokenLedger, transfers TransferStore) *payoutDispatcher {
	return &payoutDispatcher{ledger: ledger, transfers: transfers}
}

// dispatch отправляет перевод и обновляет его статус. nil-перевод — no-op.
func (d *payoutDispatcher) dispatch(ctx context.Context, t *models.Transfer) {
	if t == nil {
		return
	}

	status := models.TransferStatusSent
	if err := d.ledger.Transfer(ctx, t.TxID, t.Account, t.Amount, t.Symbol, t.Memo); err != nil {
		status = models.TransferStatusFailed
		telemetry.PayoutFailures.Inc()
		logger.Log.WithFields(logrus.Fields{
			"tx_id":   t.TxID,
			"account": t.Account,
			"amount":  t.Amount,
			"memo":    t.Memo,
			"error":   err.Error(),
		}).Error("не удалось доставить перевод в леджер")
	}

	if err := d.transfers.MarkStatus(ctx, t.TxID, status); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"tx_id": t.TxID,
			"error": err.Error(),
		}).Error("не удалось обновить статус перевода")
	}
}
