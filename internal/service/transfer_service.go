package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-engine/internal/logger"
	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-engine/internal/repository"
	"github.com/ignatzorin/escrow-engine/internal/telemetry"
)

// FundingStore — часть хранилища сделок, нужная для зачисления фандинга.
type FundingStore interface {
	ApplyFunding(ctx context.Context, t *models.Transfer) (*repository.FundingResult, error)
}

// StakeStore — зачисление стейка арбитра.
type StakeStore interface {
	AddStake(ctx context.Context, t *models.Transfer) (*models.Arbitrator, error)
}

// TransferService маршрутизирует входящие переводы по мемо. Перевод,
// который не удалось распознать или применить, записывается со статусом
// rejected и отклоняется, чтобы леджер вернул средства отправителю.
type TransferService struct {
	jobs         FundingStore
	arbitrators  StakeStore
	transfers    TransferStore
	config       ConfigStore
	dispatcher   *payoutDispatcher
	hub          Notifier
	nativeSymbol string
}

func NewTransferService(
	jobs FundingStore,
	arbitrators StakeStore,
	transfers TransferStore,
	config ConfigStore,
	ledger TokenLedger,
	hub Notifier,
	nativeSymbol string,
) *TransferService {
	return &TransferService{
		jobs:         jobs,
		arbitrators:  arbitrators,
		transfers:    transfers,
		config:       config,
		dispatcher:   newPayoutDispatcher(ledger, transfers),
		hub:          hub,
		nativeSymbol: nativeSymbol,
	}
}

// InboundTransfer — уведомление леджера о входящем переводе.
type InboundTransfer struct {
	TxID   uuid.UUID
	From   string
	Amount int64
	Symbol string
	Memo   string
}

// HandleInbound применяет входящий перевод. tx_id — ключ идемпотентности:
// повторное уведомление о том же переводе отвергается без побочных эффектов.
func (s *TransferService) HandleInbound(ctx context.Context, in InboundTransfer) error {
	if in.TxID == uuid.Nil {
		return apperror.New(apperror.ErrCodeValidation, "tx_id перевода обязателен")
	}
	if in.From == "" {
		return apperror.New(apperror.ErrCodeValidation, "не указан отправитель перевода")
	}

	// Пауза закрывает и входящую сторону: депозиты не принимаются,
	// леджер возвращает средства отправителю.
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return err
	}
	if cfg.Paused {
		return apperror.ErrEnginePaused
	}

	if in.Amount <= 0 {
		return s.reject(ctx, in, "сумма перевода должна быть положительной")
	}

	memo := strings.TrimSpace(in.Memo)
	switch {
	case strings.HasPrefix(memo, models.MemoFundPrefix):
		return s.handleFunding(ctx, in, strings.TrimPrefix(memo, models.MemoFundPrefix))
	case memo == models.MemoArbStake:
		return s.handleStake(ctx, in)
	default:
		return s.reject(ctx, in, "мемо перевода не распознано")
	}
}

func (s *TransferService) handleFunding(ctx context.Context, in InboundTransfer, rawID string) error {
	jobID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || jobID <= 0 {
		return s.reject(ctx, in, "некорректный идентификатор сделки в мемо")
	}

	t := inboundRecord(in)
	t.JobID = &jobID

	res, err := s.jobs.ApplyFunding(ctx, t)
	switch {
	case errors.Is(err, repository.ErrDuplicateTransfer):
		return apperror.New(apperror.ErrCodeConflict, "перевод уже обработан")
	case errors.Is(err, repository.ErrJobNotFound):
		return s.reject(ctx, in, "сделка не найдена")
	case errors.Is(err, repository.ErrJobStateConflict):
		return s.reject(ctx, in, "сделка уже оплачена или закрыта")
	case errors.Is(err, repository.ErrSymbolMismatch):
		return s.reject(ctx, in, "валюта перевода не совпадает с валютой сделки")
	case err != nil:
		return err
	}

	// Излишек сверх цены сделки сразу уходит обратно отправителю.
	if res.RefundTx != nil {
		s.dispatcher.dispatch(ctx, res.RefundTx)
	}

	if res.BecameFunded {
		telemetry.JobsFunded.Inc()
		s.notify(res.Job.Client, "job.funded", res.Job)
		if res.Job.Agent != "" {
			s.notify(res.Job.Agent, "job.funded", res.Job)
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"tx_id":    in.TxID,
		"job_id":   jobID,
		"accepted": res.Accepted,
		"excess":   res.Excess,
	}).Info("фандинг сделки зачислен")
	return nil
}

func (s *TransferService) handleStake(ctx context.Context, in InboundTransfer) error {
	if in.Symbol != s.nativeSymbol {
		return s.reject(ctx, in, "стейк принимается только в нативной валюте движка")
	}

	arb, err := s.arbitrators.AddStake(ctx, inboundRecord(in))
	switch {
	case errors.Is(err, repository.ErrDuplicateTransfer):
		return apperror.New(apperror.ErrCodeConflict, "перевод уже обработан")
	case errors.Is(err, repository.ErrArbitratorNotFound):
		return s.reject(ctx, in, "отправитель не зарегистрирован как арбитр")
	case err != nil:
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"tx_id":   in.TxID,
		"account": arb.Account,
		"stake":   arb.Stake,
	}).Info("стейк арбитра зачислен")
	return nil
}

// reject фиксирует перевод со статусом rejected и возвращает ошибку
// валидации: по ней леджер понимает, что средства надо вернуть.
func (s *TransferService) reject(ctx context.Context, in InboundTransfer, reason string) error {
	if err := s.transfers.RecordRejected(ctx, inboundRecord(in)); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransfer) {
			return apperror.New(apperror.ErrCodeConflict, "перевод уже обработан")
		}
		return err
	}
	telemetry.TransfersRejected.Inc()
	logger.Log.WithFields(logrus.Fields{
		"tx_id":  in.TxID,
		"from":   in.From,
		"memo":   in.Memo,
		"reason": reason,
	}).Warn("входящий перевод отклонён")
	return apperror.New(apperror.ErrCodeValidation, reason)
}

// ReplayPending переотправляет в леджер исходящие переводы, застрявшие
// в статусах pending и failed. Доступно только владельцу движка;
// tx_id делает повторную доставку идемпотентной на стороне леджера.
func (s *TransferService) ReplayPending(ctx context.Context, caller string) (int, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return 0, err
	}
	if caller != cfg.Owner {
		return 0, apperror.New(apperror.ErrCodeForbidden, "переотправка переводов доступна только владельцу движка")
	}

	pending, err := s.transfers.ListPendingOutbound(ctx, 100)
	if err != nil {
		return 0, err
	}
	for i := range pending {
		s.dispatcher.dispatch(ctx, &pending[i])
	}

	if len(pending) > 0 {
		logger.Log.WithField("count", len(pending)).Info("переотправлены зависшие переводы")
	}
	return len(pending), nil
}

func (s *TransferService) ListByAccount(ctx context.Context, account string, limit, offset int) ([]models.Transfer, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.transfers.ListByAccount(ctx, account, limit, offset)
}

func (s *TransferService) ListByJob(ctx context.Context, jobID int64) ([]models.Transfer, error) {
	return s.transfers.ListByJob(ctx, jobID)
}

func (s *TransferService) notify(account, event string, data any) {
	if s.hub == nil || account == "" {
		return
	}
	if err := s.hub.Notify(account, event, data); err != nil {
		logger.Log.WithFields(logrus.Fields{"event": event, "error": err.Error()}).
			Warn("не удалось отправить уведомление")
	}
}

func inboundRecord(in InboundTransfer) *models.Transfer {
	return &models.Transfer{
		TxID:      in.TxID,
		Direction: models.TransferDirectionIn,
		Account:   in.From,
		Amount:    in.Amount,
		Symbol:    in.Symbol,
		Memo:      in.Memo,
	}
}
