package service

import (
	"context"
	"errors"
	"time"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-engine/internal/repository"
	"github.com/ignatzorin/escrow-engine/internal/telemetry"
)

// DisputeStore — хранилище споров.
type DisputeStore interface {
	Open(ctx context.Context, d *models.Dispute, arbitrator string) error
	GetOpenByJob(ctx context.Context, jobID int64) (*models.Dispute, error)
	ListByJob(ctx context.Context, jobID int64) ([]models.Dispute, error)
	Resolve(ctx context.Context, res repository.Resolution) error
}

// DisputeService отвечает за открытие споров и арбитраж. Спор поднимает
// клиент или исполнитель по сданной работе; разрешает назначенный
// арбитр, а если его нет — владелец движка.
type DisputeService struct {
	disputes    DisputeStore
	jobs        JobReader
	arbitrators ArbitratorReader
	config      ConfigStore
	dispatcher  *payoutDispatcher
	hub         Notifier
}

func NewDisputeService(
	disputes DisputeStore,
	jobs JobReader,
	arbitrators ArbitratorReader,
	config ConfigStore,
	ledger TokenLedger,
	transfers TransferStore,
	hub Notifier,
) *DisputeService {
	return &DisputeService{
		disputes:    disputes,
		jobs:        jobs,
		arbitrators: arbitrators,
		config:      config,
		dispatcher:  newPayoutDispatcher(ledger, transfers),
		hub:         hub,
	}
}

// DisputeInput — параметры открытия спора.
type DisputeInput struct {
	Reason      string
	EvidenceURI string
}

// OpenDispute открывает спор по сданной работе. Ненулевое окно спора
// ограничивает срок подачи от момента сдачи; нулевое окно не ограничивает.
func (s *DisputeService) OpenDispute(ctx context.Context, caller string, jobID int64, in DisputeInput) (*models.Dispute, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if caller != job.Client && caller != job.Agent {
		return nil, apperror.New(apperror.ErrCodeForbidden, "спор открывают только стороны сделки")
	}
	if job.State != models.JobStateDelivered {
		return nil, apperror.New(apperror.ErrCodeState, "спор открывается только по сданной работе")
	}
	if in.Reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина спора обязательна")
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if window := cfg.DisputeWindow(); window > 0 && job.DeliveredAt != nil &&
		time.Now().After(job.DeliveredAt.Add(window)) {
		return nil, apperror.New(apperror.ErrCodeTiming, "окно подачи спора истекло")
	}

	d := &models.Dispute{
		JobID:       jobID,
		RaisedBy:    caller,
		Reason:      in.Reason,
		EvidenceURI: in.EvidenceURI,
	}
	if err := s.disputes.Open(ctx, d, job.Arbitrator); err != nil {
		switch {
		case errors.Is(err, repository.ErrDisputeExists):
			return nil, apperror.New(apperror.ErrCodeConflict, "по сделке уже открыт спор")
		case errors.Is(err, repository.ErrJobStateConflict):
			return nil, apperror.New(apperror.ErrCodeState, "сделка уже покинула состояние delivered")
		case errors.Is(err, repository.ErrArbitratorNotFound):
			return nil, apperror.ErrArbitratorNotFound
		}
		return nil, err
	}

	telemetry.DisputesOpened.Inc()
	s.notify(job.Client, "dispute.opened", d)
	s.notify(job.Agent, "dispute.opened", d)
	if job.Arbitrator != "" {
		s.notify(job.Arbitrator, "dispute.assigned", d)
	}
	return d, nil
}

// ArbitrateInput — решение по спору.
type ArbitrateInput struct {
	// ClientPercent — доля клиента в пуле после комиссий, 0–100.
	ClientPercent int
	Notes         string
}

// Arbitrate применяет решение по открытому спору. Нераспределённый
// остаток эскроу делится так: комиссия арбитра, комиссия платформы,
// затем раздел пула между клиентом и исполнителем по ClientPercent.
// При фолбэке на владельца комиссия арбитра не взимается.
func (s *DisputeService) Arbitrate(ctx context.Context, caller string, jobID int64, in ArbitrateInput) (*models.Dispute, error) {
	if in.ClientPercent < 0 || in.ClientPercent > 100 {
		return nil, apperror.New(apperror.ErrCodeValidation, "доля клиента должна быть в пределах 0–100 процентов")
	}

	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}

	arbFeePercent := 0
	if job.Arbitrator != "" {
		if caller != job.Arbitrator {
			return nil, apperror.New(apperror.ErrCodeForbidden, "спор разрешает только назначенный арбитр")
		}
		arb, err := s.arbitrators.GetByAccount(ctx, job.Arbitrator)
		if err != nil && !errors.Is(err, repository.ErrArbitratorNotFound) {
			return nil, err
		}
		if arb != nil {
			arbFeePercent = arb.FeePercent
		}
	} else if caller != cfg.Owner {
		return nil, apperror.New(apperror.ErrCodeForbidden, "без назначенного арбитра спор разрешает только владелец движка")
	}

	if job.State != models.JobStateDisputed {
		return nil, apperror.New(apperror.ErrCodeState, "сделка не находится в споре")
	}

	d, err := s.disputes.GetOpenByJob(ctx, jobID)
	if errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}

	split := splitEscrow(job.FundedAmount-job.ReleasedAmount, in.ClientPercent, arbFeePercent, cfg.PlatformFeeBps)

	var payouts []*models.Transfer
	if split.ArbFee > 0 {
		payouts = append(payouts, models.NewOutboundTransfer(job.Arbitrator, split.ArbFee, job.Symbol, arbFeeMemo(job.ID), &job.ID))
	}
	if split.ClientShare > 0 {
		payouts = append(payouts, models.NewOutboundTransfer(job.Client, split.ClientShare, job.Symbol, refundMemo(job.ID), &job.ID))
	}
	if split.AgentShare > 0 && job.Agent != "" {
		payouts = append(payouts, models.NewOutboundTransfer(job.Agent, split.AgentShare, job.Symbol, payoutMemo(job.ID), &job.ID))
	}

	res := repository.Resolution{
		DisputeID:     d.ID,
		JobID:         jobID,
		Status:        models.DisputeStatusResolved,
		Resolver:      caller,
		Notes:         in.Notes,
		ClientPercent: in.ClientPercent,
		Arbitrator:    job.Arbitrator,
		AgentSuccess:  split.AgentShare > 0,
		Payouts:       payouts,
	}
	if err := s.disputes.Resolve(ctx, res); err != nil {
		switch {
		case errors.Is(err, repository.ErrDisputeNotFound):
			return nil, apperror.New(apperror.ErrCodeState, "спор уже разрешён")
		case errors.Is(err, repository.ErrJobStateConflict):
			return nil, apperror.New(apperror.ErrCodeState, "сделка уже покинула состояние disputed")
		}
		return nil, err
	}

	for _, payout := range payouts {
		s.dispatcher.dispatch(ctx, payout)
	}
	telemetry.DisputesResolved.Inc()

	d.Status = models.DisputeStatusResolved
	d.Resolver = caller
	d.ResolutionNotes = in.Notes
	cp := in.ClientPercent
	d.ClientPercent = &cp
	s.notify(job.Client, "dispute.resolved", d)
	s.notify(job.Agent, "dispute.resolved", d)
	return d, nil
}

func (s *DisputeService) ListDisputes(ctx context.Context, jobID int64) ([]models.Dispute, error) {
	return s.disputes.ListByJob(ctx, jobID)
}

func (s *DisputeService) getJob(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, repository.ErrJobNotFound) {
		return nil, apperror.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *DisputeService) notify(account, event string, data any) {
	if s.hub == nil || account == "" {
		return
	}
	// Ошибки доставки уведомлений не влияют на исход арбитража.
	_ = s.hub.Notify(account, event, data)
}
