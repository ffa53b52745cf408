package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-engine/internal/logger"
	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-engine/internal/repository"
	"github.com/ignatzorin/escrow-engine/internal/telemetry"
)

// JobStore — операции над сделками, нужные машине состояний.
type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id int64) (*models.Job, error)
	List(ctx context.Context, state string, openOnly bool, limit, offset int) ([]models.Job, error)
	Transition(ctx context.Context, jobID int64, from, to string) error
	MarkDelivered(ctx context.Context, jobID int64, evidenceURI string) error
	Complete(ctx context.Context, jobID int64, fromState string, payout *models.Transfer) error
	Refund(ctx context.Context, jobID int64, fromState string, refund *models.Transfer) error
	Cancel(ctx context.Context, jobID int64, refund *models.Transfer) error
}

// MilestoneStore — операции над этапами сделки.
type MilestoneStore interface {
	Create(ctx context.Context, m *models.Milestone) error
	ListByJob(ctx context.Context, jobID int64) ([]models.Milestone, error)
	SumByJob(ctx context.Context, jobID int64) (int64, error)
	SubmitOldest(ctx context.Context, jobID int64, evidenceURI string) (*models.Milestone, error)
	OldestSubmitted(ctx context.Context, jobID int64) (*models.Milestone, error)
	Approve(ctx context.Context, m *models.Milestone, payout *models.Transfer) error
}

// ArbitratorReader — чтение арбитров (валидация при создании сделки).
type ArbitratorReader interface {
	GetByAccount(ctx context.Context, account string) (*models.Arbitrator, error)
}

// JobService реализует машину состояний сделки: создание, принятие,
// этапы, сдачу, завершение, отмену и таймауты. Каждое действие — одна
// атомарная единица: валидация, мутация и оформление выплат либо
// проходят целиком, либо не оставляют следа.
type JobService struct {
	jobs        JobStore
	milestones  MilestoneStore
	arbitrators ArbitratorReader
	config      ConfigStore
	registry    RegistryClient
	dispatcher  *payoutDispatcher
	hub         Notifier
}

func NewJobService(
	jobs JobStore,
	milestones MilestoneStore,
	arbitrators ArbitratorReader,
	config ConfigStore,
	registry RegistryClient,
	ledger TokenLedger,
	transfers TransferStore,
	hub Notifier,
) *JobService {
	return &JobService{
		jobs:        jobs,
		milestones:  milestones,
		arbitrators: arbitrators,
		config:      config,
		registry:    registry,
		dispatcher:  newPayoutDispatcher(ledger, transfers),
		hub:         hub,
	}
}

// CreateJobInput — параметры создания сделки.
type CreateJobInput struct {
	Agent        string
	Title        string
	Description  string
	Deliverables []string
	Amount       int64
	Symbol       string
	Deadline     *time.Time
	Arbitrator   string
	JobHash      string
}

// CreateJob создаёт сделку в состоянии created. Пустой Agent даёт
// открытую сделку, доступную для ставок.
func (s *JobService) CreateJob(ctx context.Context, client string, in CreateJobInput) (*models.Job, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}

	if in.Title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название сделки обязательно")
	}
	if in.Symbol == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указана валюта сделки")
	}
	if in.Amount < cfg.MinJobAmount {
		return nil, apperror.New(apperror.ErrCodeEconomic, "сумма сделки ниже минимальной")
	}
	if in.Agent != "" && in.Agent == client {
		return nil, apperror.New(apperror.ErrCodeValidation, "клиент не может быть исполнителем собственной сделки")
	}

	if in.Arbitrator != "" {
		arb, err := s.arbitrators.GetByAccount(ctx, in.Arbitrator)
		if errors.Is(err, repository.ErrArbitratorNotFound) {
			return nil, apperror.New(apperror.ErrCodeValidation, "указанный арбитр не зарегистрирован")
		}
		if err != nil {
			return nil, err
		}
		if !arb.Active {
			return nil, apperror.New(apperror.ErrCodeValidation, "указанный арбитр неактивен")
		}
	}

	deadline := time.Now().AddDate(0, 0, cfg.DefaultDeadlineDays)
	if in.Deadline != nil {
		deadline = *in.Deadline
	}

	job := &models.Job{
		Client:       client,
		Agent:        in.Agent,
		Title:        in.Title,
		Description:  in.Description,
		Deliverables: in.Deliverables,
		Amount:       in.Amount,
		Symbol:       in.Symbol,
		State:        models.JobStateCreated,
		Deadline:     deadline,
		Arbitrator:   in.Arbitrator,
		JobHash:      in.JobHash,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать сделку")
	}

	telemetry.JobsCreated.Inc()
	return job, nil
}

// MilestoneInput — параметры нового этапа.
type MilestoneInput struct {
	Title       string
	Description string
	Amount      int64
	Ord         int
}

// AddMilestone добавляет этап. Разрешено только клиенту и только до
// фандинга: после блокировки средств план выплат меняться не должен.
func (s *JobService) AddMilestone(ctx context.Context, caller string, jobID int64, in MilestoneInput) (*models.Milestone, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Client != caller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "этапы может добавлять только клиент сделки")
	}
	if job.State != models.JobStateCreated {
		return nil, apperror.New(apperror.ErrCodeState, "этапы добавляются только до фандинга сделки")
	}
	if in.Title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название этапа обязательно")
	}
	if in.Amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма этапа должна быть положительной")
	}

	sum, err := s.milestones.SumByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if sum+in.Amount > job.Amount {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма этапов превышает цену сделки")
	}

	m := &models.Milestone{
		JobID:       jobID,
		Title:       in.Title,
		Description: in.Description,
		Amount:      in.Amount,
		Ord:         in.Ord,
	}
	if err := s.milestones.Create(ctx, m); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать этап")
	}
	return m, nil
}

// AcceptJob — назначенный исполнитель принимает оплаченную сделку.
// Проверка прав идёт раньше проверки состояния: чужой вызов получает
// ошибку авторизации, а не «сделка не оплачена».
func (s *JobService) AcceptJob(ctx context.Context, caller string, jobID int64) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Agent == "" || job.Agent != caller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "принять сделку может только назначенный исполнитель")
	}
	if job.State != models.JobStateFunded {
		return nil, apperror.New(apperror.ErrCodeState, "сделка должна быть оплачена до принятия")
	}

	active, err := s.registry.IsRegisteredAndActive(ctx, caller)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "реестр исполнителей недоступен")
	}
	if !active {
		return nil, apperror.New(apperror.ErrCodeForbidden, "исполнитель не зарегистрирован или неактивен в реестре")
	}

	if err := s.transition(ctx, job, models.JobStateFunded, models.JobStateAccepted); err != nil {
		return nil, err
	}

	s.notify(job.Client, "job.accepted", job)
	return job, nil
}

// StartJob — исполнитель начинает работу по принятой сделке.
func (s *JobService) StartJob(ctx context.Context, caller string, jobID int64) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Agent != caller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "начать работу может только исполнитель сделки")
	}
	if job.State != models.JobStateAccepted {
		return nil, apperror.New(apperror.ErrCodeState, "сделка должна быть принята до начала работы")
	}

	if err := s.transition(ctx, job, models.JobStateAccepted, models.JobStateActive); err != nil {
		return nil, err
	}

	s.notify(job.Client, "job.started", job)
	return job, nil
}

// SubmitMilestone — исполнитель сдаёт самый ранний ожидающий этап.
func (s *JobService) SubmitMilestone(ctx context.Context, caller string, jobID int64, evidenceURI string) (*models.Milestone, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Agent != caller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "сдать этап может только исполнитель сделки")
	}
	if job.State != models.JobStateActive {
		return nil, apperror.New(apperror.ErrCodeState, "этапы сдаются только по активной сделке")
	}

	m, err := s.milestones.SubmitOldest(ctx, jobID, evidenceURI)
	if errors.Is(err, repository.ErrNoPendingMilestone) {
		return nil, apperror.New(apperror.ErrCodeState, "у сделки нет ожидающих этапов")
	}
	if err != nil {
		return nil, err
	}

	s.notify(job.Client, "milestone.submitted", m)
	return m, nil
}

// ApproveMilestone — клиент одобряет самый ранний сданный этап.
// Сумма этапа (за вычетом комиссии платформы) немедленно уходит
// исполнителю; сделка остаётся активной.
func (s *JobService) ApproveMilestone(ctx context.Context, caller string, jobID int64) (*models.Milestone, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Client != caller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "одобрить этап может только клиент сделки")
	}
	if job.State != models.JobStateActive {
		return nil, apperror.New(apperror.ErrCodeState, "этапы одобряются только по активной сделке")
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}

	m, err := s.milestones.OldestSubmitted(ctx, jobID)
	if errors.Is(err, repository.ErrNoSubmittedMilestone) {
		return nil, apperror.New(apperror.ErrCodeState, "у сделки нет сданных этапов")
	}
	if err != nil {
		return nil, err
	}

	var payout *models.Transfer
	if net := m.Amount - platformFee(m.Amount, cfg.PlatformFeeBps); net > 0 {
		payout = models.NewOutboundTransfer(job.Agent, net, job.Symbol, milestoneMemo(job.ID), &job.ID)
	}

	if err := s.milestones.Approve(ctx, m, payout); err != nil {
		if errors.Is(err, repository.ErrNoSubmittedMilestone) {
			return nil, apperror.New(apperror.ErrCodeState, "этап уже одобрен")
		}
		if errors.Is(err, repository.ErrOverRelease) {
			return nil, apperror.New(apperror.ErrCodeEconomic, "выплата превысила бы зафондированную сумму")
		}
		return nil, err
	}

	s.dispatcher.dispatch(ctx, payout)
	s.notify(job.Agent, "milestone.approved", m)
	return m, nil
}

// Deliver — исполнитель сдаёт работу целиком.
func (s *JobService) Deliver(ctx context.Context, caller string, jobID int64, evidenceURI string) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Agent != caller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "сдать работу может только исполнитель сделки")
	}
	if job.State != models.JobStateActive {
		return nil, apperror.New(apperror.ErrCodeState, "сдать работу можно только по активной сделке")
	}

	if err := s.jobs.MarkDelivered(ctx, jobID, evidenceURI); err != nil {
		if errors.Is(err, repository.ErrJobStateConflict) {
			return nil, apperror.New(apperror.ErrCodeState, "сделка уже не активна")
		}
		return nil, err
	}

	job.State = models.JobStateDelivered
	job.EvidenceURI = evidenceURI
	s.notify(job.Client, "job.delivered", job)
	return job, nil
}

// Approve — клиент принимает сданную работу: остаток эскроу за вычетом
// комиссии платформы уходит исполнителю, сделка завершается.
func (s *JobService) Approve(ctx context.Context, caller string, jobID int64) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Client != caller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "принять работу может только клиент сделки")
	}
	if job.State != models.JobStateDelivered {
		return nil, apperror.New(apperror.ErrCodeState, "принять можно только сданную работу")
	}

	return s.completeAndPay(ctx, job)
}

// Cancel — клиент отменяет ещё не принятую сделку. Ставки удаляются,
// частичный фандинг (если был) возвращается клиенту.
func (s *JobService) Cancel(ctx context.Context, caller string, jobID int64) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Client != caller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "отменить сделку может только клиент")
	}
	if job.State != models.JobStateCreated {
		return nil, apperror.New(apperror.ErrCodeState, "отмена возможна только до фандинга сделки")
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}

	var refund *models.Transfer
	if job.FundedAmount > 0 {
		refund = models.NewOutboundTransfer(job.Client, job.FundedAmount, job.Symbol, refundMemo(job.ID), &job.ID)
	}

	if err := s.jobs.Cancel(ctx, jobID, refund); err != nil {
		if errors.Is(err, repository.ErrJobStateConflict) {
			return nil, apperror.New(apperror.ErrCodeState, "сделка уже покинула состояние created")
		}
		return nil, err
	}

	s.dispatcher.dispatch(ctx, refund)
	telemetry.JobsRefunded.Inc()
	job.State = models.JobStateRefunded
	return job, nil
}

// AcceptTimeout возвращает клиенту средства по оплаченной, но так и не
// принятой исполнителем сделке. Вызвать может любая заинтересованная
// сторона — но только после истечения таймаута принятия.
func (s *JobService) AcceptTimeout(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State != models.JobStateFunded {
		return nil, apperror.New(apperror.ErrCodeState, "таймаут принятия применим только к оплаченной сделке")
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}
	if job.FundedAt == nil || time.Now().Before(job.FundedAt.Add(cfg.AcceptanceTimeout())) {
		return nil, apperror.New(apperror.ErrCodeTiming, "таймаут принятия ещё не истёк")
	}

	refund := models.NewOutboundTransfer(job.Client, job.FundedAmount, job.Symbol, refundMemo(job.ID), &job.ID)
	if err := s.jobs.Refund(ctx, jobID, models.JobStateFunded, refund); err != nil {
		if errors.Is(err, repository.ErrJobStateConflict) {
			return nil, apperror.New(apperror.ErrCodeState, "сделка уже покинула состояние funded")
		}
		return nil, err
	}

	s.dispatcher.dispatch(ctx, refund)
	telemetry.JobsRefunded.Inc()
	job.State = models.JobStateRefunded
	s.notify(job.Client, "job.refunded", job)
	return job, nil
}

// Timeout разрешает сделку после дедлайна: молчание клиента по сданной
// работе — неявное принятие (выплата исполнителю), отсутствие сдачи —
// возврат клиенту. Других состояний таймаут не касается.
func (s *JobService) Timeout(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if time.Now().Before(job.Deadline) {
		return nil, apperror.New(apperror.ErrCodeTiming, "дедлайн сделки ещё не наступил")
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}

	switch job.State {
	case models.JobStateDelivered:
		return s.completeAndPay(ctx, job)
	case models.JobStateActive:
		var refund *models.Transfer
		if rem := job.FundedAmount - job.ReleasedAmount; rem > 0 {
			refund = models.NewOutboundTransfer(job.Client, rem, job.Symbol, refundMemo(job.ID), &job.ID)
		}
		if err := s.jobs.Refund(ctx, jobID, models.JobStateActive, refund); err != nil {
			if errors.Is(err, repository.ErrJobStateConflict) {
				return nil, apperror.New(apperror.ErrCodeState, "сделка уже покинула состояние active")
			}
			return nil, err
		}
		s.dispatcher.dispatch(ctx, refund)
		telemetry.JobsRefunded.Inc()
		job.State = models.JobStateRefunded
		s.notify(job.Client, "job.refunded", job)
		return job, nil
	default:
		return nil, apperror.New(apperror.ErrCodeState, "сделка в текущем состоянии не подлежит таймауту")
	}
}

func (s *JobService) GetJob(ctx context.Context, jobID int64) (*models.Job, error) {
	return s.getJob(ctx, jobID)
}

func (s *JobService) ListJobs(ctx context.Context, state string, openOnly bool, limit, offset int) ([]models.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.jobs.List(ctx, state, openOnly, limit, offset)
}

func (s *JobService) ListMilestones(ctx context.Context, jobID int64) ([]models.Milestone, error) {
	return s.milestones.ListByJob(ctx, jobID)
}

// completeAndPay завершает сделку из её текущего состояния: остаток
// эскроу за вычетом комиссии платформы уходит исполнителю, счётчик
// сделок исполнителя в реестре увеличивается.
func (s *JobService) completeAndPay(ctx context.Context, job *models.Job) (*models.Job, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}

	var payout *models.Transfer
	remaining := job.Remaining()
	if net := remaining - platformFee(remaining, cfg.PlatformFeeBps); net > 0 && job.Agent != "" {
		payout = models.NewOutboundTransfer(job.Agent, net, job.Symbol, payoutMemo(job.ID), &job.ID)
	}

	if err := s.jobs.Complete(ctx, job.ID, job.State, payout); err != nil {
		if errors.Is(err, repository.ErrJobStateConflict) {
			return nil, apperror.New(apperror.ErrCodeState, "сделка уже разрешена")
		}
		return nil, err
	}

	s.dispatcher.dispatch(ctx, payout)
	telemetry.JobsCompleted.Inc()

	if job.Agent != "" {
		// Откатить завершение уже нельзя, ошибку реестра только логируем.
		if err := s.registry.IncrementJobCount(ctx, job.Agent); err != nil {
			logger.Log.WithFields(logrus.Fields{
				"job_id": job.ID,
				"agent":  job.Agent,
				"error":  err.Error(),
			}).Error("не удалось увеличить счётчик сделок в реестре")
		}
	}

	job.State = models.JobStateCompleted
	job.ReleasedAmount = job.Amount
	s.notify(job.Agent, "job.completed", job)
	s.notify(job.Client, "job.completed", job)
	return job, nil
}

func (s *JobService) getJob(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, repository.ErrJobNotFound) {
		return nil, apperror.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) transition(ctx context.Context, job *models.Job, from, to string) error {
	if err := s.jobs.Transition(ctx, job.ID, from, to); err != nil {
		if errors.Is(err, repository.ErrJobStateConflict) {
			return apperror.New(apperror.ErrCodeState, "состояние сделки изменилось, повторите запрос")
		}
		return err
	}
	job.State = to
	return nil
}

func (s *JobService) notify(account, event string, data any) {
	if s.hub == nil || account == "" {
		return
	}
	if err := s.hub.Notify(account, event, data); err != nil {
		logger.Log.WithFields(logrus.Fields{"event": event, "error": err.Error()}).
			Warn("не удалось отправить уведомление")
	}
}
