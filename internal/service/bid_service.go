package service

import (
	"context"
	"errors"
	"time"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-engine/internal/repository"
)

// BidStore — хранилище ставок.
type BidStore interface {
	Create(ctx context.Context, b *models.Bid) error
	GetByID(ctx context.Context, id int64) (*models.Bid, error)
	ListByJob(ctx context.Context, jobID int64) ([]models.Bid, error)
	Delete(ctx context.Context, id int64) error
	Select(ctx context.Context, jobID, bidID int64, deadline time.Time) (*models.Bid, error)
}

// JobReader — чтение сделки для проверок вокруг ставок.
type JobReader interface {
	GetByID(ctx context.Context, id int64) (*models.Job, error)
}

// BidService управляет ставками исполнителей на открытые сделки.
type BidService struct {
	bids     BidStore
	jobs     JobReader
	registry RegistryClient
	config   ConfigStore
}

func NewBidService(bids BidStore, jobs JobReader, registry RegistryClient, config ConfigStore) *BidService {
	return &BidService{bids: bids, jobs: jobs, registry: registry, config: config}
}

// BidInput — параметры ставки.
type BidInput struct {
	Amount       int64
	TimelineSecs int64
	Proposal     string
}

// SubmitBid — исполнитель делает ставку на открытую сделку.
func (s *BidService) SubmitBid(ctx context.Context, caller string, jobID int64, in BidInput) (*models.Bid, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if caller == job.Client {
		return nil, apperror.New(apperror.ErrCodeForbidden, "клиент не может ставить на собственную сделку")
	}
	if !job.IsOpen() || job.State != models.JobStateCreated {
		return nil, apperror.New(apperror.ErrCodeState, "ставки принимаются только на открытые сделки")
	}
	if in.Amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма ставки должна быть положительной")
	}
	if in.TimelineSecs <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок выполнения должен быть положительным")
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, apperror.ErrEnginePaused
	}
	if in.Amount < cfg.MinJobAmount {
		return nil, apperror.New(apperror.ErrCodeEconomic, "сумма ставки ниже минимальной суммы сделки")
	}

	active, err := s.registry.IsRegisteredAndActive(ctx, caller)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "реестр исполнителей недоступен")
	}
	if !active {
		return nil, apperror.New(apperror.ErrCodeForbidden, "исполнитель не зарегистрирован или неактивен в реестре")
	}

	b := &models.Bid{
		JobID:        jobID,
		Agent:        caller,
		Amount:       in.Amount,
		TimelineSecs: in.TimelineSecs,
		Proposal:     in.Proposal,
	}
	if err := s.bids.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicateBid) {
			return nil, apperror.New(apperror.ErrCodeConflict, "у исполнителя уже есть ставка на эту сделку")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать ставку")
	}
	return b, nil
}

// WithdrawBid — исполнитель снимает собственную ставку.
func (s *BidService) WithdrawBid(ctx context.Context, caller string, bidID int64) error {
	b, err := s.bids.GetByID(ctx, bidID)
	if errors.Is(err, repository.ErrBidNotFound) {
		return apperror.ErrBidNotFound
	}
	if err != nil {
		return err
	}
	if b.Agent != caller {
		return apperror.New(apperror.ErrCodeForbidden, "снять можно только собственную ставку")
	}

	if err := s.bids.Delete(ctx, bidID); err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return apperror.ErrBidNotFound
		}
		return err
	}
	return nil
}

// SelectBid — клиент выбирает победившую ставку. Цена и дедлайн сделки
// перезаписываются условиями ставки, остальные ставки удаляются.
// Выбор возможен только до фандинга: заблокированные средства уже
// соответствуют прежней цене.
func (s *BidService) SelectBid(ctx context.Context, caller string, jobID, bidID int64) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Client != caller {
		return nil, apperror.New(apperror.ErrCodeForbidden, "выбрать ставку может только клиент сделки")
	}
	if job.State != models.JobStateCreated || !job.IsOpen() || job.FundedAmount > 0 {
		return nil, apperror.New(apperror.ErrCodeState, "ставка выбирается только на открытой сделке до фандинга")
	}

	b, err := s.bids.GetByID(ctx, bidID)
	if errors.Is(err, repository.ErrBidNotFound) {
		return nil, apperror.ErrBidNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.JobID != jobID {
		return nil, apperror.New(apperror.ErrCodeValidation, "ставка относится к другой сделке")
	}

	deadline := time.Now().Add(time.Duration(b.TimelineSecs) * time.Second)
	won, err := s.bids.Select(ctx, jobID, bidID, deadline)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBidNotFound):
			return nil, apperror.ErrBidNotFound
		case errors.Is(err, repository.ErrJobStateConflict):
			return nil, apperror.New(apperror.ErrCodeState, "сделка уже недоступна для выбора ставки")
		}
		return nil, err
	}

	job.Agent = won.Agent
	job.Amount = won.Amount
	job.Deadline = deadline
	return job, nil
}

func (s *BidService) ListBids(ctx context.Context, jobID int64) ([]models.Bid, error) {
	return s.bids.ListByJob(ctx, jobID)
}

func (s *BidService) getJob(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, repository.ErrJobNotFound) {
		return nil, apperror.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}
