package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-engine/internal/repository"
)

func openJob() *models.Job {
	return &models.Job{ID: 10, Client: "alice", Agent: "", State: models.JobStateCreated, Amount: 50000, Symbol: "TOKEN"}
}

func TestBidService_SubmitBid_Success(t *testing.T) {
	bids := new(mockBidStore)
	jobs := new(mockJobStore)
	reg := new(mockRegistry)
	cfg := new(mockConfigStore)
	svc := NewBidService(bids, jobs, reg, cfg)
	ctx := context.Background()

	jobs.On("GetByID", ctx, int64(10)).Return(openJob(), nil)
	cfg.On("Get", ctx).Return(defaultEngineConfig(), nil)
	reg.On("IsRegisteredAndActive", ctx, "bob").Return(true, nil)
	bids.On("Create", ctx, mock.MatchedBy(func(b *models.Bid) bool {
		return b.JobID == 10 && b.Agent == "bob" && b.Amount == 45000
	})).Return(nil)

	b, err := svc.SubmitBid(ctx, "bob", 10, BidInput{Amount: 45000, TimelineSecs: 604800, Proposal: "Сделаю за неделю"})
	assert.NoError(t, err)
	assert.Equal(t, "bob", b.Agent)
	bids.AssertExpectations(t)
}

func TestBidService_SubmitBid_OwnJob(t *testing.T) {
	jobs := new(mockJobStore)
	svc := NewBidService(new(mockBidStore), jobs, new(mockRegistry), new(mockConfigStore))
	ctx := context.Background()

	jobs.On("GetByID", ctx, int64(10)).Return(openJob(), nil)

	_, err := svc.SubmitBid(ctx, "alice", 10, BidInput{Amount: 45000, TimelineSecs: 3600})
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestBidService_SubmitBid_AssignedJob(t *testing.T) {
	jobs := new(mockJobStore)
	svc := NewBidService(new(mockBidStore), jobs, new(mockRegistry), new(mockConfigStore))
	ctx := context.Background()

	job := openJob()
	job.Agent = "carol"
	jobs.On("GetByID", ctx, int64(10)).Return(job, nil)

	_, err := svc.SubmitBid(ctx, "bob", 10, BidInput{Amount: 45000, TimelineSecs: 3600})
	assert.Error(t, err)
	assert.True(t, apperror.IsState(err))
}

func TestBidService_SubmitBid_Duplicate(t *testing.T) {
	bids := new(mockBidStore)
	jobs := new(mockJobStore)
	reg := new(mockRegistry)
	cfg := new(mockConfigStore)
	svc := NewBidService(bids, jobs, reg, cfg)
	ctx := context.Background()

	jobs.On("GetByID", ctx, int64(10)).Return(openJob(), nil)
	cfg.On("Get", ctx).Return(defaultEngineConfig(), nil)
	reg.On("IsRegisteredAndActive", ctx, "bob").Return(true, nil)
	bids.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicateBid)

	_, err := svc.SubmitBid(ctx, "bob", 10, BidInput{Amount: 45000, TimelineSecs: 3600})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "уже есть ставка")
}

func TestBidService_SubmitBid_NotRegistered(t *testing.T) {
	jobs := new(mockJobStore)
	reg := new(mockRegistry)
	cfg := new(mockConfigStore)
	svc := NewBidService(new(mockBidStore), jobs, reg, cfg)
	ctx := context.Background()

	jobs.On("GetByID", ctx, int64(10)).Return(openJob(), nil)
	cfg.On("Get", ctx).Return(defaultEngineConfig(), nil)
	reg.On("IsRegisteredAndActive", ctx, "bob").Return(false, nil)

	_, err := svc.SubmitBid(ctx, "bob", 10, BidInput{Amount: 45000, TimelineSecs: 3600})
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestBidService_WithdrawBid_NotOwner(t *testing.T) {
	bids := new(mockBidStore)
	svc := NewBidService(bids, new(mockJobStore), new(mockRegistry), new(mockConfigStore))
	ctx := context.Background()

	bids.On("GetByID", ctx, int64(5)).Return(&models.Bid{ID: 5, JobID: 10, Agent: "bob"}, nil)

	err := svc.WithdrawBid(ctx, "mallory", 5)
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestBidService_WithdrawBid_Success(t *testing.T) {
	bids := new(mockBidStore)
	svc := NewBidService(bids, new(mockJobStore), new(mockRegistry), new(mockConfigStore))
	ctx := context.Background()

	bids.On("GetByID", ctx, int64(5)).Return(&models.Bid{ID: 5, JobID: 10, Agent: "bob"}, nil)
	bids.On("Delete", ctx, int64(5)).Return(nil)

	err := svc.WithdrawBid(ctx, "bob", 5)
	assert.NoError(t, err)
	bids.AssertExpectations(t)
}

func TestBidService_SelectBid_Success(t *testing.T) {
	bids := new(mockBidStore)
	jobs := new(mockJobStore)
	svc := NewBidService(bids, jobs, new(mockRegistry), new(mockConfigStore))
	ctx := context.Background()

	jobs.On("GetByID", ctx, int64(10)).Return(openJob(), nil)
	won := &models.Bid{ID: 5, JobID: 10, Agent: "bob", Amount: 45000, TimelineSecs: 604800}
	bids.On("GetByID", ctx, int64(5)).Return(won, nil)
	bids.On("Select", ctx, int64(10), int64(5), mock.AnythingOfType("time.Time")).Return(won, nil)

	job, err := svc.SelectBid(ctx, "alice", 10, 5)
	assert.NoError(t, err)
	assert.Equal(t, "bob", job.Agent)
	assert.Equal(t, int64(45000), job.Amount)
	bids.AssertExpectations(t)
}

func TestBidService_SelectBid_AlreadyFunded(t *testing.T) {
	jobs := new(mockJobStore)
	svc := NewBidService(new(mockBidStore), jobs, new(mockRegistry), new(mockConfigStore))
	ctx := context.Background()

	job := openJob()
	job.FundedAmount = 50000
	jobs.On("GetByID", ctx, int64(10)).Return(job, nil)

	_, err := svc.SelectBid(ctx, "alice", 10, 5)
	assert.Error(t, err)
	assert.True(t, apperror.IsState(err))
}

func TestBidService_SelectBid_WrongJob(t *testing.T) {
	bids := new(mockBidStore)
	jobs := new(mockJobStore)
	svc := NewBidService(bids, jobs, new(mockRegistry), new(mockConfigStore))
	ctx := context.Background()

	jobs.On("GetByID", ctx, int64(10)).Return(openJob(), nil)
	bids.On("GetByID", ctx, int64(5)).Return(&models.Bid{ID: 5, JobID: 77, Agent: "bob"}, nil)

	_, err := svc.SelectBid(ctx, "alice", 10, 5)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "другой сделке")
}

func TestBidService_SelectBid_NotClient(t *testing.T) {
	jobs := new(mockJobStore)
	svc := NewBidService(new(mockBidStore), jobs, new(mockRegistry), new(mockConfigStore))
	ctx := context.Background()

	jobs.On("GetByID", ctx, int64(10)).Return(openJob(), nil)

	_, err := svc.SelectBid(ctx, "mallory", 10, 5)
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestBidService_SelectBid_DeadlineFromTimeline(t *testing.T) {
	bids := new(mockBidStore)
	jobs := new(mockJobStore)
	svc := NewBidService(bids, jobs, new(mockRegistry), new(mockConfigStore))
	ctx := context.Background()

	jobs.On("GetByID", ctx, int64(10)).Return(openJob(), nil)
	won := &models.Bid{ID: 5, JobID: 10, Agent: "bob", Amount: 45000, TimelineSecs: 3600}
	bids.On("GetByID", ctx, int64(5)).Return(won, nil)
	bids.On("Select", ctx, int64(10), int64(5), mock.MatchedBy(func(d time.Time) bool {
		return time.Until(d) > 50*time.Minute && time.Until(d) <= time.Hour
	})).Return(won, nil)

	_, err := svc.SelectBid(ctx, "alice", 10, 5)
	assert.NoError(t, err)
	bids.AssertExpectations(t)
}
