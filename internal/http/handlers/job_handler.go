package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/models"
	"github.com/ignatzorin/escrow-engine/internal/service"
)

type JobHandler struct {
	jobs *service.JobService
}

func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// CreateJob POST /jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	var req struct {
		Agent        string     `json:"agent"`
		Title        string     `json:"title" binding:"required"`
		Description  string     `json:"description"`
		Deliverables []string   `json:"deliverables"`
		Amount       int64      `json:"amount" binding:"required,gt=0"`
		Symbol       string     `json:"symbol" binding:"required"`
		Deadline     *time.Time `json:"deadline"`
		Arbitrator   string     `json:"arbitrator"`
		JobHash      string     `json:"job_hash"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "неверное тело запроса: "+err.Error())
		return
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), account, service.CreateJobInput{
		Agent:        req.Agent,
		Title:        req.Title,
		Description:  req.Description,
		Deliverables: req.Deliverables,
		Amount:       req.Amount,
		Symbol:       req.Symbol,
		Deadline:     req.Deadline,
		Arbitrator:   req.Arbitrator,
		JobHash:      req.JobHash,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// GetJob GET /jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs GET /jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	state := c.Query("state")
	openOnly := c.Query("open") == "true"
	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	jobs, err := h.jobs.ListJobs(c.Request.Context(), state, openOnly, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// AddMilestone POST /jobs/:id/milestones
func (h *JobHandler) AddMilestone(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		Amount      int64  `json:"amount" binding:"required,gt=0"`
		Ord         int    `json:"ord"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "неверное тело запроса: "+err.Error())
		return
	}

	m, err := h.jobs.AddMilestone(c.Request.Context(), account, id, service.MilestoneInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Ord:         req.Ord,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

// ListMilestones GET /jobs/:id/milestones
func (h *JobHandler) ListMilestones(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ms, err := h.jobs.ListMilestones(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"milestones": ms})
}

// AcceptJob POST /jobs/:id/accept
func (h *JobHandler) AcceptJob(c *gin.Context) {
	h.jobAction(c, h.jobs.AcceptJob)
}

// StartJob POST /jobs/:id/start
func (h *JobHandler) StartJob(c *gin.Context) {
	h.jobAction(c, h.jobs.StartJob)
}

// Approve POST /jobs/:id/approve
func (h *JobHandler) Approve(c *gin.Context) {
	h.jobAction(c, h.jobs.Approve)
}

// Cancel POST /jobs/:id/cancel
func (h *JobHandler) Cancel(c *gin.Context) {
	h.jobAction(c, h.jobs.Cancel)
}

// SubmitMilestone POST /jobs/:id/milestones/submit
func (h *JobHandler) SubmitMilestone(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var req struct {
		EvidenceURI string `json:"evidence_uri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "неверное тело запроса")
		return
	}

	m, err := h.jobs.SubmitMilestone(c.Request.Context(), account, id, req.EvidenceURI)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

// ApproveMilestone POST /jobs/:id/milestones/approve
func (h *JobHandler) ApproveMilestone(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	m, err := h.jobs.ApproveMilestone(c.Request.Context(), account, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

// Deliver POST /jobs/:id/deliver
func (h *JobHandler) Deliver(c *gin.Context) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var req struct {
		EvidenceURI string `json:"evidence_uri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "неверное тело запроса")
		return
	}

	job, err := h.jobs.Deliver(c.Request.Context(), account, id, req.EvidenceURI)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// AcceptTimeout POST /jobs/:id/accept-timeout
// Действие без проверки прав: таймауты может дёрнуть кто угодно.
func (h *JobHandler) AcceptTimeout(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.AcceptTimeout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// Timeout POST /jobs/:id/timeout
func (h *JobHandler) Timeout(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.Timeout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// jobAction — общий каркас действий вида POST /jobs/:id/<action> без тела.
func (h *JobHandler) jobAction(c *gin.Context, action func(ctx context.Context, caller string, jobID int64) (*models.Job, error)) {
	account, err := currentAccount(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	job, err := action(c.Request.Context(), account, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}
