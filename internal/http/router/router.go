package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-engine/internal/config"
	"github.com/ignatzorin/escrow-engine/internal/http/handlers"
	"github.com/ignatzorin/escrow-engine/internal/http/middleware"
	"github.com/ignatzorin/escrow-engine/internal/service"
	"github.com/ignatzorin/escrow-engine/internal/telemetry"
)

func SetupRouter(
	cfg *config.Config,
	jobHandler *handlers.JobHandler,
	bidHandler *handlers.BidHandler,
	arbitratorHandler *handlers.ArbitratorHandler,
	disputeHandler *handlers.DisputeHandler,
	transferHandler *handlers.TransferHandler,
	configHandler *handlers.ConfigHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenHandler *handlers.TokenHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(telemetry.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// Вебхук леджера: аутентификация статическим токеном, не JWT.
	// Леджер — сервер, не браузер, поэтому группа живёт без CORS.
	ledger := api.Group("/transfers")
	ledger.Use(middleware.LedgerAuthMiddleware(cfg.LedgerToken))
	{
		ledger.POST("/inbound", transferHandler.HandleInbound)
	}

	// CORS нужен только браузерным маршрутам.
	api.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	if tokenHandler != nil && cfg.Env == "development" {
		api.POST("/dev/token", tokenHandler.Issue)
	}

	// Публичные маршруты чтения.
	api.GET("/jobs", jobHandler.ListJobs)
	api.GET("/jobs/:id", jobHandler.GetJob)
	api.GET("/jobs/:id/milestones", jobHandler.ListMilestones)
	api.GET("/jobs/:id/bids", bidHandler.ListBids)
	api.GET("/jobs/:id/disputes", disputeHandler.ListDisputes)
	api.GET("/jobs/:id/transfers", transferHandler.ListJobTransfers)
	api.GET("/arbitrators", arbitratorHandler.ListArbitrators)
	api.GET("/arbitrators/:account", arbitratorHandler.GetArbitrator)
	api.GET("/config", configHandler.GetConfig)
	api.GET("/ws", wsHandler.Handle)

	// Таймауты дёргает любой желающий: права не проверяются, сроки — да.
	api.POST("/jobs/:id/accept-timeout", jobHandler.AcceptTimeout)
	api.POST("/jobs/:id/timeout", jobHandler.Timeout)

	// Защищённые маршруты.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/jobs", jobHandler.CreateJob)
		protected.POST("/jobs/:id/milestones", jobHandler.AddMilestone)
		protected.POST("/jobs/:id/milestones/submit", jobHandler.SubmitMilestone)
		protected.POST("/jobs/:id/milestones/approve", jobHandler.ApproveMilestone)
		protected.POST("/jobs/:id/accept", jobHandler.AcceptJob)
		protected.POST("/jobs/:id/start", jobHandler.StartJob)
		protected.POST("/jobs/:id/deliver", jobHandler.Deliver)
		protected.POST("/jobs/:id/approve", jobHandler.Approve)
		protected.POST("/jobs/:id/cancel", jobHandler.Cancel)

		protected.POST("/jobs/:id/bids", bidHandler.SubmitBid)
		protected.POST("/jobs/:id/bids/:bidId/select", bidHandler.SelectBid)
		protected.DELETE("/bids/:id", bidHandler.WithdrawBid)

		protected.POST("/arbitrators", arbitratorHandler.Register)
		protected.POST("/arbitrators/activate", arbitratorHandler.Activate)
		protected.POST("/arbitrators/deactivate", arbitratorHandler.Deactivate)
		protected.POST("/arbitrators/unstake", arbitratorHandler.RequestUnstake)
		protected.POST("/arbitrators/withdraw", arbitratorHandler.WithdrawStake)

		protected.POST("/jobs/:id/disputes", disputeHandler.OpenDispute)
		protected.POST("/jobs/:id/arbitrate", disputeHandler.Arbitrate)

		protected.GET("/transfers/my", transferHandler.ListMyTransfers)
		protected.POST("/transfers/replay", transferHandler.ReplayPending)

		protected.PUT("/config", configHandler.SetConfig)
		protected.PUT("/config/owner", configHandler.SetOwner)
	}

	return r
}
