package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-engine/internal/config"
	"github.com/ignatzorin/escrow-engine/internal/db"
	httpHandlers "github.com/ignatzorin/escrow-engine/internal/http/handlers"
	httpRouter "github.com/ignatzorin/escrow-engine/internal/http/router"
	"github.com/ignatzorin/escrow-engine/internal/logger"
	"github.com/ignatzorin/escrow-engine/internal/registry"
	"github.com/ignatzorin/escrow-engine/internal/repository"
	"github.com/ignatzorin/escrow-engine/internal/service"
	"github.com/ignatzorin/escrow-engine/internal/token"
	"github.com/ignatzorin/escrow-engine/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы и внешние клиенты.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, 24*time.Hour)
	registryClient := registry.NewClient(cfg.RegistryBaseURL)
	ledgerClient := token.NewLedger(cfg.LedgerBaseURL, cfg.LedgerToken, cfg.EngineAccount)

	// Репозитории.
	jobRepo := repository.NewJobRepository(dbConn)
	milestoneRepo := repository.NewMilestoneRepository(dbConn)
	bidRepo := repository.NewBidRepository(dbConn)
	arbitratorRepo := repository.NewArbitratorRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	configRepo := repository.NewConfigRepository(dbConn)
	transferRepo := repository.NewTransferRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	jobService := service.NewJobService(jobRepo, milestoneRepo, arbitratorRepo, configRepo, registryClient, ledgerClient, transferRepo, hub)
	bidService := service.NewBidService(bidRepo, jobRepo, registryClient, configRepo)
	arbitratorService := service.NewArbitratorService(arbitratorRepo, configRepo, ledgerClient, transferRepo, cfg.NativeSymbol)
	disputeService := service.NewDisputeService(disputeRepo, jobRepo, arbitratorRepo, configRepo, ledgerClient, transferRepo, hub)
	transferService := service.NewTransferService(jobRepo, arbitratorRepo, transferRepo, configRepo, ledgerClient, hub, cfg.NativeSymbol)
	configService := service.NewConfigService(configRepo)

	// HTTP хэндлеры.
	jobHandler := httpHandlers.NewJobHandler(jobService)
	bidHandler := httpHandlers.NewBidHandler(bidService)
	arbitratorHandler := httpHandlers.NewArbitratorHandler(arbitratorService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	transferHandler := httpHandlers.NewTransferHandler(transferService)
	configHandler := httpHandlers.NewConfigHandler(configService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	var tokenHandler *httpHandlers.TokenHandler
	if cfg.Env == "development" {
		tokenHandler = httpHandlers.NewTokenHandler(tokenManager)
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, jobHandler, bidHandler, arbitratorHandler, disputeHandler, transferHandler, configHandler, wsHandler, healthHandler, tokenHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
