package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"go.uber.org/zap"

	"inspecta-backend/internal/config"
	"inspecta-backend/internal/database"
	"inspecta-backend/internal/handlers"
	"inspecta-backend/internal/logging"
	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/repository"
	"inspecta-backend/internal/router"
	"inspecta-backend/internal/services"
	"inspecta-backend/internal/websocket"
	"inspecta-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// ──── Storage ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("postgres connected")

	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClients.Close()
	logger.Info("redis connected")

	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir, logger); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// ──── Repositories ────
	domainRepo := repository.NewDomainRepo(pool)
	userRepo := repository.NewUserRepo(pool)
	catalogRepo := repository.NewCatalogRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	checkRepo := repository.NewCheckRepo(pool)
	caseRepo := repository.NewNonComplianceRepo(pool)
	chatRepo := repository.NewChatRepo(pool)
	instructionRepo := repository.NewInstructionRepo(pool)
	reportRepo := repository.NewReportRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Services ────
	sessions := middleware.NewRedisSessions(redisClients.Queue)
	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret, cfg.SessionTTL, sessions)
	publisher := services.NewRedisPublisher(redisClients.Queue, logger)
	jobQueue := services.NewJobQueue(jobRepo, redisClients.Queue, logger)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL, logger)

	authService := services.NewAuthService(domainRepo, userRepo, sessions, sessionAuth, logger)
	userService := services.NewUserService(userRepo, sessions, logger)
	catalogService := services.NewCatalogService(catalogRepo)
	caseService := services.NewNonComplianceService(caseRepo, checkRepo, publisher, logger)
	checkService := services.NewCheckService(checkRepo, catalogRepo, caseService, logger)
	taskService := services.NewTaskService(taskRepo, checkRepo, catalogRepo, userRepo, jobQueue, emailService, logger, cfg.CheckHorizonDays)
	calendarService := services.NewCalendarService(checkRepo)
	chatService := services.NewChatService(chatRepo, taskRepo, publisher)
	instructionService := services.NewInstructionService(instructionRepo, services.NewDocumentExtractor(), jobQueue, cfg.StoragePath, logger)
	reportService := services.NewReportService(reportRepo, jobQueue, jobRepo, logger)

	if cfg.HasBootstrap() {
		if err := authService.Bootstrap(ctx, cfg.BootstrapDomain, cfg.BootstrapDomainName, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	// ──── Background work ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		jobRepo,
		taskService,
		reportService,
		instructionService,
		publisher,
		cfg.StoragePath,
		cfg.WorkerCount,
		logger,
	)
	workerPool.Start()

	overdue := services.NewOverdueScheduler(checkRepo, userRepo, emailService, publisher, cfg.OverdueGrace, logger)
	overdue.Start()

	wsHub := websocket.NewHub(redisClients.PubSub, sessionAuth, logger)

	// ──── HTTP ────
	authLimiter := router.AuthRateLimit(cfg.AuthRateLimit)
	defer authLimiter.Stop()

	r := router.New(
		sessionAuth,
		authLimiter,
		handlers.NewAuthHandler(authService),
		handlers.NewUserHandler(userService),
		handlers.NewCatalogHandler(catalogService),
		handlers.NewTaskHandler(taskService),
		handlers.NewCheckHandler(checkService, caseService),
		handlers.NewNonComplianceHandler(caseService),
		handlers.NewCalendarHandler(calendarService),
		handlers.NewChatHandler(chatService),
		handlers.NewInstructionHandler(instructionService),
		handlers.NewReportHandler(reportService),
		handlers.NewJobHandler(jobQueue),
		wsHub,
		cfg.FrontendURL,
		logger,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("inspecta backend ready", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	wsHub.Close()
	overdue.Stop()
	workerPool.Stop()
	return nil
}
