package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/ap"
	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/ar"
	"github.com/ledgerline/ledgerline/internal/classify"
	"github.com/ledgerline/ledgerline/internal/ledger/accounts"
	"github.com/ledgerline/ledgerline/internal/ledger/journals"
	"github.com/ledgerline/ledgerline/internal/ledger/mappings"
	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	"github.com/ledgerline/ledgerline/internal/ledger/posting"
	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/procurement"
	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, account cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo, redisClient, cfg.AccountCacheTTL, logger)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	periodsRepo := periods.NewRepository(pool)
	periodsService := periods.NewService(periodsRepo)
	periodsHandler := periods.NewHandler(logger, periodsService)

	mappingsRepo := mappings.NewRepository(pool)
	mappingsHandler := mappings.NewHandler(logger, mappingsRepo)
	postingResolver := posting.NewResolver(mappingsRepo)

	journalsRepo := journals.NewRepository(pool)
	journalsService := journals.NewService(journalsRepo, auditLogger)
	journalsHandler := journals.NewHandler(logger, journalsService)

	partyRepo := party.NewPGRepository(pool)
	partyService := party.NewService(partyRepo, logger)
	partyHandler := party.NewHandler(logger, partyService)

	arRepo := ar.NewPGRepository(pool)
	arService := ar.NewService(arRepo, postingResolver, auditLogger, logger)
	arHandler := ar.NewHandler(logger, arService)

	apRepo := ap.NewPGRepository(pool)
	apService := ap.NewService(apRepo, postingResolver, approvalRecorder, auditLogger, logger)
	apHandler := ap.NewHandler(logger, apService)

	procurementRepo := procurement.NewPGRepository(pool)
	procurementService := procurement.NewService(procurementRepo, approvalRecorder, auditLogger, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	classifyHandler := classify.NewHandler(logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Idempotency:        shared.NewIdempotencyStore(pool),
		AccountsHandler:    accountsHandler,
		PeriodsHandler:     periodsHandler,
		MappingsHandler:    mappingsHandler,
		JournalsHandler:    journalsHandler,
		PartyHandler:       partyHandler,
		ARHandler:          arHandler,
		APHandler:          apHandler,
		ProcurementHandler: procurementHandler,
		ClassifyHandler:    classifyHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
