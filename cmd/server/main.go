package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/set-night/rewardhub"
	"github.com/set-night/rewardhub/internal/broker"
	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/handler"
	"github.com/set-night/rewardhub/internal/repository"
	"github.com/set-night/rewardhub/internal/service"
	"github.com/set-night/rewardhub/internal/telegram"
	"github.com/shopspring/decimal"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Amounts go out as JSON numbers, the way the Mini App expects them.
	decimal.MarshalJSONWithoutQuotes = true

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(rewardhub.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	store := repository.NewStore(pool)

	// Bot API client for membership checks and the log chat; no updates are polled.
	b, err := bot.New(cfg.BotToken)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}
	tgLogger := telegram.NewTelegramLogger(b, cfg)
	membership := telegram.NewMembershipChecker(b)

	// Referral commissions
	commissions := service.NewCommissionService(store, cfg.CommissionRate)
	var dispatcher service.CommissionDispatcher
	waitWorker := func() {}
	if cfg.NatsURL != "" {
		bus := broker.NewCommissionBus(cfg.NatsURL, cfg.NatsSubject)
		if err := bus.Connect(); err != nil {
			slog.Error("failed to connect to nats", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		if err := bus.Subscribe(commissions); err != nil {
			slog.Error("failed to subscribe to commission events", "error", err)
			os.Exit(1)
		}
		dispatcher = bus
	} else {
		worker := service.NewCommissionWorker(commissions, config.CommissionQueueSize)
		waitWorker = worker.Start(ctx)
		dispatcher = worker
	}

	// Initialize services
	verifier := service.NewInitDataVerifier(cfg.BotToken)
	tokenService := service.NewActionTokenService(store, cfg)
	ledgerService := service.NewLedgerService(store, dispatcher)
	taskService := service.NewTaskService(store, tokenService, verifier, membership, dispatcher)
	withdrawalService := service.NewWithdrawalService(store, tokenService, tgLogger)
	userService := service.NewUserService(store, withdrawalService, ledgerService, tgLogger)

	h := handler.New(handler.Deps{
		Verifier:          verifier,
		TokenService:      tokenService,
		LedgerService:     ledgerService,
		TaskService:       taskService,
		WithdrawalService: withdrawalService,
		UserService:       userService,
		Ping:              pool.Ping,
	})

	// Start expired action token cleanup goroutine
	go func() {
		ticker := time.NewTicker(config.ActionTokenCleanup)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := tokenService.PurgeExpired(context.Background())
				if err != nil {
					slog.Error("cleanup expired action tokens", "error", err)
					continue
				}
				if n > 0 {
					slog.Debug("expired action tokens removed", "count", n)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h.Routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	go func() {
		slog.Info("starting http server", "addr", srv.Addr, "admins", cfg.AdminIDsString())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "error", err)
	}
	waitWorker()
	slog.Info("server stopped gracefully")
}
