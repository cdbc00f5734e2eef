package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	achttp "github.com/blipee-dev/agentcore/internal/adapter/http"
	"github.com/blipee-dev/agentcore/internal/adapter/litellm"
	acnats "github.com/blipee-dev/agentcore/internal/adapter/nats"
	acotel "github.com/blipee-dev/agentcore/internal/adapter/otel"
	"github.com/blipee-dev/agentcore/internal/adapter/postgres"
	"github.com/blipee-dev/agentcore/internal/adapter/ristretto"
	_ "github.com/blipee-dev/agentcore/internal/adapter/slack" // register slack notifier
	"github.com/blipee-dev/agentcore/internal/adapter/ws"
	"github.com/blipee-dev/agentcore/internal/config"
	"github.com/blipee-dev/agentcore/internal/logger"
	"github.com/blipee-dev/agentcore/internal/middleware"
	"github.com/blipee-dev/agentcore/internal/port/notifier"
	"github.com/blipee-dev/agentcore/internal/resilience"
	"github.com/blipee-dev/agentcore/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"max_concurrent", cfg.Workers.MaxConcurrent,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownTelemetry, err := acotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	metrics, err := acotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := acnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	cache, err := ristretto.New(cfg.DecisionCache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	completer := litellm.NewClient(cfg.Completion.URL, cfg.Completion.MasterKey, cfg.Completion.Timeout)
	completer.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	readings := postgres.NewMetricReader(pool)

	var notifiers []notifier.Notifier
	if cfg.Notifier.Provider != "" {
		n, err := notifier.New(cfg.Notifier.Provider, cfg.Notifier.Config)
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		notifiers = append(notifiers, n)
	}
	notifications := service.NewNotificationService(notifiers, cfg.Notifier.Sources)

	tenantSvc := service.NewTenantService(store)
	registrySvc := service.NewRegistryService(store)

	decisionSvc := service.NewDecisionService(store, cache, cfg.DecisionCache.TTL)
	decisionSvc.SetMetrics(metrics)

	schedulerSvc := service.NewSchedulerService(store, queue, cfg.Scheduler)
	schedulerSvc.SetMetrics(metrics)

	executorSvc := service.NewExecutorService(store, queue, completer, readings, hub, cfg.Workers)
	executorSvc.SetMetrics(metrics)

	approvalSvc := service.NewApprovalService(store, queue, hub, cfg.Approval)
	approvalSvc.SetNotifications(notifications)
	approvalSvc.SetMetrics(metrics)

	orchestratorSvc := service.NewOrchestratorService(store, queue, schedulerSvc, decisionSvc, approvalSvc, hub)
	orchestratorSvc.SetNotifications(notifications)
	orchestratorSvc.SetMetrics(metrics)

	// --- Background loops ---

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if err := executorSvc.Start(runCtx); err != nil {
		return err
	}
	defer executorSvc.Stop()

	if err := orchestratorSvc.Start(runCtx); err != nil {
		return err
	}
	defer orchestratorSvc.Stop()

	go schedulerSvc.Run(runCtx)
	go approvalSvc.Run(runCtx)

	// --- HTTP ---

	handlers := &achttp.Handlers{
		Tenants:      tenantSvc,
		Registry:     registrySvc,
		Scheduler:    schedulerSvc,
		Approvals:    approvalSvc,
		Orchestrator: orchestratorSvc,
	}

	r := chi.NewRouter()
	r.Use(achttp.CORS(cfg.Server.CORSOrigin))
	r.Use(achttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.TenantID)
	r.Use(acotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler(queue, pool.Ping))
	r.Get("/ws", hub.HandleWS)
	achttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports liveness of the queue and database.
func healthHandler(queue interface{ IsConnected() bool }, ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		pg := "ok"
		if err := ping(r.Context()); err != nil {
			pg = "down"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		nats := "ok"
		if !queue.IsConnected() {
			nats = "down"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q,"postgres":%q,"nats":%q}`, status, pg, nats)
	}
}
