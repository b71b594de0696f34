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

	"github.com/telesite/telesite/internal/app"
	"github.com/telesite/telesite/internal/auth"
	"github.com/telesite/telesite/internal/notifications"
	"github.com/telesite/telesite/internal/observability"
	"github.com/telesite/telesite/internal/platform/cache"
	"github.com/telesite/telesite/internal/platform/db"
	"github.com/telesite/telesite/internal/projects"
	"github.com/telesite/telesite/internal/rbac"
	"github.com/telesite/telesite/internal/roles"
	"github.com/telesite/telesite/internal/shared"
	"github.com/telesite/telesite/internal/surveys"
	"github.com/telesite/telesite/internal/users"
	"github.com/telesite/telesite/jobs"
)

// instrumentedNotifier counts fan-out outcomes on top of the dispatcher.
type instrumentedNotifier struct {
	dispatcher *notifications.Dispatcher
	metrics    *observability.Metrics
}

func (n instrumentedNotifier) Dispatch(ctx context.Context, ev notifications.Event) (int, error) {
	count, err := n.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		n.metrics.RecordDispatchFailure()
	}
	n.metrics.AddNotifications(string(ev.Kind), count)
	return count, err
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionStore(redisClient, cfg.SessionTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	userRepo := users.NewRepository(dbpool)
	userService := users.NewService(userRepo)

	authService := auth.NewService(userRepo)
	authHandler := auth.NewHandler(logger, authService, sessions)

	roleRepo := roles.NewRepository(dbpool)
	roleService := roles.NewService(roleRepo, auditLogger)

	projectRepo := projects.NewRepository(dbpool)
	projectService := projects.NewService(projectRepo, userRepo, auditLogger)

	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo, roleRepo, userRepo, projectRepo, auditLogger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	notifRepo := notifications.NewRepository(dbpool)
	unreadCache := notifications.NewUnreadCache(redisClient, cfg.UnreadCacheTTL, logger)
	dispatcher := notifications.NewDispatcher(notifRepo, unreadCache, logger)
	notifService := notifications.NewService(notifRepo, unreadCache, cfg.NotificationRetention)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	surveyRepo := surveys.NewRepository(dbpool)
	notifier := instrumentedNotifier{dispatcher: dispatcher, metrics: metrics}
	surveyService := surveys.NewService(surveyRepo, rbacService, notifier, jobClient, userRepo, auditLogger, logger).WithMetrics(metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Sessions:             sessions,
		AuthHandler:          authHandler,
		RolesHandler:         roles.NewHandler(logger, roleService, rbacMiddleware.RequireRole),
		UsersHandler:         users.NewHandler(logger, userService, rbacMiddleware.RequireRole),
		ProjectsHandler:      projects.NewHandler(logger, projectService, rbacMiddleware.RequireRole),
		RBACHandler:          rbac.NewHandler(logger, rbacService),
		SurveysHandler:       surveys.NewHandler(logger, surveyService),
		NotificationsHandler: notifications.NewHandler(logger, notifService),
		JobHandler:           jobHandler,
		RBACMiddleware:       rbacMiddleware,
		Pool:                 dbpool,
		Metrics:              metrics,
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
