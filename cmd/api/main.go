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

	"premunia_crm_backend/internal/adapters/storage"
	"premunia_crm_backend/internal/appointments"
	"premunia_crm_backend/internal/auth"
	"premunia_crm_backend/internal/campaigns"
	"premunia_crm_backend/internal/campaigns/catalogue"
	"premunia_crm_backend/internal/clients"
	"premunia_crm_backend/internal/comparator"
	"premunia_crm_backend/internal/email"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/eventstream"
	"premunia_crm_backend/internal/exports"
	"premunia_crm_backend/internal/goals"
	apphttp "premunia_crm_backend/internal/http"
	"premunia_crm_backend/internal/http/router"
	"premunia_crm_backend/internal/imports"
	"premunia_crm_backend/internal/notification"
	"premunia_crm_backend/internal/notification/inapp"
	"premunia_crm_backend/internal/opportunities"
	"premunia_crm_backend/internal/prospects"
	"premunia_crm_backend/internal/reporting"
	"premunia_crm_backend/internal/scheduler"
	"premunia_crm_backend/internal/search"
	searchmodule "premunia_crm_backend/internal/search/module"
	"premunia_crm_backend/internal/tasks"
	"premunia_crm_backend/internal/uploads"
	uploadservice "premunia_crm_backend/internal/uploads/service"
	"premunia_crm_backend/platform/cache"
	"premunia_crm_backend/platform/config"
	"premunia_crm_backend/platform/db"
	"premunia_crm_backend/platform/errtrack"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"
	"premunia_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flushErrors, err := errtrack.Init(cfg)
	if err != nil {
		log.Warn("error tracking disabled", "error", err)
	}
	defer flushErrors()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		applied, err := db.RunMigrations(ctx, cfg)
		if err == nil && len(applied) > 0 {
			log.Info("migrations applied", "versions", applied)
		}
		return err
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	registry := metrics.New()
	val := validator.New()

	reportCache := initCache(ctx, cfg, log)
	index := initSearchIndex(ctx, cfg, log)
	uploadStore := initStorage(ctx, cfg, log)

	stream := eventstream.NewPublisher(cfg, log)
	stream.Forward(eventBus, eventstream.DefaultEvents...)
	defer func() { _ = stream.Close() }()

	jobs, closeJobs := initJobClient(cfg, log)
	if closeJobs != nil {
		defer closeJobs()
	}

	templates, err := catalogue.Load()
	if err != nil {
		log.Error("failed to load campaign templates", "error", err)
		panic("failed to load campaign templates: " + err.Error())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(pool, cfg, eventBus, val, log)
	prospectsModule := prospects.NewModule(pool, eventBus, index, comparator.New(cfg), registry, val, log)
	tasksModule := tasks.NewModule(pool, eventBus, jobs.reminders, registry, val, log)
	appointmentsModule := appointments.NewModule(pool, eventBus, jobs.reminders, val, log)
	campaignsModule := campaigns.NewModule(pool, templates, jobs.campaigns, eventBus, val, log)
	opportunitiesModule := opportunities.NewModule(pool, prospectsModule.Repository(), eventBus, val, log)
	clientsModule := clients.NewModule(pool, eventBus, val, log)
	goalsModule := goals.NewModule(pool, val, log)
	reportingModule := reporting.NewModule(
		pool,
		prospectsModule.Repository(),
		campaignsModule.Repository(),
		reportCache,
		cfg.GetReportCacheTTL(),
		val,
		log,
	)
	uploadsModule := uploads.NewModule(uploadStore, cfg.GetMinioBucketUploads(), val, log)
	importsModule := imports.NewModule(pool, prospectsModule.Service(), val, log)
	exportsModule := exports.NewModule(pool, val, log)
	searchModule := searchmodule.NewModule(pool, index, val, log)

	// Notifications are sent by the scheduler process for reminders; the API
	// process handles assignment and intake events.
	notificationModule := notification.New(email.New(cfg), authModule.Directory(), inapp.NewRepository(pool), log)
	defer notificationModule.Close()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		Metrics:  registry,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			prospectsModule,
			tasksModule,
			appointmentsModule,
			campaignsModule,
			opportunitiesModule,
			clientsModule,
			goalsModule,
			reportingModule,
			uploadsModule,
			importsModule,
			exportsModule,
			searchModule,
			notificationModule,
		},
	}
	app.SubscribeModules()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// jobClients holds the asynq-backed ports. Both stay nil without Redis,
// which disables reminders and queues campaign dispatch nowhere.
type jobClients struct {
	reminders scheduler.ReminderScheduler
	campaigns scheduler.CampaignEnqueuer
}

func initJobClient(cfg config.SchedulerConfig, log *logger.Logger) (jobClients, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; reminders and campaign dispatch disabled")
		return jobClients{}, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return jobClients{}, nil
	}

	return jobClients{reminders: client, campaigns: client}, func() {
		_ = client.Close()
	}
}

func initCache(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) cache.Cache {
	if cfg.GetRedisURL() == "" {
		return cache.Noop{}
	}
	redisCache, err := cache.NewRedis(cfg.GetRedisURL())
	if err != nil {
		log.Warn("report cache disabled", "error", err)
		return cache.Noop{}
	}
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("report cache unreachable; serving uncached reports", "error", err)
		_ = redisCache.Close()
		return cache.Noop{}
	}
	return redisCache
}

func initSearchIndex(ctx context.Context, cfg config.SearchConfig, log *logger.Logger) search.ProspectIndex {
	index, err := search.NewIndex(cfg)
	if err != nil {
		log.Warn("search index disabled", "error", err)
		return search.Noop{}
	}
	if !index.Enabled() {
		return index
	}
	if err := withRetry(ctx, log, "ensure search index", 3, 2*time.Second, func() error {
		return index.EnsureIndex(ctx)
	}); err != nil {
		log.Warn("search index unavailable; falling back to database search", "error", err)
		return search.Noop{}
	}
	log.Info("search index ready", "index", cfg.GetElasticsearchIndex())
	return index
}

func initStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) uploadservice.Storage {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; uploads disabled")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	bucket := cfg.GetMinioBucketUploads()
	if err := withRetry(ctx, log, "ensure uploads bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "bucket", bucket)
	return storageSvc
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
