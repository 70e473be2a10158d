package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	apptrepo "premunia_crm_backend/internal/appointments/repository"
	authadapter "premunia_crm_backend/internal/auth/adapter"
	authrepo "premunia_crm_backend/internal/auth/repository"
	"premunia_crm_backend/internal/campaigns/catalogue"
	"premunia_crm_backend/internal/campaigns/dispatch"
	campaignrepo "premunia_crm_backend/internal/campaigns/repository"
	"premunia_crm_backend/internal/email"
	"premunia_crm_backend/internal/events"
	"premunia_crm_backend/internal/eventstream"
	"premunia_crm_backend/internal/notification"
	"premunia_crm_backend/internal/notification/inapp"
	prospectrepo "premunia_crm_backend/internal/prospects/repository"
	"premunia_crm_backend/internal/scheduler"
	taskrepo "premunia_crm_backend/internal/tasks/repository"
	"premunia_crm_backend/platform/config"
	"premunia_crm_backend/platform/db"
	"premunia_crm_backend/platform/errtrack"
	"premunia_crm_backend/platform/logger"
	"premunia_crm_backend/platform/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flushErrors, err := errtrack.Init(cfg)
	if err != nil {
		log.Warn("error tracking disabled", "error", err)
	}
	defer flushErrors()

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

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	sender := email.New(cfg)

	// Reminder events are published by the worker in this process, so the
	// emails for them go out from here.
	users := authadapter.NewUserDirectoryAdapter(authrepo.New(pool))
	notificationModule := notification.New(sender, users, inapp.NewRepository(pool), log)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.Close()

	stream := eventstream.NewPublisher(cfg, log)
	stream.Forward(eventBus,
		events.CampaignCompleted{}.EventName(),
		events.AppointmentReminderDue{}.EventName(),
		events.TaskDueSoon{}.EventName(),
	)
	defer func() { _ = stream.Close() }()

	templates, err := catalogue.Load()
	if err != nil {
		log.Error("failed to load campaign templates", "error", err)
		panic("failed to load campaign templates: " + err.Error())
	}

	dispatcher := dispatch.New(
		campaignrepo.New(pool),
		prospectrepo.New(pool),
		templates,
		sender,
		eventBus,
		metrics.New(),
		log,
	)

	worker, err := scheduler.NewWorker(cfg, scheduler.WorkerDeps{
		Appointments: apptrepo.New(pool),
		Tasks:        taskrepo.New(pool),
		Campaigns:    dispatcher,
		Templates:    dispatcher,
		Bus:          eventBus,
	}, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	logQueue(cfg, log)
	worker.Run(ctx)
}

func logQueue(cfg config.SchedulerConfig, log *logger.Logger) {
	log.Info("scheduler worker running", "queue", cfg.GetAsynqQueueName(), "concurrency", cfg.GetAsynqConcurrency())
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
