package app

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/semmidev/s3cleaner/internal/adapter/notifier"
	"github.com/semmidev/s3cleaner/internal/adapter/storage"
	"github.com/semmidev/s3cleaner/internal/config"
	"github.com/semmidev/s3cleaner/internal/domain"
	"github.com/semmidev/s3cleaner/internal/infrastructure/logger"
	"github.com/semmidev/s3cleaner/internal/infrastructure/metrics"
	"github.com/semmidev/s3cleaner/internal/infrastructure/scheduler"
	"github.com/semmidev/s3cleaner/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	cleaner   *usecase.Cleaner
	server    *Server
	scheduler *scheduler.Scheduler
}

func New(cfg *config.Config) (*App, error) {
	// Initialize logger
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	// Initialize storage
	factory, err := initializeStoreFactory(cfg, log)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	cleaner := usecase.NewCleaner(
		factory,
		cfg.Policy(),
		m,
		initializeNotifier(cfg, log),
		log.Named("cleaner"),
	)
	lister := usecase.NewLister(factory, log.Named("lister"))
	deleter := usecase.NewDeleter(factory, log.Named("deleter"))

	server := NewServer(cfg.Server, lister, deleter, cleaner, m, log.Named("http"))

	sched := scheduler.New(log.Named("scheduler").StdLog(), func(name string, err error) {
		log.Errorf("Scheduled job %s failed: %v", name, err)
	})

	return &App{
		config:    cfg,
		logger:    log,
		metrics:   m,
		cleaner:   cleaner,
		server:    server,
		scheduler: sched,
	}, nil
}

func initializeStoreFactory(cfg *config.Config, log *logger.Logger) (domain.StoreFactory, error) {
	switch cfg.Storage.Type {
	case "s3":
		if cfg.Storage.Endpoint != "" {
			log.Infof("✓ S3 storage enabled (endpoint: %s)", cfg.Storage.Endpoint)
		} else {
			log.Infof("✓ AWS S3 storage enabled")
		}
		return storage.NewS3Factory(storage.S3OptionsFromConfig(cfg.Storage), config.NewEnvCredentials()), nil

	case "local":
		local, err := storage.NewLocal(cfg.Storage.LocalRoot, cfg.Storage.PageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		log.Infof("✓ Local storage enabled (root: %s)", cfg.Storage.LocalRoot)
		return local, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

func initializeNotifier(cfg *config.Config, log *logger.Logger) usecase.Notifier {
	if !cfg.Notify.Telegram.Enabled {
		return nil
	}

	tg, err := notifier.NewTelegram(&cfg.Notify.Telegram)
	if err != nil {
		log.Errorf("Failed to initialize Telegram: %v", err)
		return nil
	}
	log.Infof("✓ Telegram notifications enabled")
	return tg
}

// Clean runs a single clean outside the HTTP server.
func (a *App) Clean(ctx context.Context, req domain.CleanRequest) (domain.CleanResult, error) {
	return a.cleaner.Execute(ctx, req)
}

// cleanTargets runs the configured schedule targets one after another.
func (a *App) cleanTargets(ctx context.Context) error {
	var errs error
	for _, req := range a.config.GetScheduleRequests() {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		a.logger.Infof("=== Triggered scheduled clean for %s ===", req.Bucket)
		if _, err := a.cleaner.Execute(ctx, req); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", req.Bucket, err))
		}
	}
	return errs
}

func (a *App) Run(ctx context.Context) error {
	if a.config.Schedule.Enabled {
		a.logger.Infof("Scheduling clean of %d target(s): %s", len(a.config.Schedule.Targets), a.config.Schedule.Cron)
		if err := a.scheduler.AddJob("clean", a.config.Schedule.Cron, a.cleanTargets); err != nil {
			return fmt.Errorf("failed to schedule clean: %w", err)
		}
		a.scheduler.Start()
		a.logger.Infof("Scheduler started successfully")
	}

	if err := a.server.Start(); err != nil {
		return err
	}

	// Keep running until context is cancelled
	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Errorf("%v", err)
	}

	if a.config.Schedule.Enabled {
		a.scheduler.Stop()
	}
	a.logger.Close()
}
