package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"issuesync/config"
	"issuesync/db"
	"issuesync/fetcher"
	"issuesync/github"
	"issuesync/lock"
	"issuesync/logger"
	"issuesync/models"
)

// Runner runs poll cycles
// (for testability)
type Runner interface {
	Run(ctx context.Context) (*models.CycleStats, error)
	RunWindow(ctx context.Context, window models.Window) (*models.CycleStats, error)
}

// Service errors
var (
	ErrServiceInit     = errors.New("service initialization error")
	ErrServiceShutdown = errors.New("service shutdown error")
)

// Service wires the store, the GitHub clients and the fetcher, and schedules poll runs.
type Service struct {
	config   *config.Config
	database *db.DB
	locker   lock.Locker
	runner   Runner
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewService creates a new service instance from a loaded configuration
func NewService(cfg *config.Config) (*Service, error) {
	database, err := db.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize database: %v", ErrServiceInit, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := database.EnsureSchema(ctx); err != nil {
		cancel()
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %v", ErrServiceInit, err)
	}

	client, err := github.NewClient(cfg.GitHubToken, cfg.GraphQLURL, cfg.RequestTimeout)
	if err != nil {
		cancel()
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to create github client: %v", ErrServiceInit, err)
	}
	retry := github.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	source := github.NewRetryClient(client, retry)
	logos := github.NewLogoClient(cfg.GitHubToken, cfg.GraphQLURL, cfg.RequestTimeout)

	locker, err := lock.New(cfg.RedisURL)
	if err != nil {
		cancel()
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to create run lock: %v", ErrServiceInit, err)
	}

	f := fetcher.New(source, database, logos, locker, fetcher.Options{
		IssueLabel: cfg.IssueLabel,
		PRLabel:    cfg.PRLabel,
		MaxPages:   cfg.PageCeiling,
		PageSize:   cfg.PageSize,
		LockTTL:    cfg.RunDeadline,
	})

	logger.Info("Service initialized successfully",
		zap.String("issue_label", cfg.IssueLabel),
		zap.String("pr_label", cfg.PRLabel),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("page_ceiling", cfg.PageCeiling),
		zap.Bool("redis_lock", cfg.RedisURL != ""))

	return &Service{
		config:   cfg,
		database: database,
		locker:   locker,
		runner:   f,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start runs one poll immediately, then one per poll interval until SIGINT or SIGTERM.
func (s *Service) Start() error {
	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.schedule(ctx)
	logger.Info("Shutdown signal received, initiating graceful shutdown")
	return nil
}

// Poll runs a single cycle over window, or over the previous hour when window is nil.
func (s *Service) Poll(ctx context.Context, window *models.Window) (*models.CycleStats, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	if window != nil {
		return s.runner.RunWindow(ctx, *window)
	}
	return s.runner.Run(ctx)
}

// schedule blocks until ctx is done. A failed run is logged and the next tick retries.
func (s *Service) schedule(ctx context.Context) {
	interval := s.config.PollInterval
	if interval <= 0 {
		interval = time.Hour
	}
	logger.Named("scheduler").Info("Starting poll scheduler", zap.Duration("poll_interval", interval))

	s.runCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	_, err := s.Poll(ctx, nil)
	switch {
	case err == nil:
	case errors.Is(err, fetcher.ErrSkipped):
		logger.Named("scheduler").Warn("Poll run skipped", zap.Error(err))
	default:
		logger.Named("scheduler").Error("Poll run failed", zap.Error(err))
	}
}

func (s *Service) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.RunDeadline > 0 {
		return context.WithTimeout(ctx, s.config.RunDeadline)
	}
	return context.WithCancel(ctx)
}

// Close performs cleanup operations
func (s *Service) Close() error {
	logger.Info("Closing service")
	s.cancel()

	var errs []error
	if s.locker != nil {
		if err := s.locker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close run lock: %w", err))
		}
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrServiceShutdown, errors.Join(errs...))
	}
	return nil
}
