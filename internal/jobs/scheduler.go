package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trafficlens/internal/channels"
)

// Scheduler runs the background work of the dashboard: the channel rules
// watcher and the periodic retention cleanup.
type Scheduler struct {
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	watcher *channels.Watcher
	cleanup *CleanupJob

	cleanupInterval time.Duration

	mu        sync.Mutex
	isRunning bool
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler. Either job may be nil.
func NewScheduler(watcher *channels.Watcher, cleanup *CleanupJob, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		watcher:         watcher,
		cleanup:         cleanup,
		cleanupInterval: 24 * time.Hour,
	}
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.isRunning = true

	if s.watcher != nil {
		s.watcher.Start()
		s.logger.Info("Channel rules watcher started")
	}

	if s.cleanup != nil && s.cleanup.Enabled() {
		s.startCleanupJob()
	}

	return nil
}

func (s *Scheduler) startCleanupJob() {
	s.logger.Info("Starting cleanup job", slog.Duration("interval", s.cleanupInterval))
	ticker := time.NewTicker(s.cleanupInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		s.runSafely("cleanup", s.cleanup.Run)
		for {
			select {
			case <-ticker.C:
				s.runSafely("cleanup", s.cleanup.Run)
			case <-s.ctx.Done():
				s.logger.Info("Cleanup job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) runSafely(jobName string, jobFunc func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	s.logger.Info("Stopping background jobs...")

	s.cancel()
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
