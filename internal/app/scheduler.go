package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OutboxRetrier drains pending attendance sync tasks.
type OutboxRetrier interface {
	RetryPending(ctx context.Context, limit int) (int, error)
}

// Scheduler runs background jobs until Stop is called or its context ends.
type Scheduler struct {
	retrier   OutboxRetrier
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler retries up to batchSize pending sync tasks every interval.
func NewScheduler(retrier OutboxRetrier, interval time.Duration, batchSize int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		retrier:   retrier,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the retry job in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("sync_retry_interval", s.interval),
		zap.Int("sync_batch_size", s.batchSize),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSyncRetryTask(ctx)
	}()
}

// Stop signals the jobs and waits for the running iteration to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runSyncRetryTask(ctx context.Context) {
	// first pass right away picks up whatever the previous run left behind
	s.retrySync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.retrySync(ctx)
		case <-s.stopChan:
			s.logger.Info("Sync retry task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Sync retry task cancelled")
			return
		}
	}
}

func (s *Scheduler) retrySync(ctx context.Context) {
	processed, err := s.retrier.RetryPending(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to retry attendance sync", zap.Error(err))
		return
	}
	if processed > 0 {
		s.logger.Info("Attendance sync retry completed", zap.Int("processed", processed))
	}
}
