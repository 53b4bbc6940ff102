package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/metrics"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthMonitor pings storage periodically and exposes the last result.
type HealthMonitor struct {
	pinger   Pinger
	interval time.Duration
	logger   *zap.Logger

	healthy  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHealthMonitor pings storage every interval once started.
func NewHealthMonitor(pinger Pinger, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pinger:   pinger,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start checks once right away, then keeps checking until Stop or ctx is done.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.Check(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				h.Check(ctx)
			case <-h.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the check loop and waits for it. Safe to call twice.
func (h *HealthMonitor) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
	h.wg.Wait()
}

// Check pings once and records the outcome. Losing storage is an error, staying down a warning.
func (h *HealthMonitor) Check(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err := h.pinger.Ping(pingCtx)
	up := err == nil
	was := h.healthy.Swap(up)
	metrics.SetStorageUp(up)

	switch {
	case !up && was:
		h.logger.Error("Storage became unavailable", zap.Error(err))
	case !up:
		h.logger.Warn("Storage is unavailable", zap.Error(err))
	case !was:
		h.logger.Info("Storage is available")
	}
	return up
}

// Healthy reports the outcome of the last check.
func (h *HealthMonitor) Healthy() bool {
	return h.healthy.Load()
}
