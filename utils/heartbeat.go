package utils

import (
	"context"
	"sync"
	"time"
)

// Heartbeat periodically runs a no-op probe in the background and records
// when it last succeeded.
type Heartbeat struct {
	interval time.Duration
	probe    func(ctx context.Context) error
	logger   *Logger

	mu       sync.RWMutex
	lastBeat time.Time
	failures int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeat creates a Heartbeat calling probe every interval.
func NewHeartbeat(interval time.Duration, probe func(ctx context.Context) error, logger *Logger) *Heartbeat {
	return &Heartbeat{interval: interval, probe: probe, logger: logger}
}

// Start launches the background loop. It stops when ctx is cancelled or
// Stop is called.
func (h *Heartbeat) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.beat(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.beat(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for it to exit.
func (h *Heartbeat) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
}

// LastBeat returns the time of the last successful probe.
func (h *Heartbeat) LastBeat() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastBeat
}

// Healthy reports whether a probe succeeded within the last three intervals.
func (h *Heartbeat) Healthy() bool {
	last := h.LastBeat()
	return !last.IsZero() && time.Since(last) <= 3*h.interval
}

func (h *Heartbeat) beat(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	err := h.probe(probeCtx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.failures++
		if ctx.Err() == nil && h.logger != nil {
			h.logger.Warn("[heartbeat] Probe failed (%d in a row): %v", h.failures, err)
		}
		return
	}
	h.failures = 0
	h.lastBeat = time.Now()
}
