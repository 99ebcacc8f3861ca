package session

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	sweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopstore_session_sweeps_total",
			Help: "Expired-session sweeps by result",
		},
		[]string{"result"},
	)
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopstore_sessions_active",
		Help: "Sessions left after the last sweep",
	})
)

// Sweeper periodically removes expired sessions from a Store.
// Thread-safe: All methods are safe for concurrent access.
type Sweeper struct {
	store    Store
	onSweep  func(active int, err error) // Callback after every sweep
	ctx      context.Context             // Internal cancellation
	cancel   context.CancelFunc          // Cancels ctx
	interval time.Duration               // Time between sweeps
	timeout  time.Duration               // Deadline for one sweep
	lastRun  time.Time                   // Start of the last completed sweep
	lastErr  error                       // Error of the last sweep
	mu       sync.RWMutex                // Protects onSweep, lastRun and lastErr
	wg       sync.WaitGroup              // Tracks the Start loop
}

// NewSweeper creates a sweeper that calls store.ClearExpired every interval
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		store:    store,
		interval: interval,
		timeout:  30 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetOnSweep sets a callback invoked after every sweep with the number of
// sessions left and the sweep error, if any
func (s *Sweeper) SetOnSweep(callback func(active int, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSweep = callback
}

// Start sweeps once immediately and then every interval until ctx is canceled
// or Stop is called. It blocks.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	if ctx == nil {
		ctx = s.ctx
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	zap.S().Infow("Session sweeper started", "interval", s.interval)

	s.Sweep(ctx)
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			zap.S().Infow("Session sweeper stopping due to context cancellation")
			return
		case <-s.ctx.Done():
			zap.S().Infow("Session sweeper stopping due to internal cancellation")
			return
		}
	}
}

// Stop cancels the Start loop and waits for it to return
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Sweep runs one ClearExpired pass and returns the number of sessions left
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	active, err := s.store.ClearExpired(ctx)
	n := len(active)
	if err != nil {
		sweepsTotal.WithLabelValues("error").Inc()
		zap.S().Errorw("Failed to clear expired sessions", "error", err)
	} else {
		sweepsTotal.WithLabelValues("ok").Inc()
		activeSessions.Set(float64(n))
		zap.S().Debugw("Cleared expired sessions", "active", n, "took", time.Since(started))
	}

	s.mu.Lock()
	s.lastRun = started
	s.lastErr = err
	callback := s.onSweep
	s.mu.Unlock()

	if callback != nil {
		callback(n, err)
	}
	return n, err
}

// LastRun returns when the last sweep started and how it ended.
// The time is zero if no sweep has run.
func (s *Sweeper) LastRun() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastErr
}
