// Package health periodically probes the service's external dependencies
// and keeps a snapshot of their state for the health endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Pinger is a named dependency that can be probed.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// Dependency states.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
)

// DependencyStatus is the last known state of one probed dependency.
type DependencyStatus struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic dependency probes. A dependency is degraded after
// FailThreshold consecutive failures and healthy again after one success.
type Checker struct {
	deps      []Pinger
	mu        sync.Mutex
	failures  map[string]int
	statuses  map[string]DependencyStatus
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a new Checker.
func New(deps []Pinger, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		deps:     deps,
		failures: make(map[string]int),
		statuses: make(map[string]DependencyStatus),
		cfg:      cfg,
		logger:   logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the probe loop until stop is closed. Closing rather than
// sending lets every goroutine watching the channel observe shutdown.
func (c *Checker) Start(stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckInterval-time.Second)
			c.CheckAll(ctx)
			cancel()
		case <-stop:
			return
		}
	}
}

// CheckAll probes every dependency once.
func (c *Checker) CheckAll(ctx context.Context) {
	for _, dep := range c.deps {
		probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		err := dep.Ping(probeCtx)
		cancel()
		c.record(dep.Name(), err)
	}
}

func (c *Checker) record(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := DependencyStatus{Name: name, State: StateHealthy, CheckedAt: time.Now().UTC()}
	if err == nil {
		c.failures[name] = 0
	} else {
		c.failures[name]++
		status.LastError = err.Error()
		if c.failures[name] >= c.cfg.FailThreshold {
			status.State = StateDegraded
			c.logger.Warn("dependency degraded",
				zap.String("dependency", name),
				zap.Int("consecutive_failures", c.failures[name]),
				zap.Error(err))
		} else if prev, ok := c.statuses[name]; ok {
			// Below the threshold the previous state stands.
			status.State = prev.State
		}
	}
	c.statuses[name] = status
	if c.onMetrics != nil {
		c.onMetrics(err == nil)
	}
}

// Snapshot returns the last known status of every dependency and whether
// all of them are healthy.
func (c *Checker) Snapshot() (map[string]DependencyStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]DependencyStatus, len(c.statuses))
	allHealthy := true
	for name, status := range c.statuses {
		out[name] = status
		if status.State != StateHealthy {
			allHealthy = false
		}
	}
	return out, allHealthy
}
