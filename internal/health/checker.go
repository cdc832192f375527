package health

import (
	"context"
	"fmt"
	"net/http"
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

// Probe checks one dependency. A nil error means the dependency answered.
type Probe func(ctx context.Context) error

// Check pairs a dependency name with its probe.
type Check struct {
	Name  string
	Probe Probe
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(name string, up bool)

// Status summarises the most recent probe round. Ready turns false once a
// dependency has failed FailThreshold consecutive rounds, so a single missed
// probe does not flip readiness.
type Status struct {
	Ready     bool              `json:"ready"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}

// Checker runs periodic probes of the auditor's dependencies and caches the
// latest round for the readiness endpoint.
type Checker struct {
	checks    []Check
	cfg       Config
	logger    *zap.Logger
	onMetrics MetricsRecordFunc

	mu         sync.Mutex
	failCounts map[string]int
	last       Status
}

// New creates a Checker over the given dependency checks.
func New(cfg Config, logger *zap.Logger, checks ...Check) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Checker{
		checks:     checks,
		cfg:        cfg,
		logger:     logger,
		failCounts: make(map[string]int),
		last:       Status{Ready: true, Checks: map[string]string{}},
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start probes once immediately, then on every tick until quit is signalled.
func (c *Checker) Start(quit <-chan struct{}) {
	c.RunOnce(context.Background())

	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RunOnce(context.Background())
		case <-quit:
			return
		}
	}
}

// RunOnce probes every dependency once and returns the updated status.
func (c *Checker) RunOnce(ctx context.Context) Status {
	results := make(map[string]string, len(c.checks))
	ready := true

	for _, check := range c.checks {
		probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		err := check.Probe(probeCtx)
		cancel()

		up := err == nil
		if c.onMetrics != nil {
			c.onMetrics(check.Name, up)
		}

		c.mu.Lock()
		prev := c.failCounts[check.Name]
		if up {
			c.failCounts[check.Name] = 0
		} else {
			c.failCounts[check.Name]++
		}
		count := c.failCounts[check.Name]
		c.mu.Unlock()

		if up {
			results[check.Name] = "ok"
			if prev >= c.cfg.FailThreshold {
				c.logger.Info("health: dependency recovered", zap.String("dependency", check.Name))
			}
			continue
		}

		results[check.Name] = err.Error()
		if count == c.cfg.FailThreshold {
			c.logger.Warn("health: dependency degraded",
				zap.String("dependency", check.Name),
				zap.Int("fail_count", count),
			)
		}
		if count >= c.cfg.FailThreshold {
			ready = false
		}
	}

	status := Status{Ready: ready, Checks: results, CheckedAt: time.Now().UTC()}
	c.mu.Lock()
	c.last = status
	c.mu.Unlock()
	return status
}

// Status returns the cached result of the latest probe round.
func (c *Checker) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// HTTPProbe reports an HTTP server as up when it answers at all. It tries
// HEAD first and falls back to GET for servers that reject HEAD. Any status
// below 500 counts as up: the probe asserts the server is reachable and
// serving, not that a particular path exists.
func HTTPProbe(client *http.Client, url string) Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		var lastErr error
		for _, method := range []string{http.MethodHead, http.MethodGet} {
			req, err := http.NewRequestWithContext(ctx, method, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				lastErr = err
				continue
			}
			resp.Body.Close()
			if resp.StatusCode < http.StatusInternalServerError {
				return nil
			}
			lastErr = fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
		}
		return lastErr
	}
}
