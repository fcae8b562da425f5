package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/batch-email/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the service.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name     string
	critical bool
	fn       CheckFunc
}

// HealthChecker runs dependency probes for the health endpoints.
type HealthChecker struct {
	checks    []namedCheck
	timeout   time.Duration
	startTime time.Time
}

const healthVersion = "1.0.0"

// NewHealthChecker creates a checker with no probes.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{timeout: 3 * time.Second, startTime: time.Now()}
}

// Add registers a probe. A failing critical probe makes the service
// unhealthy; any other failure only degrades it.
func (hc *HealthChecker) Add(name string, critical bool, fn CheckFunc) *HealthChecker {
	hc.checks = append(hc.checks, namedCheck{name: name, critical: critical, fn: fn})
	return hc
}

// HandleHealth returns the status of every component. It always answers
// 200; the body carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAll(r.Context())
	httputil.JSON(w, http.StatusOK, HealthStatus{
		Status:  hc.overall(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness always returns 200 while the process runs.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]any{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness returns 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAll(r.Context())
	overall := hc.overall(checks)

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":  overall != "unhealthy",
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAll(ctx context.Context) map[string]ComponentCheck {
	out := make(map[string]ComponentCheck, len(hc.checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range hc.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := hc.run(ctx, c.fn)
			mu.Lock()
			out[c.name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func (hc *HealthChecker) run(ctx context.Context, fn CheckFunc) ComponentCheck {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start).Round(time.Microsecond).String()
	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency, Message: err.Error()}
	}
	return ComponentCheck{Status: "up", Latency: latency}
}

func (hc *HealthChecker) overall(checks map[string]ComponentCheck) string {
	status := "healthy"
	for _, c := range hc.checks {
		if checks[c.name].Status != "down" {
			continue
		}
		if c.critical {
			return "unhealthy"
		}
		status = "degraded"
	}
	return status
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
