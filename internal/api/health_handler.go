package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/conference-hub/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime string                    `json:"uptime"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Probe pings one dependency.
type Probe struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Slow     time.Duration
	Ping     func(ctx context.Context) error
}

// HealthChecker reports the state of the server's dependencies.
type HealthChecker struct {
	probes    []Probe
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker over the given probes.
func NewHealthChecker(probes ...Probe) *HealthChecker {
	return &HealthChecker{probes: probes, startTime: time.Now()}
}

// HandleHealth always answers 200; the body carries the status.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status: hc.overall(checks),
		Uptime: time.Since(hc.startTime).Round(time.Second).String(),
		Checks: checks,
	})
}

// HandleReadiness answers 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
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

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, len(hc.probes))
	for _, p := range hc.probes {
		go func(p Probe) { ch <- result{p.Name, check(ctx, p)} }(p)
	}
	checks := make(map[string]ComponentCheck, len(hc.probes))
	for range hc.probes {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

func check(ctx context.Context, p Probe) ComponentCheck {
	if p.Ping == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(pingCtx)
	latency := time.Since(start)
	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if p.Slow > 0 && latency > p.Slow {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

func (hc *HealthChecker) overall(checks map[string]ComponentCheck) string {
	status := "healthy"
	for _, p := range hc.probes {
		switch checks[p.Name].Status {
		case "down":
			if p.Critical {
				return "unhealthy"
			}
			status = "degraded"
		case "degraded":
			status = "degraded"
		}
	}
	return status
}
