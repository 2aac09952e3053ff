package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gilby125/seven-continents/pkg/worker_registry"
)

// Status represents the health status of a component
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Check represents a single health check
type Check struct {
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthReport represents the overall health of the application
type HealthReport struct {
	Status    Status           `json:"status"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Uptime    time.Duration    `json:"uptime"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) Check
}

func newCheck(name string) Check {
	return Check{
		Name:      name,
		Timestamp: time.Now(),
		Details:   make(map[string]string),
	}
}

// Pinger is satisfied by *db.PostgresDB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PostgresChecker checks PostgreSQL connectivity
type PostgresChecker struct {
	DB   Pinger
	Name string
}

func (c *PostgresChecker) Check(ctx context.Context) Check {
	check := newCheck(c.Name)
	err := c.DB.PingContext(ctx)
	check.Duration = time.Since(check.Timestamp)

	if err != nil {
		check.Status = StatusDown
		check.Message = fmt.Sprintf("Database connection failed: %v", err)
		check.Details["error"] = err.Error()
	} else {
		check.Status = StatusUp
		check.Message = "Database connection successful"
		check.Details["response_time"] = check.Duration.String()
	}
	return check
}

// RedisChecker checks Redis connectivity
type RedisChecker struct {
	Client *redis.Client
	Name   string
}

func (c *RedisChecker) Check(ctx context.Context) Check {
	check := newCheck(c.Name)
	pong, err := c.Client.Ping(ctx).Result()
	check.Duration = time.Since(check.Timestamp)

	if err != nil {
		check.Status = StatusDown
		check.Message = fmt.Sprintf("Redis connection failed: %v", err)
		check.Details["error"] = err.Error()
	} else {
		check.Status = StatusUp
		check.Message = "Redis connection successful"
		check.Details["response_time"] = check.Duration.String()
		check.Details["ping_response"] = pong
	}
	return check
}

// RunSlots is satisfied by the background run manager.
type RunSlots interface {
	Active() int
	Capacity() int
}

// PlannerChecker reports run slot usage and, when a registry is set, how
// many planners are publishing heartbeats.
type PlannerChecker struct {
	Runs     RunSlots
	Registry *worker_registry.Registry
	Name     string
}

func (c *PlannerChecker) Check(ctx context.Context) (check Check) {
	check = newCheck(c.Name)
	defer func() { check.Duration = time.Since(check.Timestamp) }()

	if c.Runs == nil {
		check.Status = StatusDown
		check.Message = "Run manager not initialized"
		return check
	}
	check.Status = StatusUp
	check.Message = "Run manager is operational"
	check.Details["active_runs"] = strconv.Itoa(c.Runs.Active())
	check.Details["run_slots"] = strconv.Itoa(c.Runs.Capacity())

	if c.Registry != nil {
		peers, err := c.Registry.ListActive(ctx, time.Minute, 100)
		if err != nil {
			check.Details["registry_error"] = err.Error()
		} else {
			check.Details["live_planners"] = strconv.Itoa(len(peers))
		}
	}
	return check
}

// HealthChecker orchestrates multiple health checks
type HealthChecker struct {
	checkers  []Checker
	version   string
	startTime time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		version:   version,
		startTime: time.Now(),
	}
}

// AddChecker adds a health checker
func (h *HealthChecker) AddChecker(checker Checker) {
	h.checkers = append(h.checkers, checker)
}

// CheckHealth performs all health checks
func (h *HealthChecker) CheckHealth(ctx context.Context) HealthReport {
	return h.run(ctx, h.checkers)
}

// CheckReadiness checks only the backing stores.
func (h *HealthChecker) CheckReadiness(ctx context.Context) HealthReport {
	var ready []Checker
	for _, checker := range h.checkers {
		switch checker.(type) {
		case *PostgresChecker, *RedisChecker:
			ready = append(ready, checker)
		}
	}
	return h.run(ctx, ready)
}

func (h *HealthChecker) run(ctx context.Context, checkers []Checker) HealthReport {
	checks := make(map[string]Check, len(checkers))
	overall := StatusUp
	for _, checker := range checkers {
		check := checker.Check(ctx)
		checks[check.Name] = check
		if check.Status == StatusDown {
			overall = StatusDown
		}
	}
	return HealthReport{
		Status:    overall,
		Version:   h.version,
		Timestamp: time.Now(),
		Checks:    checks,
		Uptime:    time.Since(h.startTime),
	}
}
