package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/seven-continents/pkg/worker_registry"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakeSlots struct{ active, capacity int }

func (f fakeSlots) Active() int   { return f.active }
func (f fakeSlots) Capacity() int { return f.capacity }

func TestHealthChecker_AllUp(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	reg := worker_registry.New(rdb, "test")
	require.NoError(t, reg.Publish(context.Background(), worker_registry.PlannerHeartbeat{ID: "p1"}, time.Minute))

	h := NewHealthChecker("v1")
	h.AddChecker(&PostgresChecker{DB: fakePinger{}, Name: "postgres"})
	h.AddChecker(&RedisChecker{Client: rdb, Name: "redis"})
	h.AddChecker(&PlannerChecker{Runs: fakeSlots{1, 2}, Registry: reg, Name: "planner"})

	report := h.CheckHealth(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Equal(t, "v1", report.Version)
	require.Len(t, report.Checks, 3)
	assert.Equal(t, "PONG", report.Checks["redis"].Details["ping_response"])
	assert.Equal(t, "1", report.Checks["planner"].Details["active_runs"])
	assert.Equal(t, "2", report.Checks["planner"].Details["run_slots"])
	assert.Equal(t, "1", report.Checks["planner"].Details["live_planners"])
}

func TestHealthChecker_Down(t *testing.T) {
	h := NewHealthChecker("v1")
	h.AddChecker(&PostgresChecker{DB: fakePinger{err: errors.New("refused")}, Name: "postgres"})
	h.AddChecker(&PlannerChecker{Name: "planner"})

	report := h.CheckHealth(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "refused", report.Checks["postgres"].Details["error"])
	assert.Equal(t, StatusDown, report.Checks["planner"].Status)
}

func TestHealthChecker_ReadinessSkipsPlanner(t *testing.T) {
	h := NewHealthChecker("v1")
	h.AddChecker(&PostgresChecker{DB: fakePinger{}, Name: "postgres"})
	h.AddChecker(&PlannerChecker{Name: "planner"})

	report := h.CheckReadiness(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Len(t, report.Checks, 1)
}
