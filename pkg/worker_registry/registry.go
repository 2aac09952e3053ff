package worker_registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PlannerHeartbeat is the liveness record a serve-mode planner publishes.
type PlannerHeartbeat struct {
	ID            string    `json:"id"`
	Hostname      string    `json:"hostname"`
	Status        string    `json:"status"`
	ActiveRuns    int       `json:"active_runs"`
	CompletedRuns int       `json:"completed_runs"`
	MaxRuns       int       `json:"max_runs"`
	Airports      int       `json:"airports"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Version       string    `json:"version"`
}

type Registry struct {
	redisClient *redis.Client
	namespace   string
}

func New(redisClient *redis.Client, namespace string) *Registry {
	return &Registry{
		redisClient: redisClient,
		namespace:   namespace,
	}
}

func (r *Registry) heartbeatsKey() string {
	return fmt.Sprintf("planner_registry:%s:heartbeats", r.namespace)
}

func (r *Registry) metaKey(id string) string {
	return fmt.Sprintf("planner_registry:%s:planner:%s", r.namespace, id)
}

// Publish records hb and keeps its metadata alive for three ttls. Entries
// older than ten ttls are pruned from the index.
func (r *Registry) Publish(ctx context.Context, hb PlannerHeartbeat, ttl time.Duration) error {
	if r == nil || r.redisClient == nil {
		return nil
	}
	if hb.ID == "" {
		return errors.New("planner id is required")
	}
	if ttl <= 0 {
		ttl = 45 * time.Second
	}

	now := time.Now().UTC()
	if hb.StartedAt.IsZero() {
		hb.StartedAt = now
	}
	if hb.LastHeartbeat.IsZero() {
		hb.LastHeartbeat = now
	}

	pipe := r.redisClient.Pipeline()
	pipe.ZAdd(ctx, r.heartbeatsKey(), redis.Z{
		Score:  float64(hb.LastHeartbeat.Unix()),
		Member: hb.ID,
	})
	pipe.HSet(
		ctx,
		r.metaKey(hb.ID),
		"id", hb.ID,
		"hostname", hb.Hostname,
		"status", hb.Status,
		"active_runs", strconv.Itoa(hb.ActiveRuns),
		"completed_runs", strconv.Itoa(hb.CompletedRuns),
		"max_runs", strconv.Itoa(hb.MaxRuns),
		"airports", strconv.Itoa(hb.Airports),
		"started_at", strconv.FormatInt(hb.StartedAt.Unix(), 10),
		"last_heartbeat", strconv.FormatInt(hb.LastHeartbeat.Unix(), 10),
		"version", hb.Version,
	)
	pipe.Expire(ctx, r.metaKey(hb.ID), ttl*3)
	pipe.ZRemRangeByScore(ctx, r.heartbeatsKey(), "0", strconv.FormatInt(now.Add(-ttl*10).Unix(), 10))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Remove drops a planner from the registry, typically on shutdown.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if r == nil || r.redisClient == nil {
		return nil
	}
	pipe := r.redisClient.Pipeline()
	pipe.ZRem(ctx, r.heartbeatsKey(), id)
	pipe.Del(ctx, r.metaKey(id))
	_, err := pipe.Exec(ctx)
	return err
}

// ListActive returns planners that published within the window, newest first.
func (r *Registry) ListActive(ctx context.Context, within time.Duration, limit int64) ([]PlannerHeartbeat, error) {
	if r == nil || r.redisClient == nil {
		return []PlannerHeartbeat{}, nil
	}
	if within <= 0 {
		within = 45 * time.Second
	}
	if limit <= 0 {
		limit = 100
	}

	now := time.Now().UTC()
	zs, err := r.redisClient.ZRevRangeByScoreWithScores(ctx, r.heartbeatsKey(), &redis.ZRangeBy{
		Max:   strconv.FormatInt(now.Unix(), 10),
		Min:   strconv.FormatInt(now.Add(-within).Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(zs) == 0 {
		return []PlannerHeartbeat{}, nil
	}

	type metaCmd struct {
		id  string
		cmd *redis.MapStringStringCmd
		lh  time.Time
	}

	pipe := r.redisClient.Pipeline()
	cmds := make([]metaCmd, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok || id == "" {
			continue
		}
		var lh time.Time
		if !math.IsNaN(z.Score) && !math.IsInf(z.Score, 0) {
			lh = time.Unix(int64(z.Score), 0).UTC()
		}
		cmds = append(cmds, metaCmd{id: id, cmd: pipe.HGetAll(ctx, r.metaKey(id)), lh: lh})
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	atoi := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}
	unix := func(s string) (time.Time, bool) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(v, 0).UTC(), true
	}

	out := make([]PlannerHeartbeat, 0, len(cmds))
	for _, mc := range cmds {
		m := mc.cmd.Val()
		hb := PlannerHeartbeat{
			ID:            mc.id,
			Hostname:      m["hostname"],
			Status:        m["status"],
			Version:       m["version"],
			ActiveRuns:    atoi(m["active_runs"]),
			CompletedRuns: atoi(m["completed_runs"]),
			MaxRuns:       atoi(m["max_runs"]),
			Airports:      atoi(m["airports"]),
		}
		hb.StartedAt, _ = unix(m["started_at"])
		if t, ok := unix(m["last_heartbeat"]); ok {
			hb.LastHeartbeat = t
		} else {
			// The meta hash may have expired while the index entry is still fresh.
			hb.LastHeartbeat = mc.lh
		}
		if hb.Status == "" {
			hb.Status = "active"
		}
		out = append(out, hb)
	}
	return out, nil
}
