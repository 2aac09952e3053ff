package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gilby125/seven-continents/worker"
)

type sseMessage struct {
	event string
	data  []byte
}

// runEvent is the payload of a progress or done event.
type runEvent struct {
	ID          string        `json:"id"`
	Status      worker.Status `json:"status"`
	Searches    int64         `json:"searches"`
	ValidRoutes int64         `json:"valid_routes"`
	Rate        float64       `json:"searches_per_sec"`
	BestHrs     float64       `json:"best_duration_hrs,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func newRunEvent(run worker.Run) runEvent {
	return runEvent{
		ID:          run.ID,
		Status:      run.Status,
		Searches:    run.Progress.Searches,
		ValidRoutes: run.Progress.ValidRoutes,
		Rate:        run.Progress.Rate,
		BestHrs:     run.Progress.BestHrs,
		Error:       run.Error,
	}
}

// StreamRunEvents streams a run's progress as server-sent events every
// interval until the run finishes or the client goes away. The last event is
// "done".
func StreamRunEvents(m *worker.Manager, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, ok := lookupRun(c, m)
		if !ok {
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ctx := c.Request.Context()

		for {
			event := "progress"
			if run.Status.Done() {
				event = "done"
			}
			data, err := json.Marshal(newRunEvent(run))
			if err != nil {
				return
			}
			if err := writeSSEMessage(c.Writer, sseMessage{event: event, data: data}); err != nil {
				return
			}
			c.Writer.Flush()
			if run.Status.Done() {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if run, err = m.Get(ctx, run.ID); err != nil {
				return
			}
		}
	}
}

func writeSSEMessage(w io.Writer, msg sseMessage) error {
	if msg.event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", msg.event); err != nil {
			return err
		}
	}

	// SSE allows multiple `data:` lines; split to be safe.
	data := strings.TrimRight(string(msg.data), "\n")
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}
