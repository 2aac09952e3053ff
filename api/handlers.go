package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gilby125/seven-continents/catalog"
	"github.com/gilby125/seven-continents/planner"
	"github.com/gilby125/seven-continents/worker"
)

// RunRequest is the body of POST /api/v1/runs. Every field is optional and
// overrides the server's search configuration for this run only.
type RunRequest struct {
	planner.Overrides
}

// RunAccepted is returned when a run is queued.
type RunAccepted struct {
	ID     string        `json:"id"`
	Status worker.Status `json:"status"`
}

// CreateRun queues a background search run.
func CreateRun(m *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		sc := req.Apply(m.Base().Config().SearchConfig)
		id, err := m.Submit(sc)
		switch {
		case errors.Is(err, worker.ErrStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.Header("Location", "/api/v1/runs/"+id)
		c.JSON(http.StatusAccepted, RunAccepted{ID: id, Status: worker.StatusQueued})
	}
}

// ListRuns returns the runs this process knows about, without their results.
func ListRuns(m *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs := m.List()
		for i := range runs {
			runs[i].Result = nil
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs, "active": m.Active(), "capacity": m.Capacity()})
	}
}

// GetRun returns one run, including its result once finished.
func GetRun(m *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, ok := lookupRun(c, m)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// GetRunSummary renders a finished run as plain text.
func GetRunSummary(m *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, ok := lookupRun(c, m)
		if !ok {
			return
		}
		if run.Result == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "run has not finished", "status": run.Status})
			return
		}
		c.String(http.StatusOK, planner.Summary(run.Result))
	}
}

// CancelRun stops a queued or running run. The best routes found so far are
// kept as its result.
func CancelRun(m *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := m.Cancel(id); err != nil {
			if errors.Is(err, worker.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id, "message": "cancellation requested"})
	}
}

// GetAirport describes one airport of the filtered data set.
func GetAirport(m *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		stop, err := m.Base().Airport(strings.ToUpper(c.Param("code")))
		if err != nil {
			writeLookupError(c, err)
			return
		}
		c.JSON(http.StatusOK, stop)
	}
}

// GetSegment prices a single leg: /api/v1/segments?from=KLAX&to=KMIA&leg=1.
func GetSegment(m *worker.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to := strings.ToUpper(c.Query("from")), strings.ToUpper(c.Query("to"))
		if from == "" || to == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
			return
		}
		leg := 1
		if raw := c.Query("leg"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "leg must be a positive integer"})
				return
			}
			leg = n
		}

		info, err := m.Base().Segment(from, to, leg)
		if err != nil {
			writeLookupError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func lookupRun(c *gin.Context, m *worker.Manager) (worker.Run, bool) {
	run, err := m.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, worker.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return worker.Run{}, false
	}
	return run, true
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, catalog.ErrUnknownAirport) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
}
