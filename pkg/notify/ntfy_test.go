package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/seven-continents/planner"
)

type recorder struct {
	mu       sync.Mutex
	messages []NTFYMessage
	auth     []string
}

func (r *recorder) server(t *testing.T, status int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var msg NTFYMessage
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		user, _, _ := req.BasicAuth()
		r.mu.Lock()
		r.messages = append(r.messages, msg)
		r.auth = append(r.auth, user)
		r.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAlertRunFinished(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t, http.StatusOK)
	c := NewNTFYClient(NTFYConfig{ServerURL: srv.URL, Topic: "runs", Enabled: true, Username: "u", Password: "p"})

	res := &planner.Result{
		SearchCount: 500,
		Routes:      []planner.RouteResult{{Codes: []string{"SCGC", "SCEL", "KMIA"}, TotalDurationHrs: 12.5}},
	}
	require.NoError(t, c.AlertRunFinished(context.Background(), "0123456789abcdef", "completed", res, ""))
	require.NoError(t, c.AlertRunFinished(context.Background(), "0123456789abcdef", "failed", nil, "boom"))
	require.NoError(t, c.AlertRunFinished(context.Background(), "xyz", "cancelled", &planner.Result{SearchCount: 3}, ""))

	require.Len(t, rec.messages, 3)
	assert.Equal(t, "runs", rec.messages[0].Topic)
	assert.Equal(t, "Run 01234567 complete", rec.messages[0].Title)
	assert.Equal(t, "12.50 hrs: SCGC > SCEL > KMIA (500 searches)", rec.messages[0].Message)
	assert.Equal(t, int(PriorityDefault), rec.messages[0].Priority)
	assert.Equal(t, "u", rec.auth[0])

	assert.Equal(t, "Run 01234567 failed", rec.messages[1].Title)
	assert.Equal(t, "boom", rec.messages[1].Message)
	assert.Equal(t, []string{"rotating_light", "x"}, rec.messages[1].Tags)

	assert.Equal(t, "Run xyz cancelled", rec.messages[2].Title)
	assert.Equal(t, "No routes found in 3 searches", rec.messages[2].Message)
}

func TestSendAlert_RateLimited(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t, http.StatusOK)
	c := NewNTFYClient(NTFYConfig{ServerURL: srv.URL, Topic: "runs", Enabled: true, MinGap: time.Hour})

	ctx := context.Background()
	require.NoError(t, c.SendAlert(ctx, AlertTypeRunCompleted, "a", "a", PriorityLow))
	require.NoError(t, c.SendAlert(ctx, AlertTypeRunCompleted, "b", "b", PriorityLow))
	require.NoError(t, c.SendAlert(ctx, AlertTypeRunFailed, "c", "c", PriorityLow))

	require.Len(t, rec.messages, 2)
	assert.Equal(t, "a", rec.messages[0].Title)
	assert.Equal(t, "c", rec.messages[1].Title)
}

func TestSendAlert_Disabled(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t, http.StatusOK)

	c := NewNTFYClient(NTFYConfig{ServerURL: srv.URL, Topic: "runs"})
	assert.False(t, c.IsEnabled())
	require.NoError(t, c.SendAlert(context.Background(), AlertTypeRunCompleted, "a", "a", PriorityLow))
	assert.Empty(t, rec.messages)
}

func TestSendAlert_ErrorStatus(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t, http.StatusForbidden)
	c := NewNTFYClient(NTFYConfig{ServerURL: srv.URL, Topic: "runs", Enabled: true})

	err := c.SendAlert(context.Background(), AlertTypeRunFailed, "a", "a", PriorityHigh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
