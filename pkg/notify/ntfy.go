package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gilby125/seven-continents/planner"
)

// AlertType represents different types of alerts
type AlertType string

const (
	AlertTypeRunCompleted AlertType = "run_completed"
	AlertTypeRunCancelled AlertType = "run_cancelled"
	AlertTypeRunFailed    AlertType = "run_failed"
)

// Priority levels for NTFY
type Priority int

const (
	PriorityMin     Priority = 1
	PriorityLow     Priority = 2
	PriorityDefault Priority = 3
	PriorityHigh    Priority = 4
	PriorityUrgent  Priority = 5
)

// NTFYConfig holds configuration for NTFY notifications
type NTFYConfig struct {
	ServerURL string
	Topic     string
	Username  string // Optional basic auth
	Password  string // Optional basic auth
	Enabled   bool
	// MinGap is the minimum time between two alerts of the same type.
	MinGap time.Duration
}

// NTFYClient sends run notifications to an ntfy server.
type NTFYClient struct {
	config     NTFYConfig
	httpClient *http.Client
	mu         sync.Mutex

	// Rate limiting to prevent notification spam
	lastAlerts map[AlertType]time.Time
}

// NTFYMessage represents a message to send
type NTFYMessage struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// NewNTFYClient creates a new NTFY client
func NewNTFYClient(config NTFYConfig) *NTFYClient {
	if config.ServerURL == "" {
		config.ServerURL = "https://ntfy.sh"
	}
	return &NTFYClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		lastAlerts: make(map[AlertType]time.Time),
	}
}

// IsEnabled returns whether notifications are enabled
func (c *NTFYClient) IsEnabled() bool {
	return c.config.Enabled && c.config.Topic != ""
}

// SendAlert sends a notification unless one of the same type went out
// within MinGap.
func (c *NTFYClient) SendAlert(ctx context.Context, alertType AlertType, title, message string, priority Priority) error {
	if !c.IsEnabled() {
		return nil
	}

	c.mu.Lock()
	if lastTime, ok := c.lastAlerts[alertType]; ok && time.Since(lastTime) < c.config.MinGap {
		c.mu.Unlock()
		return nil
	}
	c.lastAlerts[alertType] = time.Now()
	c.mu.Unlock()

	return c.send(ctx, NTFYMessage{
		Topic:    c.config.Topic,
		Title:    title,
		Message:  message,
		Priority: int(priority),
		Tags:     tagsForAlertType(alertType),
	})
}

// AlertRunFinished reports the outcome of a planning run. Completed and
// cancelled runs carry the best route found.
func (c *NTFYClient) AlertRunFinished(ctx context.Context, id, status string, res *planner.Result, errMsg string) error {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}

	switch {
	case errMsg != "":
		return c.SendAlert(ctx, AlertTypeRunFailed,
			fmt.Sprintf("Run %s failed", short), errMsg, PriorityHigh)
	case status == "cancelled":
		return c.SendAlert(ctx, AlertTypeRunCancelled,
			fmt.Sprintf("Run %s cancelled", short), bestLine(res), PriorityLow)
	default:
		return c.SendAlert(ctx, AlertTypeRunCompleted,
			fmt.Sprintf("Run %s complete", short), bestLine(res), PriorityDefault)
	}
}

func bestLine(res *planner.Result) string {
	if res == nil {
		return "No routes found"
	}
	best, ok := res.Best()
	if !ok {
		return fmt.Sprintf("No routes found in %d searches", res.SearchCount)
	}
	return fmt.Sprintf("%.2f hrs: %s (%d searches)", best.TotalDurationHrs, strings.Join(best.Codes, " > "), res.SearchCount)
}

func (c *NTFYClient) send(ctx context.Context, msg NTFYMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal NTFY message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create NTFY request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Add basic auth if configured
	if c.config.Username != "" && c.config.Password != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send NTFY notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("NTFY returned error status: %d", resp.StatusCode)
	}
	return nil
}

func tagsForAlertType(alertType AlertType) []string {
	switch alertType {
	case AlertTypeRunCompleted:
		return []string{"white_check_mark", "airplane"}
	case AlertTypeRunCancelled:
		return []string{"stop_sign", "airplane"}
	case AlertTypeRunFailed:
		return []string{"rotating_light", "x"}
	default:
		return []string{"information_source"}
	}
}
