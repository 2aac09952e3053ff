package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/seven-continents/config"
)

func authRouter(cfg config.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/runs", RunAuth(cfg), func(c *gin.Context) { c.Status(http.StatusAccepted) })
	return r
}

func TestRunAuth(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, Token: "tok", Username: "admin", Password: "pw"}
	r := authRouter(cfg)

	tests := []struct {
		name  string
		setup func(*http.Request)
		want  int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer tok") }, http.StatusAccepted},
		{"wrong bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"basic", func(req *http.Request) { req.SetBasicAuth("admin", "pw") }, http.StatusAccepted},
		{"wrong basic", func(req *http.Request) { req.SetBasicAuth("admin", "x") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/runs", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRunAuth_RejectionNamesAction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.DELETE("/runs/:id", RunAuth(config.AuthConfig{Enabled: true, Token: "tok"}), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	// Basic credentials are ignored when none are configured.
	req := httptest.NewRequest(http.MethodDelete, "/runs/abc", nil)
	req.SetBasicAuth("", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "cancel", body["action"])
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestRunAuth_Disabled(t *testing.T) {
	r := authRouter(config.AuthConfig{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/runs", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
