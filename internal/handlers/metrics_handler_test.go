package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	h := NewHealthHandler(db)

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsHandler_Exposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	h := NewMetricsHandler(db)

	r := gin.New()
	r.GET("/metrics", h.GetMetrics)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, body, "flowdesk_info{")
	assert.Contains(t, body, "flowdesk_uptime_seconds")
	assert.Contains(t, body, "flowdesk_automation_executions_total")
	assert.Contains(t, body, "flowdesk_go_goroutines")
	assert.Contains(t, body, "flowdesk_db_open_connections")
	assert.Contains(t, body, "flowdesk_ratelimit_dropped_total")
}
