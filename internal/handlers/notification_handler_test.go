package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"flowdesk/internal/models"
	"flowdesk/internal/services"
)

func TestNotificationHandler_ListAndMarkRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	svc := services.NewNotificationService(db, logrus.New())

	assert.NoError(t, svc.Notify(testCtx(), 1, "task due soon", "reminder"))
	assert.NoError(t, svc.Notify(testCtx(), 2, "other user", "info"))

	r := gin.New()
	api := r.Group("/api")
	api.Use(testIdentity(1))
	RegisterNotificationRoutes(api, NewNotificationHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var notes []models.Notification
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &notes))
	assert.Len(t, notes, 1)
	assert.Equal(t, "task due soon", notes[0].Message)
	assert.False(t, notes[0].Read)

	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", notes[0].ID), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Notification
	assert.NoError(t, db.First(&reloaded, notes[0].ID).Error)
	assert.True(t, reloaded.Read)
}
