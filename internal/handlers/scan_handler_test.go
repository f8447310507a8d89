package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"flowdesk/internal/models"
	"flowdesk/internal/services"
)

func TestScanHandler_RunScan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	automation := services.NewAutomationService(db, logger)
	scan := services.NewScanService(db, logger, automation)

	due := time.Now().AddDate(0, 0, -3)
	task := &models.Task{UserID: 1, Title: "Late delivery", Status: "pending", DueDate: &due}
	assert.NoError(t, db.Create(task).Error)
	_, err := automation.CreateRule(testCtx(), 1, &services.AutomationRuleRequest{
		Name:    "escalate",
		Trigger: "task_overdue",
		Actions: []services.RuleAction{{Type: "update_priority", Parameters: map[string]interface{}{"priority": "urgent"}}},
	})
	assert.NoError(t, err)

	r := gin.New()
	api := r.Group("/api")
	api.Use(testIdentity(1))
	RegisterScanRoutes(api, NewScanHandler(scan))

	req := httptest.NewRequest(http.MethodPost, "/api/automations/scan", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var summary services.ScanSummary
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.UsersProcessed)
	assert.Equal(t, 1, summary.AutomationsExecuted)

	var updated models.Task
	assert.NoError(t, db.First(&updated, task.ID).Error)
	assert.Equal(t, "urgent", updated.Priority)
}

func TestScanHandler_ScopeAllRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	automation := services.NewAutomationService(db, logger)
	scan := services.NewScanService(db, logger, automation)

	r := gin.New()
	api := r.Group("/api")
	api.Use(testIdentity(1))
	RegisterScanRoutes(api, NewScanHandler(scan))

	req := httptest.NewRequest(http.MethodPost, "/api/automations/scan?scope=all", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestScanHandler_ScopeAllAsAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	automation := services.NewAutomationService(db, logger)
	scan := services.NewScanService(db, logger, automation)

	// 两个用户各有一条过期任务和匹配规则
	due := time.Now().AddDate(0, 0, -2)
	for _, uid := range []uint{1, 2} {
		assert.NoError(t, db.Create(&models.Task{UserID: uid, Title: "late", Status: "pending", DueDate: &due}).Error)
		_, err := automation.CreateRule(testCtx(), uid, &services.AutomationRuleRequest{
			Name:    "escalate",
			Trigger: "task_overdue",
			Actions: []services.RuleAction{{Type: "update_priority", Parameters: map[string]interface{}{"priority": "high"}}},
		})
		assert.NoError(t, err)
	}

	r := gin.New()
	api := r.Group("/api")
	api.Use(testIdentityWithRole(1, "admin"))
	RegisterScanRoutes(api, NewScanHandler(scan))

	req := httptest.NewRequest(http.MethodPost, "/api/automations/scan?scope=all", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var summary services.ScanSummary
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.UsersProcessed)
	assert.Equal(t, 2, summary.AutomationsExecuted)
}
