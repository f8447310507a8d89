package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	appmetrics "flowdesk/internal/metrics"
	"flowdesk/internal/version"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MetricsHandler 指标处理器
type MetricsHandler struct {
	startedAt time.Time
	db        *gorm.DB
}

// NewMetricsHandler 创建指标处理器
func NewMetricsHandler(db *gorm.DB) *MetricsHandler {
	return &MetricsHandler{startedAt: time.Now(), db: db}
}

// GetMetrics 获取系统指标（Prometheus 格式）
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain")

	uptime := time.Since(h.startedAt).Seconds()

	b := &strings.Builder{}
	fmt.Fprintf(b, "# HELP flowdesk_info Information about the FlowDesk instance\n")
	fmt.Fprintf(b, "# TYPE flowdesk_info gauge\n")
	v := strings.ReplaceAll(version.Version, "\"", "\\\"")
	cmt := strings.ReplaceAll(version.Commit, "\"", "\\\"")
	bt := strings.ReplaceAll(version.BuildTime, "\"", "\\\"")
	fmt.Fprintf(b, "flowdesk_info{version=\"%s\",commit=\"%s\",build_time=\"%s\"} 1\n\n", v, cmt, bt)

	fmt.Fprintf(b, "# HELP flowdesk_uptime_seconds Total uptime of the FlowDesk instance in seconds\n")
	fmt.Fprintf(b, "# TYPE flowdesk_uptime_seconds counter\n")
	fmt.Fprintf(b, "flowdesk_uptime_seconds %.0f\n\n", uptime)

	// 自动化执行计数（按执行状态）
	totalExec, byStatus := appmetrics.AutomationSnapshot()
	fmt.Fprintf(b, "# HELP flowdesk_automation_executions_total Total automation rule executions\n")
	fmt.Fprintf(b, "# TYPE flowdesk_automation_executions_total counter\n")
	if len(byStatus) == 0 {
		fmt.Fprintf(b, "flowdesk_automation_executions_total{status=\"success\"} 0\n")
	} else {
		for s, n := range byStatus {
			fmt.Fprintf(b, "flowdesk_automation_executions_total{status=\"%s\"} %d\n", s, n)
		}
	}
	fmt.Fprintf(b, "flowdesk_automation_executions_all_total %d\n\n", totalExec)

	// Go runtime minimal metrics
	fmt.Fprintf(b, "# HELP flowdesk_go_goroutines Number of goroutines\n")
	fmt.Fprintf(b, "# TYPE flowdesk_go_goroutines gauge\n")
	fmt.Fprintf(b, "flowdesk_go_goroutines %d\n\n", runtime.NumGoroutine())

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	fmt.Fprintf(b, "# HELP flowdesk_go_mem_alloc_bytes Bytes of allocated heap objects\n")
	fmt.Fprintf(b, "# TYPE flowdesk_go_mem_alloc_bytes gauge\n")
	fmt.Fprintf(b, "flowdesk_go_mem_alloc_bytes %d\n", ms.Alloc)

	// Database/sql stats (if available)
	if h.db != nil {
		var sqlDB *sql.DB
		if s, err := h.db.DB(); err == nil {
			sqlDB = s
		}
		if sqlDB != nil {
			ds := sqlDB.Stats()
			fmt.Fprintf(b, "\n# HELP flowdesk_db_open_connections The number of established connections both in use and idle\n")
			fmt.Fprintf(b, "# TYPE flowdesk_db_open_connections gauge\n")
			fmt.Fprintf(b, "flowdesk_db_open_connections %d\n", ds.OpenConnections)

			fmt.Fprintf(b, "# HELP flowdesk_db_inuse_connections The number of connections currently in use\n")
			fmt.Fprintf(b, "# TYPE flowdesk_db_inuse_connections gauge\n")
			fmt.Fprintf(b, "flowdesk_db_inuse_connections %d\n", ds.InUse)

			fmt.Fprintf(b, "# HELP flowdesk_db_wait_count The total number of connections waited for\n")
			fmt.Fprintf(b, "# TYPE flowdesk_db_wait_count counter\n")
			fmt.Fprintf(b, "flowdesk_db_wait_count %d\n", ds.WaitCount)
		}
	}

	// Rate limit drops (by prefix)
	totalDrops, byPrefix := appmetrics.RateLimitSnapshot()
	fmt.Fprintf(b, "\n# HELP flowdesk_ratelimit_dropped_total Total HTTP 429 responses due to rate limiting\n")
	fmt.Fprintf(b, "# TYPE flowdesk_ratelimit_dropped_total counter\n")
	if len(byPrefix) == 0 {
		fmt.Fprintf(b, "flowdesk_ratelimit_dropped_total{prefix=\"global\"} 0\n")
	} else {
		for p, n := range byPrefix {
			fmt.Fprintf(b, "flowdesk_ratelimit_dropped_total{prefix=\"%s\"} %d\n", p, n)
		}
	}
	fmt.Fprintf(b, "flowdesk_ratelimit_dropped_all_total %d\n", totalDrops)

	c.String(http.StatusOK, b.String())
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version.Version,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
