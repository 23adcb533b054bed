package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/config"
)

const metricsInterval = 7 * time.Second

// LiveSessionCounter reports how many attempts are held in memory.
type LiveSessionCounter interface {
	LiveCount() (inProgress, finished int)
}

// SystemHandler streams Go runtime and attempt pipeline metrics via SSE.
type SystemHandler struct {
	rdb       *redis.Client
	sessions  LiveSessionCounter
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(rdb *redis.Client, sessions LiveSessionCounter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		sessions:  sessions,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	// Attempt pipeline
	SessionsInProgress int   `json:"sessions_in_progress"`
	SessionsFinished   int   `json:"sessions_finished"`
	QueuePending       int64 `json:"queue_pending_attempts"`
	QueueRetrying      int64 `json:"queue_retrying_attempts"`
	QueueDead          int64 `json:"queue_dead_attempts"`
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Admin connected to system metrics SSE")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick
	h.writeMetrics(c)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(c)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context) {
	data, err := json.Marshal(h.collect(c.Request.Context()))
	if err != nil {
		return
	}
	writeSSEData(c, data)
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	m := systemMetrics{
		Timestamp: time.Now().Unix(),
		Uptime:    formatDuration(time.Since(h.startTime)),
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.HeapSys = ms.HeapSys
	m.StackInuse = ms.StackInuse
	m.NumGC = ms.NumGC

	if h.sessions != nil {
		m.SessionsInProgress, m.SessionsFinished = h.sessions.LiveCount()
	}

	// Pipelined LLEN / ZCARD
	pipe := h.rdb.Pipeline()
	pendingCmd := pipe.LLen(ctx, config.WorkerKey.PersistAttemptsQueue)
	retryCmd := pipe.ZCard(ctx, config.WorkerKey.RetryAttemptsSet)
	deadCmd := pipe.LLen(ctx, config.WorkerKey.DeadAttemptsQueue)
	if _, err := pipe.Exec(ctx); err == nil {
		m.QueuePending, _ = pendingCmd.Result()
		m.QueueRetrying, _ = retryCmd.Result()
		m.QueueDead, _ = deadCmd.Result()
	}

	return m
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
