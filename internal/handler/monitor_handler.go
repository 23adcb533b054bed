package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	rdb            *redis.Client
	examService    *service.ExamService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	examService *service.ExamService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		examService:    examService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Streams a snapshot, then attempt_started / attempt_finished events as
// they are published, with periodic refreshes while learners are active.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	e, err := h.examService.GetByID(reqCtx, examID)
	if err != nil {
		failErr(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	active := h.sendSnapshot(c, reqCtx, e, "snapshot")

	channelName := config.CacheKey.ExamMonitorChannel(examID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward raw JSON directly; no deserialization needed.
			writeSSEData(c, []byte(msg.Payload))
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			active = h.sendSnapshot(c, reqCtx, e, "refresh")

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

// sendSnapshot writes one snapshot event and reports whether any learner is
// still in progress.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parent context.Context, e *model.Exam, kind string) bool {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	snap, err := h.monitorService.Snapshot(ctx, e.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", e.ID.String()).Msg("Failed to build monitor snapshot")
		return true
	}

	payload, err := json.Marshal(gin.H{
		"type": kind,
		"data": gin.H{
			"exam": gin.H{
				"id":              e.ID,
				"title":           e.Title,
				"duration":        e.DurationMinutes,
				"total_questions": e.TotalQuestions(),
			},
			"stats":  snap.Stats,
			"live":   snap.Live,
			"recent": snap.Recent,
		},
	})
	if err != nil {
		return true
	}
	writeSSEData(c, payload)
	return snap.Stats.InProgress > 0
}

func writeSSEData(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
