package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
	ws "github.com/stemsi/elearn-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live attempt over WebSocket.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream
// Pushes clock ticks and state changes; accepts select, goto, finish and ping.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}
	learnerID := claims.UserID

	// Reject unknown or foreign attempts before upgrading.
	events, unsubscribe, err := h.sessionService.Subscribe(learnerID, attemptID)
	if err != nil {
		failErr(c, err)
		return
	}
	defer unsubscribe()

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("learner_id", learnerID).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Learner connected")

	// Localize with the handshake's context; it is cancelled once the
	// connection is hijacked, so nothing blocking may use it.
	msgCtx := context.WithoutCancel(c.Request.Context())

	if view, err := h.sessionService.View(learnerID, attemptID); err == nil {
		conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Attempt: view})
	}

	done := make(chan struct{})
	defer close(done)
	go h.pump(conn, events, done, msgCtx)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionSelect:
			if msg.Option == nil {
				h.writeErr(conn, msgCtx, response.ErrInvalidPayload)
				continue
			}
			if _, err := h.sessionService.SelectAnswer(learnerID, attemptID, *msg.Option); err != nil {
				h.writeDomainErr(conn, msgCtx, err)
			}
		case ws.ActionGoTo:
			if msg.Index == nil {
				h.writeErr(conn, msgCtx, response.ErrInvalidPayload)
				continue
			}
			if _, err := h.sessionService.GoTo(learnerID, attemptID, *msg.Index); err != nil {
				h.writeDomainErr(conn, msgCtx, err)
			}
		case ws.ActionFinish:
			// The graded event reaches the client through the pump.
			if _, err := h.sessionService.Finish(msgCtx, learnerID, attemptID); err != nil && !errors.Is(err, exam.ErrPersistence) {
				h.writeDomainErr(conn, msgCtx, err)
			}
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			h.writeErr(conn, msgCtx, response.ErrInvalidPayload)
		}
	}
}

// pump forwards session events to the client until the subscription ends
// or the reader loop exits.
func (h *WSHandler) pump(conn *ws.Conn, events <-chan service.SessionEvent, done <-chan struct{}, msgCtx context.Context) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case service.SessionEventTick:
				conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, Remaining: ev.Remaining})
			case service.SessionEventState:
				conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Attempt: ev.View})
			case service.SessionEventGraded:
				resp := ws.GradedResponse{Event: ws.EventGraded}
				if ev.Outcome != nil {
					resp.Result = newGradedBody(*ev.Outcome)
				}
				if errors.Is(ev.Err, exam.ErrPersistence) {
					resp.Code = string(response.ErrPersistence)
				}
				conn.WriteTyped(resp)
			}
		}
	}
}

func (h *WSHandler) writeErr(conn *ws.Conn, ctx context.Context, code response.ErrCode) {
	conn.WriteError(string(code), response.GetMessage(ctx, code))
}

func (h *WSHandler) writeDomainErr(conn *ws.Conn, ctx context.Context, err error) {
	_, code := errorStatus(err)
	if code == response.ErrInternal {
		h.log.Error().Err(err).Msg("Attempt action failed")
	}
	h.writeErr(conn, ctx, code)
}
