package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pictalk/pictalk-backend/internal/config"
	"github.com/pictalk/pictalk-backend/internal/engine"
	"github.com/pictalk/pictalk-backend/internal/narration"
	"github.com/pictalk/pictalk-backend/internal/response"
	"github.com/pictalk/pictalk-backend/internal/service"
	ws "github.com/pictalk/pictalk-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
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

// WSHandler streams a traversal session: traversal actions in, cursor
// snapshots and narration events out.
type WSHandler struct {
	rdb            *redis.Client
	sessionService *service.SessionService
	patientService *service.PatientService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, sessionService *service.SessionService, patientService *service.PatientService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		sessionService: sessionService,
		patientService: patientService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// wsConn serializes writes from the read loop and the narration relay.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(code response.ErrCode) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = ws.WriteError(w.conn, string(code), response.GetMessage(code))
}

// AssessmentStream godoc
// WS /ws/v1/patients/:id/stream
// Upgrades to WebSocket, opens a traversal session if none is running and
// drives it in real time. Narration events published by the worker are
// relayed alongside a fresh cursor snapshot, which also covers the delayed
// auto-advance.
func (h *WSHandler) AssessmentStream(c *gin.Context) {
	examiner := currentExaminer(c)
	if examiner == nil {
		return
	}
	patientID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := h.patientService.Get(c.Request.Context(), examiner, patientID); err != nil {
		failPatient(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wc := &wsConn{conn: conn}
	wsLog := h.log.With().Int("patient_id", patientID).Logger()

	// A connection with no running session opens one at level 1.
	cursor, err := h.sessionService.State(patientID)
	if errors.Is(err, service.ErrNoActiveSession) {
		cursor, err = h.sessionService.Start(c.Request.Context(), patientID)
	}
	if err != nil {
		wc.writeError(response.ErrInternal)
		return
	}
	if err := wc.write(ws.StateResponse{Event: ws.EventState, Cursor: cursor}); err != nil {
		return
	}

	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()
	go h.relayNarration(relayCtx, wc, wsLog, patientID)

	wsLog.Info().Msg("Examiner connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			wc.writeError(response.ErrInvalidPayload)
			continue
		}
		h.dispatch(c.Request.Context(), wc, wsLog, patientID, env.Action, raw)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, wc *wsConn, wsLog zerolog.Logger, patientID int, action ws.Action, raw []byte) {
	var (
		cursor engine.CursorState
		err    error
	)

	switch action {
	case ws.ActionSelect:
		var req ws.SelectRequest
		if jsonErr := json.Unmarshal(raw, &req); jsonErr != nil || req.ImageID <= 0 {
			wc.writeError(response.ErrInvalidPayload)
			return
		}
		cursor, err = h.sessionService.Select(ctx, patientID, req.ImageID)
	case ws.ActionNext:
		cursor, err = h.sessionService.Next(ctx, patientID)
	case ws.ActionPrevious:
		cursor, err = h.sessionService.Previous(ctx, patientID)
	case ws.ActionPreviousLevel:
		cursor, err = h.sessionService.PreviousLevel(ctx, patientID)
	case ws.ActionExit:
		cursor, err = h.sessionService.Exit(ctx, patientID)
	case ws.ActionRetake:
		cursor, err = h.sessionService.Retake(ctx, patientID)
	case ws.ActionPing:
		_ = wc.write(ws.PongResponse{Event: ws.EventPong})
		return
	default:
		wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
		wc.writeError(response.ErrInvalidPayload)
		return
	}

	// Invalid transitions are no-ops: resend the unchanged state.
	switch {
	case err == nil, errors.Is(err, engine.ErrInvalidTransition):
		_ = wc.write(ws.StateResponse{Event: ws.EventState, Cursor: cursor})
	case errors.Is(err, service.ErrNoActiveSession):
		wc.writeError(response.ErrNoActiveSession)
	case errors.Is(err, engine.ErrInvalidSelection):
		wc.writeError(response.ErrInvalidSelection)
	case errors.Is(err, engine.ErrContentNotFound):
		wc.writeError(response.ErrContentNotFound)
	case errors.Is(err, engine.ErrPersistence):
		wc.writeError(response.ErrPersistenceFailure)
	default:
		wsLog.Error().Err(err).Msg("Action failed")
		wc.writeError(response.ErrInternal)
	}
}

// relayNarration forwards the patient's narration PubSub events to the
// client. Every narration marks a newly presented question, so a fresh
// cursor snapshot rides along; that is how timer-driven advances reach the
// client without polling.
func (h *WSHandler) relayNarration(ctx context.Context, wc *wsConn, wsLog zerolog.Logger, patientID int) {
	sub := h.rdb.Subscribe(ctx, config.CacheKey.PatientNarrationChannel(patientID))
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				wsLog.Warn().Err(err).Msg("Narration subscription lost")
			}
			return
		}

		var event narration.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			wsLog.Error().Err(err).Msg("Bad narration payload")
			continue
		}

		if err := wc.write(ws.NarrateResponse{Event: ws.EventNarrate, Text: event.Text, Lang: event.Lang}); err != nil {
			return
		}
		if cursor, err := h.sessionService.State(patientID); err == nil {
			_ = wc.write(ws.StateResponse{Event: ws.EventState, Cursor: cursor})
		}
	}
}
