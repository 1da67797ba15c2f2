package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tabstat/internal/engine"
	apperrors "tabstat/internal/errors"
	"tabstat/internal/infrastructure"
	"tabstat/internal/middleware"
	"tabstat/internal/report"
	api "tabstat/pkg/contracts/api/v1"
	"tabstat/pkg/contracts/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed for the client to send its request
	requestWait = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 8 << 20
)

// StreamHandler runs statistics requests over a WebSocket and streams
// per-chunk progress
type StreamHandler struct {
	runner    StatsRunner
	validator *middleware.Validator
	opts      RequestOptions
	timeout   time.Duration
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewStreamHandler creates a new stream handler. allowedOrigins lists the
// browser origins that may connect; "*" allows any.
func NewStreamHandler(
	runner StatsRunner,
	validator *middleware.Validator,
	opts RequestOptions,
	timeout time.Duration,
	allowedOrigins []string,
	logger *slog.Logger,
) *StreamHandler {
	h := &StreamHandler{
		runner:    runner,
		validator: validator,
		opts:      opts,
		timeout:   timeout,
		logger:    logger.With(slog.String("handler", "stream")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range allowedOrigins {
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			return false
		},
	}
	return h
}

// stream serialises writes to one connection; gorilla connections allow a
// single concurrent writer.
type stream struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	id      string
	traceID string
	seq     int64
}

func (s *stream) send(typ events.MessageType, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg, err := events.NewMessage(s.id, s.seq, typ, payload)
	if err != nil {
		return err
	}
	msg.TraceID = s.traceID

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// Stream handles GET /ws/stats
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if h.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	s := &stream{conn: conn, id: uuid.New().String(), traceID: infrastructure.GetTraceID(ctx)}

	in, err := h.readRequest(conn)
	if err != nil {
		h.logger.DebugContext(ctx, "rejected stream request", slog.String("error", err.Error()))
		_ = s.send(events.TypeError, events.ProtocolError{
			Code:    events.ErrCodeInvalidFrame,
			Message: err.Error(),
			Fatal:   true,
		})
		s.close()
		return
	}

	// The client sends nothing more; a failed read means it went away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	var (
		req engine.Request
		out api.StatsResponse
	)
	if verr := h.validator.ValidateStruct(&in); verr != nil {
		out = report.ToContract(nil, apperrors.NewInvalidRequestError(verr.Error(), verr))
	} else if req, err = buildRequest(ctx, in, h.opts); err != nil {
		out = report.ToContract(nil, publicError(err, in))
	} else {
		_ = s.send(events.TypeAccepted, map[string]interface{}{
			"operations": req.Operations.Names(),
			"threads":    req.Threads,
		})

		req.Progress = func(p engine.ChunkProgress) {
			if err := s.send(events.TypeProgress, progressEvent(p)); err != nil {
				cancel()
			}
		}
		resp, runErr := h.runner.Run(ctx, req)
		out = report.ToContract(resp, publicError(runErr, in))
	}

	if err := s.send(events.TypeResult, out); err != nil {
		h.logger.WarnContext(ctx, "failed to send result", slog.String("error", err.Error()))
		return
	}
	s.close()
}

func (h *StreamHandler) readRequest(conn *websocket.Conn) (api.StatsRequest, error) {
	var in api.StatsRequest

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(requestWait)); err != nil {
		return in, err
	}
	typ, data, err := conn.ReadMessage()
	if err != nil {
		return in, err
	}
	if typ != websocket.TextMessage {
		return in, errors.New("expected a text message")
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, err
	}
	return in, conn.SetReadDeadline(time.Time{})
}

func progressEvent(p engine.ChunkProgress) events.Progress {
	ev := events.Progress{
		Chunk:      p.Chunk,
		Rows:       api.Span{Start: p.Rows.Start, End: p.Rows.End},
		Done:       p.Done,
		Total:      p.Total,
		DurationMS: float64(p.Duration.Microseconds()) / 1000,
	}
	if p.Total > 0 {
		ev.Percentage = float64(p.Done) / float64(p.Total) * 100
	}
	if p.Err != nil {
		ev.Error = p.Err.Error()
	}
	return ev
}
