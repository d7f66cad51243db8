package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/service"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// LiveHandler streams link statistics over a WebSocket.
type LiveHandler struct {
	svc      *service.LinkService
	interval time.Duration
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a LiveHandler pushing stats every interval.
// allowOrigin decides cross-origin upgrades; nil allows same-origin only.
func NewLiveHandler(svc *service.LinkService, interval time.Duration, allowOrigin func(*http.Request) bool, logger *slog.Logger) *LiveHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &LiveHandler{
		svc:      svc,
		interval: interval,
		logger:   logger.With("component", "live_analytics"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
	}
}

// Serve handles GET /url/{shortCode}/live. The link is looked up before the
// upgrade so unknown codes get a normal error response.
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortCode")
	owner := userID(r)

	report, err := h.svc.GetStats(r.Context(), code, owner)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("live_upgrade_failed", "short_code", code, "error", err)
		return
	}
	defer conn.Close()

	h.logger.Info("live_connected", "short_code", code)
	defer h.logger.Info("live_disconnected", "short_code", code)

	closed := make(chan struct{})
	go readPump(conn, closed)

	// Hijacked connections do not cancel the request context; the loop ends
	// when readPump sees the connection fail.
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	if err := h.push(conn, report); err != nil {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			report, err = h.svc.GetStats(ctx, code, owner)
			if err != nil {
				_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
				_ = conn.WriteJSON(errorFrame(err))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "link unavailable"))
				return
			}
			if err := h.push(conn, report); err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) push(conn *websocket.Conn, report *service.LinkReport) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(liveFrame{
		Type:      "stats",
		Timestamp: time.Now().UTC(),
		Data:      statsResponse(h.svc, report),
	})
}

type liveFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func errorFrame(err error) liveFrame {
	return liveFrame{Type: "error", Timestamp: time.Now().UTC(), Data: dto.NewErrorResponse(err, time.Now())}
}

// readPump drains client frames so control messages are processed, and
// closes done when the connection fails.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
