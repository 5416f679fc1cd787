package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/shared/id"
	"github.com/GriffinCanCode/photosphere/internal/viewer/bridge"
	"github.com/GriffinCanCode/photosphere/internal/viewer/surface"
)

// Sessions is the part of the browser surface the handler drives.
// *surface.Web satisfies it.
type Sessions interface {
	Document(session id.SessionID) (string, bool)
	Attach(ctx context.Context, session id.SessionID, conn surface.Conn) error
}

// Handler upgrades browser connections onto viewer sessions
type Handler struct {
	sessions Sessions
	log      *logging.Logger
	upgrader websocket.Upgrader
	pingEach time.Duration
	// pongWait bounds the silence of a peer; each pong extends it
	pongWait time.Duration
}

// NewHandler creates a new WebSocket handler
func NewHandler(sessions Sessions, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{
		sessions: sessions,
		log:      log.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// Documents are served from this host but may be embedded anywhere
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingEach: 30 * time.Second,
		pongWait: 60 * time.Second,
	}
}

// Register mounts the events route on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/sessions/:id/events", h.HandleConnection)
}

// HandleConnection upgrades and relays the session's outbound channel
func (h *Handler) HandleConnection(c *gin.Context) {
	session := id.SessionID(c.Param("id"))
	if _, ok := h.sessions.Document(session); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": surface.ErrUnknownSession.Error(), "session_id": session})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.String("session_id", session.String()), zap.Error(err))
		return
	}
	defer conn.Close()

	// Matches the largest raw message ParseMessage decodes
	conn.SetReadLimit(4 * bridge.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.keepalive(ctx, conn)

	h.log.Debug("Browser attached", zap.String("session_id", session.String()))
	if err := h.sessions.Attach(ctx, session, conn); err != nil {
		h.log.Debug("Attach ended", zap.String("session_id", session.String()), zap.Error(err))
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}

// keepalive pings until ctx ends; control writes may run alongside WriteMessage
func (h *Handler) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.pingEach)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
