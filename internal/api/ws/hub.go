package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/api/middleware"
	"github.com/0xhank/casper/internal/broker"
	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/shared/types"
	"github.com/0xhank/casper/internal/shell"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

const commandTimeout = 2 * time.Minute

// client is one live bridge channel. gorilla connections do not allow
// concurrent writers, so every write goes through the client's mutex.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (cl *client) write(data interface{}) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conn.WriteJSON(data)
}

// Hub manages WebSocket bridge channels, one per session key. It is the
// delivery path for envelopes produced outside a request cycle, such as
// pending prompts replayed after OAuth authorization.
type Hub struct {
	sessions *shell.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a WebSocket hub
func NewHub(sessions *shell.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger.Named("ws"),
		clients:  make(map[string]*client),
	}
}

// Push delivers an envelope to the session's live channel. A session
// without an open channel drops the push silently.
func (h *Hub) Push(sessionKey string, content *types.GeneratedContent) {
	h.mu.RLock()
	cl, ok := h.clients[sessionKey]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("push without live channel", zap.String("session", sessionKey))
		return
	}
	if err := cl.write(generatedMessage(content)); err != nil {
		h.logger.Warn("push failed", zap.String("session", sessionKey), zap.Error(err))
	}
}

// HandleConnection upgrades the request and serves the bridge channel
// until the peer disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	entityID := middleware.Entity(c)
	key := sessionKey(c, entityID)
	session := h.sessions.GetOrCreate(key, entityID)
	cl := &client{conn: conn}

	h.register(key, cl)
	defer h.deregister(key, cl)

	cl.write(map[string]interface{}{
		"type":    "system",
		"message": "Connected to Casper Generation Service",
	})

	reqCtx := c.Request.Context()
	for {
		var msg types.BridgeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case types.MessageStateUpdate:
			h.metrics.RecordBridgeMessage(types.MessageStateUpdate)
			session.ApplyStateUpdate(msg.State)
		case types.MessageCommand:
			h.metrics.RecordBridgeMessage(types.MessageCommand)
			h.handleCommand(reqCtx, cl, session, msg.Command)
		case "ping":
			cl.write(map[string]interface{}{"type": "pong"})
		default:
			h.sendError(cl, "unknown message type")
		}
	}
}

// handleCommand runs one pipeline cycle for a relayed component command
// and pushes the resulting envelope back down the same channel.
func (h *Hub) handleCommand(reqCtx context.Context, cl *client, session *shell.Session, command string) {
	if command == "" {
		h.sendError(cl, "empty command")
		return
	}

	ctx, cancel := context.WithTimeout(reqCtx, commandTimeout)
	defer cancel()

	content, err := session.HandleCommand(ctx, command)
	if err != nil {
		var authErr *broker.AuthRequiredError
		if errors.As(err, &authErr) {
			h.metrics.IncAuthRequired()
			cl.write(map[string]interface{}{
				"type":        "oauth_required",
				"redirectUrl": authErr.RedirectURL,
				"timestamp":   time.Now().Unix(),
			})
			return
		}
		h.sendError(cl, err.Error())
		return
	}
	cl.write(generatedMessage(content))
}

func (h *Hub) register(key string, cl *client) {
	h.mu.Lock()
	if old, ok := h.clients[key]; ok && old != cl {
		old.conn.Close()
	}
	h.clients[key] = cl
	h.mu.Unlock()
	h.metrics.IncWSConnections()
}

func (h *Hub) deregister(key string, cl *client) {
	h.mu.Lock()
	if h.clients[key] == cl {
		delete(h.clients, key)
	}
	h.mu.Unlock()
	h.metrics.DecWSConnections()
}

func (h *Hub) sendError(cl *client, msg string) {
	cl.write(map[string]interface{}{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}

func generatedMessage(content *types.GeneratedContent) map[string]interface{} {
	return map[string]interface{}{
		"type":      "generated",
		"content":   content,
		"timestamp": time.Now().Unix(),
	}
}

func sessionKey(c *gin.Context, entityID string) string {
	if key := c.GetHeader("X-Session-ID"); key != "" {
		return key
	}
	if key := c.Query("session"); key != "" {
		return key
	}
	return entityID
}
