package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/api/middleware"
	"github.com/0xhank/casper/internal/bridge"
	"github.com/0xhank/casper/internal/broker"
	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/pipeline"
	"github.com/0xhank/casper/internal/shared/types"
	"github.com/0xhank/casper/internal/shared/utils"
	"github.com/0xhank/casper/internal/shell"
)

// Pusher delivers an envelope to a session's live bridge channel, if any.
// Used to deliver OAuth-pending prompts replayed after authorization.
type Pusher interface {
	Push(sessionKey string, content *types.GeneratedContent)
}

// Handlers contains the generation API's HTTP handlers
type Handlers struct {
	sessions *shell.Manager
	broker   broker.Broker
	catalog  broker.Catalog
	bridge   *bridge.Bridge
	pusher   Pusher
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewHandlers creates a handler set
func NewHandlers(sessions *shell.Manager, b broker.Broker, catalog broker.Catalog, mounts *bridge.Bridge, pusher Pusher, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	return &Handlers{
		sessions: sessions,
		broker:   b,
		catalog:  catalog,
		bridge:   mounts,
		pusher:   pusher,
		metrics:  metrics,
		logger:   logger.Named("http"),
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Casper Generation Service",
		"version": "0.1.0",
	})
}

// Health handles the health check
func (h *Handlers) Health(c *gin.Context) {
	snapshot := h.metrics.GetSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"sessions":    h.sessions.Count(),
		"requests":    snapshot.TotalRequests,
		"errors":      snapshot.TotalErrors,
		"generations": snapshot.TotalGenerations,
	})
}

// Generate handles POST /api/generate: one full pipeline run for the
// caller's session.
func (h *Handlers) Generate(c *gin.Context) {
	var req types.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	if err := utils.ValidatePrompt(req.Prompt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	session := h.session(c)
	content, err := session.Submit(c.Request.Context(), req.Prompt)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, content)
}

// Preview handles GET /api/preview: mounts the session's current envelope
// and returns the iframe-ready document. The mount is transient; the live
// state flow runs over the bridge channel.
func (h *Handlers) Preview(c *gin.Context) {
	session := h.session(c)
	content := session.Content()
	if content == nil || !content.HasCode() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no component generated yet"})
		return
	}

	mount, err := h.bridge.Mount(c.Request.Context(), content, session.State())
	if err != nil {
		h.renderError(c, err)
		return
	}
	defer mount.Close()

	doc, err := mount.Document(mount.State())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

// ListConnections handles GET /api/connections: connection status for every
// catalog service, queried live from the broker.
func (h *Handlers) ListConnections(c *gin.Context) {
	entity := middleware.Entity(c)

	connections := make([]types.ToolConnection, 0, len(h.catalog))
	for _, entry := range h.catalog {
		conn, err := h.broker.GetConnection(c.Request.Context(), entity, entry.AppName)
		if err != nil && !errors.Is(err, broker.ErrNotConnected) {
			h.logger.Error("connection lookup failed",
				zap.String("app", entry.AppName),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
		connections = append(connections, types.ToolConnection{
			ID:          entry.Name,
			IsConnected: conn.Active(),
		})
	}
	c.JSON(http.StatusOK, types.ConnectionsResponse{Connections: connections})
}

// ConnectTool handles POST /api/connect/:toolId. A valid connection returns
// success and replays any prompt parked during the OAuth round-trip; a
// missing one returns the authorization redirect.
func (h *Handlers) ConnectTool(c *gin.Context) {
	toolID := c.Param("toolId")
	if err := utils.ValidateToolID(toolID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	entry, ok := h.catalog.Lookup(toolID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool"})
		return
	}

	entity := middleware.Entity(c)
	conn, err := h.broker.GetConnection(c.Request.Context(), entity, entry.AppName)
	if err == nil && conn.Active() {
		h.replayPending(c)
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	if err != nil && !errors.Is(err, broker.ErrNotConnected) {
		h.renderError(c, err)
		return
	}

	redirect, err := h.broker.InitiateConnection(c.Request.Context(), entity, entry.AppName)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.metrics.IncAuthRequired()
	c.JSON(http.StatusUnauthorized, types.OAuthResponse{
		Type:        types.OAuthRequired,
		RedirectURL: redirect,
	})
}

// replayPending resubmits the session's parked prompt in the background and
// pushes the result down the session's bridge channel.
func (h *Handlers) replayPending(c *gin.Context) {
	session := h.session(c)
	key := sessionKey(c)

	go func() {
		content, err := session.RetryPending(context.Background())
		if err != nil {
			h.logger.Error("pending prompt replay failed", zap.Error(err))
			return
		}
		if content != nil && h.pusher != nil {
			h.pusher.Push(key, content)
		}
	}()
}

func (h *Handlers) session(c *gin.Context) *shell.Session {
	return h.sessions.GetOrCreate(sessionKey(c), middleware.Entity(c))
}

// sessionKey resolves the client's session key: the X-Session-ID header,
// falling back to the caller's entity id.
func sessionKey(c *gin.Context) string {
	if key := c.GetHeader("X-Session-ID"); key != "" {
		return key
	}
	return middleware.Entity(c)
}

// renderError maps pipeline and broker failures to response shapes
func (h *Handlers) renderError(c *gin.Context, err error) {
	if authErr, ok := broker.AsAuthRequired(err); ok {
		h.metrics.IncAuthRequired()
		c.JSON(http.StatusUnauthorized, types.OAuthResponse{
			Type:        types.OAuthRequired,
			RedirectURL: authErr.RedirectURL,
		})
		return
	}
	if errors.Is(err, shell.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "a generation is already in flight"})
		return
	}
	if errors.Is(err, pipeline.ErrInvalidModelResponse) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid response format from AI"})
		return
	}

	h.logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
}
