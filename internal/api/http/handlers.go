package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/photosphere/internal/shared/id"
	"github.com/GriffinCanCode/photosphere/internal/shared/utils"
	"github.com/GriffinCanCode/photosphere/internal/viewer"
	"github.com/GriffinCanCode/photosphere/internal/viewer/surface"
)

// Documents looks up rendered session documents. *surface.Web satisfies it.
type Documents interface {
	Document(session id.SessionID) (string, bool)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	screens   *viewer.Manager
	documents Documents
	metrics   *monitoring.Metrics
	log       *logging.Logger
	surface   string
	started   time.Time
	gzip      func(http.Handler) http.HandlerFunc
	timeout   time.Duration
}

// NewHandlers creates a new handler set. documents is nil for surfaces
// that render nothing for browsers.
func NewHandlers(screens *viewer.Manager, documents Documents, surfaceName string, metrics *monitoring.Metrics, log *logging.Logger) (*Handlers, error) {
	if log == nil {
		log = logging.NewNop()
	}
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(1024))
	if err != nil {
		return nil, err
	}
	return &Handlers{
		screens:   screens,
		documents: documents,
		metrics:   metrics,
		log:       log,
		surface:   surfaceName,
		started:   time.Now(),
		gzip:      wrap,
		timeout:   10 * time.Second,
	}, nil
}

// Register mounts the routes on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	r.POST("/screens", h.CreateScreen)
	r.GET("/screens/:id", h.GetScreen)
	r.PUT("/screens/:id", h.UpdateScreen)
	r.POST("/screens/:id/load", h.LoadScreen)
	r.DELETE("/screens/:id", h.DeleteScreen)

	r.GET("/sessions/:id/document", h.Document)
}

// Root identifies the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Photosphere viewer host",
		"surface": h.surface,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"screens": h.screens.Len(),
		"surface": h.surface,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// CreateScreen mounts a screen for the posted item
func (h *Handlers) CreateScreen(c *gin.Context) {
	item, ok := bindItem(c)
	if !ok {
		return
	}

	screen, err := h.screens.Open(c.Request.Context(), item)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info("Screen opened",
		zap.String("screen_id", screen.ScreenID().String()),
		zap.String("reference", item.FileURL),
		tracing.Field(c.Request.Context()))
	c.JSON(http.StatusCreated, screen.Snapshot())
}

// GetScreen returns a screen snapshot
func (h *Handlers) GetScreen(c *gin.Context) {
	screen, ok := h.screen(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, screen.Snapshot())
}

// UpdateScreen changes the item a screen shows
func (h *Handlers) UpdateScreen(c *gin.Context) {
	screen, ok := h.screen(c)
	if !ok {
		return
	}

	item, ok := bindItem(c)
	if !ok {
		return
	}
	if err := screen.Show(c.Request.Context(), item); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, screen.Snapshot())
}

// LoadScreen forwards a manual load request to the sandbox
func (h *Handlers) LoadScreen(c *gin.Context) {
	screen, ok := h.screen(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := screen.Trigger(ctx); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, screen.Snapshot())
}

// DeleteScreen unmounts a screen and waits for its resources
func (h *Handlers) DeleteScreen(c *gin.Context) {
	screen, ok := h.screen(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.screens.Close(ctx, screen.ScreenID()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, screen.Snapshot())
}

// Document serves the instantiated viewer document of a session
func (h *Handlers) Document(c *gin.Context) {
	if h.documents == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "surface " + h.surface + " serves no documents"})
		return
	}

	session := id.SessionID(c.Param("id"))
	markup, ok := h.documents.Document(session)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "session_id": session})
		return
	}

	h.gzip(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		io.WriteString(w, markup)
	})).ServeHTTP(c.Writer, c.Request)
}

// bindItem decodes and validates the item body
func bindItem(c *gin.Context) (viewer.Item, bool) {
	var item viewer.Item
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxBodySize)
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item: " + err.Error()})
		return item, false
	}
	if err := errors.Join(utils.ValidateReference(item.FileURL), utils.ValidateName(item.Name)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return item, false
	}
	return item, true
}

func (h *Handlers) screen(c *gin.Context) (*viewer.Controller, bool) {
	raw := c.Param("id")
	if !id.IsPrefixed(raw, id.ScreenPrefix) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid screen id", "screen_id": raw})
		return nil, false
	}
	screen, ok := h.screens.Get(id.ScreenID(raw))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": viewer.ErrScreenNotFound.Error(), "screen_id": raw})
		return nil, false
	}
	return screen, true
}

// fail maps domain errors to status codes
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, viewer.ErrScreenNotFound), errors.Is(err, surface.ErrUnknownSession):
		status = http.StatusNotFound
	case errors.Is(err, viewer.ErrUnmounted), errors.Is(err, viewer.ErrNotRendering), errors.Is(err, surface.ErrClosed):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed",
			zap.String("path", c.FullPath()),
			tracing.Field(c.Request.Context()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
