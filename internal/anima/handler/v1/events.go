package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/event"
	"github.com/kiosk404/anima/internal/anima/service/kernel"
)

// EventHandler exposes event intake and processing.
type EventHandler struct {
	kernel *kernel.Kernel
	events *event.Manager
}

// NewEventHandler creates the event handler.
func NewEventHandler(k *kernel.Kernel, events *event.Manager) *EventHandler {
	return &EventHandler{kernel: k, events: events}
}

// CreateEventRequest is the POST /v1/events body.
type CreateEventRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Kind        string            `json:"kind" binding:"required"`
	Priority    string            `json:"priority"`
	Metadata    map[string]string `json:"metadata"`
}

// Create handles POST /v1/events.
func (h *EventHandler) Create(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errno.ErrBadInput, err))
		return
	}

	ev := &event.Event{
		Title:       req.Title,
		Description: req.Description,
		Kind:        event.Kind(req.Kind),
		Priority:    req.Priority,
		Metadata:    req.Metadata,
	}
	if err := h.events.Create(c.Request.Context(), ev); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// List handles GET /v1/events?status=&limit=.
func (h *EventHandler) List(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	events, err := h.events.List(c.Request.Context(), event.Status(c.Query("status")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

// Get handles GET /v1/events/:id.
func (h *EventHandler) Get(c *gin.Context) {
	ev, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	logs, err := h.events.Logs(c.Request.Context(), ev.UUID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": ev, "logs": logs})
}

// Handle handles POST /v1/events/:id/handle: the kernel processes the
// event and the resulting text is returned as the chat reply.
func (h *EventHandler) Handle(c *gin.Context) {
	reply, err := h.kernel.HandleEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// Complete handles POST /v1/events/:id/complete, the host-driven
// finaliser for delivery-pending task events.
func (h *EventHandler) Complete(c *gin.Context) {
	if err := h.events.MarkEventCompleted(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}
