package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/kernel"
)

// ChatHandler exposes the conversational surface.
type ChatHandler struct {
	kernel *kernel.Kernel
}

// NewChatHandler creates the chat handler.
func NewChatHandler(k *kernel.Kernel) *ChatHandler {
	return &ChatHandler{kernel: k}
}

// ChatRequest is the POST /v1/chat body.
type ChatRequest struct {
	Input string `json:"input" binding:"required"`
}

// ChatResponse carries the reply text.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Chat handles POST /v1/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errno.ErrBadInput, err))
		return
	}

	reply, err := h.kernel.Chat(c.Request.Context(), req.Input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}
