package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/knowledge"
)

// KnowledgeHandler exposes the base-knowledge fact layer.
type KnowledgeHandler struct {
	base *knowledge.BaseKnowledge
}

// NewKnowledgeHandler creates the knowledge handler.
func NewKnowledgeHandler(base *knowledge.BaseKnowledge) *KnowledgeHandler {
	return &KnowledgeHandler{base: base}
}

// AddFactRequest is the POST /v1/knowledge/base-facts body.
type AddFactRequest struct {
	Name        string `json:"name" binding:"required"`
	Content     string `json:"content" binding:"required"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// AddFact handles POST /v1/knowledge/base-facts.
func (h *KnowledgeHandler) AddFact(c *gin.Context) {
	var req AddFactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errno.ErrBadInput, err))
		return
	}
	if err := h.base.AddFact(c.Request.Context(), req.Name, req.Content, req.Category, req.Description); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

// ListFacts handles GET /v1/knowledge/base-facts.
func (h *KnowledgeHandler) ListFacts(c *gin.Context) {
	facts, err := h.base.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": facts})
}
