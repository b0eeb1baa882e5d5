package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/anima/internal/anima/service/world"
)

// WorldHandler exposes the environment model.
type WorldHandler struct {
	model *world.Model
}

// NewWorldHandler creates the world handler.
func NewWorldHandler(model *world.Model) *WorldHandler {
	return &WorldHandler{model: model}
}

// Active handles GET /v1/environments/active.
func (h *WorldHandler) Active(c *gin.Context) {
	env, err := h.model.ActiveEnvironment(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// Switch handles POST /v1/environments/:id/activate.
func (h *WorldHandler) Switch(c *gin.Context) {
	if err := h.model.Switch(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	env, err := h.model.ActiveEnvironment(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}
