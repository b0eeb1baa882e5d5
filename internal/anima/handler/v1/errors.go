package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
)

// writeError maps the service error kinds onto HTTP statuses with a
// uniform body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errno.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errno.ErrBadInput):
		status = http.StatusBadRequest
	case errors.Is(err, errno.ErrConflict),
		errors.Is(err, errno.ErrImmutable),
		errors.Is(err, errno.ErrEventAlreadyDone):
		status = http.StatusConflict
	case errors.Is(err, errno.ErrUpstream):
		status = http.StatusBadGateway
	case errors.Is(err, errno.ErrCancelled):
		status = http.StatusRequestTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
