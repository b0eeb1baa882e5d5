package v1

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/schedule"
)

// ScheduleHandler exposes the schedule engine.
type ScheduleHandler struct {
	engine *schedule.Engine
}

// NewScheduleHandler creates the schedule handler.
func NewScheduleHandler(engine *schedule.Engine) *ScheduleHandler {
	return &ScheduleHandler{engine: engine}
}

// CreateScheduleRequest is the POST /v1/schedules body.
type CreateScheduleRequest struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	Kind            string `json:"kind" binding:"required"`
	StartTime       string `json:"start_time" binding:"required"`
	EndTime         string `json:"end_time" binding:"required"`
	Priority        string `json:"priority"`
	Weekday         *int   `json:"weekday"`
	InvolvesUser    bool   `json:"involves_user"`
	CheckConflict   bool   `json:"check_conflict"`
	CheckSimilarity bool   `json:"check_similarity"`
}

// Create handles POST /v1/schedules.
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errno.ErrBadInput, err))
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(c, fmt.Errorf("%w: bad start_time: %v", errno.ErrBadInput, err))
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(c, fmt.Errorf("%w: bad end_time: %v", errno.ErrBadInput, err))
		return
	}

	weekday := schedule.WeekdayUnset
	if req.Weekday != nil {
		weekday = *req.Weekday
	}
	created, err := h.engine.Create(c.Request.Context(), schedule.CreateRequest{
		Title:           req.Title,
		Description:     req.Description,
		Kind:            schedule.Kind(req.Kind),
		StartTime:       start,
		EndTime:         end,
		Priority:        schedule.Priority(req.Priority),
		Weekday:         weekday,
		InvolvesUser:    req.InvolvesUser,
		Source:          "api",
		CheckConflict:   req.CheckConflict,
		CheckSimilarity: req.CheckSimilarity,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// InRange handles GET /v1/schedules?start=&end=.
func (h *ScheduleHandler) InRange(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: bad start: %v", errno.ErrBadInput, err))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: bad end: %v", errno.ErrBadInput, err))
		return
	}

	occs, err := h.engine.InRange(c.Request.Context(), start, end, schedule.DefaultQueryOptions())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": occs})
}

// FreeSlots handles GET /v1/schedules/free-slots?date=&slot_minutes=.
func (h *ScheduleHandler) FreeSlots(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: bad date: %v", errno.ErrBadInput, err))
		return
	}
	slots, err := h.engine.FreeSlots(c.Request.Context(), date, intQuery(c, "slot_minutes", 60))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": slots})
}

// ConfirmRequest is the POST /v1/schedules/:id/confirm body.
type ConfirmRequest struct {
	Accept bool `json:"accept"`
}

// Confirm handles POST /v1/schedules/:id/confirm.
func (h *ScheduleHandler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errno.ErrBadInput, err))
		return
	}
	if err := h.engine.ConfirmCollaboration(c.Request.Context(), c.Param("id"), req.Accept); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Delete handles DELETE /v1/schedules/:id (soft delete).
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.engine.SoftDelete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
