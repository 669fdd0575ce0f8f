package reminder

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/handler"
	"github.com/medtrack/adherence-api/internal/model"
	"github.com/medtrack/adherence-api/internal/repository"
	"github.com/medtrack/adherence-api/internal/service/scheduler"
)

const defaultListLimit = 50

type Handler struct {
	engine    *scheduler.Service
	reminders repository.ReminderRepository
}

func NewHandler(engine *scheduler.Service, reminders repository.ReminderRepository) *Handler {
	return &Handler{engine: engine, reminders: reminders}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reminders := r.Group("/reminders")
	{
		reminders.GET("", h.ListReminders)
		reminders.GET("/:id", h.GetReminder)
		reminders.POST("/:id/take", h.MarkTaken)
		reminders.POST("/:id/miss", h.MarkMissed)
	}
}

// ListReminders supports filtering by medicine, status, and a time range.
// The list is reporting-only; state transitions go through take/miss.
func (h *Handler) ListReminders(c *gin.Context) {
	patientID, ok := handler.PatientID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	filters := &model.ReminderFilters{
		PatientID: patientID,
		Limit:     defaultListLimit,
	}

	if v := c.Query("medicine_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medicine_id"))
			return
		}
		filters.MedicineID = id
	}
	if v := c.Query("status"); v != "" {
		switch model.ReminderStatus(v) {
		case model.ReminderStatusPending, model.ReminderStatusTaken, model.ReminderStatusMissed:
			filters.Status = model.ReminderStatus(v)
		default:
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid status"))
			return
		}
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid from timestamp"))
			return
		}
		filters.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid to timestamp"))
			return
		}
		filters.To = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid limit"))
			return
		}
		filters.Limit = n
	}

	reminders, err := h.reminders.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(reminders))
}

func (h *Handler) GetReminder(c *gin.Context) {
	patientID, id, ok := h.ids(c)
	if !ok {
		return
	}

	reminder, err := h.reminders.GetForPatient(c.Request.Context(), id, patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(reminder))
}

func (h *Handler) MarkTaken(c *gin.Context) {
	patientID, id, ok := h.ids(c)
	if !ok {
		return
	}

	reminder, err := h.engine.MarkTaken(c.Request.Context(), patientID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(reminder))
}

func (h *Handler) MarkMissed(c *gin.Context) {
	patientID, id, ok := h.ids(c)
	if !ok {
		return
	}

	reminder, err := h.engine.MarkMissed(c.Request.Context(), patientID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(reminder))
}

func (h *Handler) ids(c *gin.Context) (patientID, id uuid.UUID, ok bool) {
	patientID, ok = handler.PatientID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return uuid.Nil, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid reminder ID"))
		return uuid.Nil, uuid.Nil, false
	}
	return patientID, id, true
}
