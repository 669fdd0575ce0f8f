package medicine

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtrack/adherence-api/internal/handler"
	"github.com/medtrack/adherence-api/internal/model"
	"github.com/medtrack/adherence-api/internal/service/medicine"
)

type Handler struct {
	service *medicine.Service
}

func NewHandler(service *medicine.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	medicines := r.Group("/medicines")
	{
		medicines.POST("", h.CreateMedicine)
		medicines.GET("", h.ListMedicines)
		medicines.GET("/:id", h.GetMedicine)
		medicines.PUT("/:id", h.UpdateMedicine)
		medicines.DELETE("/:id", h.DeleteMedicine)

		medicines.POST("/:id/snooze", h.Snooze)
		medicines.DELETE("/:id/snooze", h.Unsnooze)
		medicines.GET("/:id/adherence", h.AdherenceStats)
	}
}

func (h *Handler) CreateMedicine(c *gin.Context) {
	patientID, ok := handler.PatientID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	var req model.CreateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.CreateMedicine(c.Request.Context(), patientID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListMedicines(c *gin.Context) {
	patientID, ok := handler.PatientID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	medicines, err := h.service.ListMedicines(c.Request.Context(), patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(medicines))
}

func (h *Handler) GetMedicine(c *gin.Context) {
	patientID, id, ok := h.ids(c)
	if !ok {
		return
	}

	m, err := h.service.GetMedicine(c.Request.Context(), patientID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(m))
}

func (h *Handler) UpdateMedicine(c *gin.Context) {
	patientID, id, ok := h.ids(c)
	if !ok {
		return
	}

	var req model.UpdateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.service.UpdateMedicine(c.Request.Context(), patientID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) DeleteMedicine(c *gin.Context) {
	patientID, id, ok := h.ids(c)
	if !ok {
		return
	}

	if err := h.service.DeleteMedicine(c.Request.Context(), patientID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": id}))
}

func (h *Handler) Snooze(c *gin.Context) {
	patientID, id, ok := h.ids(c)
	if !ok {
		return
	}

	var req model.SnoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	m, err := h.service.Snooze(c.Request.Context(), patientID, id, req.Until)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(m))
}

func (h *Handler) Unsnooze(c *gin.Context) {
	patientID, id, ok := h.ids(c)
	if !ok {
		return
	}

	m, err := h.service.Unsnooze(c.Request.Context(), patientID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(m))
}

func (h *Handler) AdherenceStats(c *gin.Context) {
	patientID, id, ok := h.ids(c)
	if !ok {
		return
	}

	stats, err := h.service.AdherenceStats(c.Request.Context(), patientID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

// ids pulls the authenticated patient ID and the :id path parameter,
// writing the error response itself on failure.
func (h *Handler) ids(c *gin.Context) (patientID, id uuid.UUID, ok bool) {
	patientID, ok = handler.PatientID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return uuid.Nil, uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medicine ID"))
		return uuid.Nil, uuid.Nil, false
	}
	return patientID, id, true
}
