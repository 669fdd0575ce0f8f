package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medtrack/adherence-api/internal/handler"
	"github.com/medtrack/adherence-api/internal/model"
	"github.com/medtrack/adherence-api/internal/service/auth"
)

type Handler struct {
	service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	a := r.Group("/auth")
	{
		a.POST("/signup", h.Signup)
		a.POST("/login", h.Login)
	}
}

func (h *Handler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.Signup(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(resp))
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}
