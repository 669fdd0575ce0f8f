package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/medtrack/adherence-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError writes the HTTP mapping of a service error. Application
// errors carry their own status; anything else is a 500 with a generic
// message, the detail stays in the logs.
func RespondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode(), NewErrorResponse(appErr.Message))
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
}
