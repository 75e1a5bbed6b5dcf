package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mobilsoft/connectors/internal/interfaces/http/dto"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
)

// APIResponse is the envelope of every JSON answer, typed for the API docs
// @Description Response envelope with a typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is an envelope without data
// @Description Error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}

func newErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	resp := dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c))
	return ErrorResponse{Error: resp.Error}
}
