package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/interfaces/http/dto"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// pathID parses the :id path parameter, answering 400 when it is not a UUID
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}

// Success answers 200 with data
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Success: true, Data: data})
}

// SuccessList answers 200 with a page of items and its size
func (h *BaseHandler) SuccessList(c *gin.Context, data any, total int64, limit int) {
	c.JSON(http.StatusOK, APIResponse[any]{
		Success: true,
		Data:    data,
		Meta:    &dto.Meta{Total: total, Limit: limit},
	})
}

// Error answers statusCode with an error body tagged with the request ID
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, newErrorResponse(c, code, message))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	code = dto.NormalizeErrorCode(code)
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		middleware.GetRequestID(c),
		details,
	))
}

// HandleError converts service errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, message := errorCode(err)
	h.ErrorWithCode(c, code, message)
}

// HandleErrorWithData answers like HandleError and attaches the partial result data.
// A non-empty message replaces the error text.
func (h *BaseHandler) HandleErrorWithData(c *gin.Context, err error, message string, data any) {
	code, msg := errorCode(err)
	if message != "" {
		msg = message
	}
	code = dto.NormalizeErrorCode(code)
	c.JSON(dto.GetHTTPStatus(code), APIResponse[any]{
		Data:  data,
		Error: newErrorResponse(c, code, msg).Error,
	})
}

// errorCode resolves the API code and the user-facing message for err
func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, banking.ErrConnectorNotFound),
		errors.Is(err, banking.ErrAccountNotFound),
		errors.Is(err, feed.ErrSourceNotFound),
		errors.Is(err, qcommerce.ErrChannelNotFound),
		errors.Is(err, runlog.ErrRunNotFound):
		return dto.ErrCodeNotFound, err.Error()
	case errors.Is(err, feed.ErrExportNotFound):
		return dto.ErrCodeUnauthorized, "Invalid token"
	case errors.Is(err, feed.ErrExportForbidden):
		return dto.ErrCodeUnauthorized, "Invalid password"
	case errors.Is(err, runlog.ErrRunInProgress):
		return dto.ErrCodeConflict, err.Error()
	case errors.Is(err, banking.ErrConnectorDisconnected),
		errors.Is(err, feed.ErrSourcePaused):
		return dto.ErrCodeInvalidState, err.Error()
	}

	if kind := shared.KindOf(err); kind != nil {
		return kind.Code, err.Error()
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code, domainErr.Message
	}
	return dto.ErrCodeInternal, "An unexpected error occurred"
}
