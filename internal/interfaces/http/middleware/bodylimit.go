package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mobilsoft/connectors/internal/interfaces/http/dto"
)

// RejectFunc answers a request whose body is over the limit
type RejectFunc func(c *gin.Context, maxBytes int64)

// BodyLimit rejects requests declaring more than maxBytes and caps the body
// reader of chunked requests at maxBytes
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return BodyLimitWithReject(maxBytes, RejectTooLarge)
}

// BodyLimitWithReject is BodyLimit answering oversized requests with reject
func BodyLimitWithReject(maxBytes int64, reject RejectFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			reject(c, maxBytes)
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// RejectTooLarge answers 413 with the standard error envelope
func RejectTooLarge(c *gin.Context, maxBytes int64) {
	c.JSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
		dto.ErrCodePayloadTooLarge,
		fmt.Sprintf("Request body exceeds %d bytes", maxBytes),
		GetRequestID(c),
	))
}
