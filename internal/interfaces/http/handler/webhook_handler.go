package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	qcommerceapp "github.com/mobilsoft/connectors/internal/application/qcommerce"
)

// MaxWebhookPayloadSize bounds quick-commerce webhook bodies (1MB)
const MaxWebhookPayloadSize = 1 << 20

// WebhookProcessor processes one raw quick-commerce delivery
type WebhookProcessor interface {
	Process(ctx context.Context, platform string, headers http.Header, body []byte) *qcommerceapp.WebhookResponse
}

// WebhookHandler receives quick-commerce platform webhooks.
// These endpoints are called by the platforms and authenticate with the channel secret.
type WebhookHandler struct {
	BaseHandler
	webhooks WebhookProcessor
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandleWebhook godoc
//
//	@Summary	Receive a quick-commerce webhook
//	@Tags		webhooks
//	@Param		platform	path		string	true	"getir, yemeksepeti or vigo"
//	@Success	200			{object}	qcommerceapp.WebhookResponse
//	@Failure	413			{object}	qcommerceapp.WebhookResponse
//	@Failure	503			{object}	qcommerceapp.WebhookResponse
//	@Router		/webhook/qcommerce/{platform} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, qcommerceapp.WebhookResponse{
			Status:  qcommerceapp.StatusError,
			Message: "Failed to read request body",
		})
		return
	}
	if len(payload) > MaxWebhookPayloadSize {
		RejectOversizedWebhook(c, MaxWebhookPayloadSize)
		return
	}

	// platforms redeliver anything but 200
	resp := h.webhooks.Process(c.Request.Context(), c.Param("platform"), c.Request.Header, payload)
	if resp.Retry {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RejectOversizedWebhook answers 413 in the webhook envelope the platforms parse
func RejectOversizedWebhook(c *gin.Context, _ int64) {
	c.JSON(http.StatusRequestEntityTooLarge, qcommerceapp.WebhookResponse{
		Status:  qcommerceapp.StatusError,
		Message: "Payload too large",
	})
}
