package handler

import (
	"context"
	"encoding/xml"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mobilsoft/connectors/internal/application/feedexport"
	"github.com/mobilsoft/connectors/internal/domain/feed"
)

const xmlContentType = "application/xml; charset=utf-8"

// ProductExportService renders published product exports
type ProductExportService interface {
	Render(ctx context.Context, token, password string) (*feedexport.Feed, error)
	Describe(ctx context.Context, token, password string) (*feedexport.Info, error)
}

// ExportHandler serves product exports to resellers and marketplaces.
// These endpoints are public and authenticate with the export token and optional password.
type ExportHandler struct {
	BaseHandler
	exports ProductExportService
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(exports ProductExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Export godoc
//
//	@Summary	Download a product export as XML
//	@Tags		xml-exports
//	@Produce	xml
//	@Param		token	path	string	true	"Export access token"
//	@Param		pass	query	string	false	"Export password"
//	@Success	200
//	@Failure	401
//	@Router		/xml/export/{token} [get]
func (h *ExportHandler) Export(c *gin.Context) {
	out, err := h.exports.Render(c.Request.Context(), c.Param("token"), c.Query("pass"))
	if err != nil {
		status, message := exportFailure(err)
		c.Data(status, xmlContentType, xmlError(message))
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": out.Name + ".xml"}))
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, xmlContentType, out.Body)
}

// Info godoc
//
//	@Summary	Describe a product export
//	@Tags		xml-exports
//	@Param		token	path		string	true	"Export access token"
//	@Param		pass	query		string	false	"Export password"
//	@Success	200		{object}	APIResponse[feedexport.Info]
//	@Failure	401		{object}	ErrorResponse
//	@Router		/xml/export/{token}/info [get]
func (h *ExportHandler) Info(c *gin.Context) {
	info, err := h.exports.Describe(c.Request.Context(), c.Param("token"), c.Query("pass"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, info)
}

func exportFailure(err error) (int, string) {
	switch {
	case errors.Is(err, feed.ErrExportNotFound):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, feed.ErrExportForbidden):
		return http.StatusUnauthorized, "Invalid password"
	}
	return http.StatusInternalServerError, "Export failed"
}

func xmlError(message string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><error>`)
	_ = xml.EscapeText(&b, []byte(message))
	b.WriteString("</error>")
	return []byte(b.String())
}
