package handler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mobilsoft/connectors/internal/application/feedimport"
	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
)

// MaxFeedUploadSize bounds an uploaded feed document (50MB)
const MaxFeedUploadSize = 50 << 20

// FeedImportService is the feed import surface used by the handler
type FeedImportService interface {
	Run(ctx context.Context, id uuid.UUID) (*runlog.RunLog, error)
	Preview(ctx context.Context, id uuid.UUID, limit int) ([]feedimport.PreviewItem, error)
	TestConnection(ctx context.Context, id uuid.UUID) (*feedimport.ConnectionReport, error)
	UploadDocument(ctx context.Context, id uuid.UUID, filename string, data []byte) (*feed.XMLProductSource, error)
}

// XMLSourceHandler handles supplier XML feed endpoints
type XMLSourceHandler struct {
	BaseHandler
	imports FeedImportService
	runs    RunHistory
}

// NewXMLSourceHandler creates a new XMLSourceHandler
func NewXMLSourceHandler(imports FeedImportService, runs RunHistory) *XMLSourceHandler {
	return &XMLSourceHandler{imports: imports, runs: runs}
}

// XMLSourceResponse is the API view of a feed source. Feed credentials are never exposed.
type XMLSourceResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	State       string     `json:"state"`
	FeedURL     string     `json:"feed_url,omitempty"`
	UploadKey   string     `json:"upload_key,omitempty"`
	Template    string     `json:"template"`
	ProductPath string     `json:"product_path,omitempty"`
	AutoSync    bool       `json:"auto_sync"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

func toXMLSourceResponse(s *feed.XMLProductSource) XMLSourceResponse {
	return XMLSourceResponse{
		ID:          s.ID,
		Name:        s.Name,
		State:       string(s.State),
		FeedURL:     s.FeedURL,
		UploadKey:   s.UploadKey,
		Template:    string(s.Template),
		ProductPath: s.ProductPath,
		AutoSync:    s.AutoSync,
		LastSync:    s.LastSync,
		LastError:   s.LastError,
	}
}

// PreviewQuery bounds a preview
type PreviewQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

// Import godoc
//
//	@Summary	Run the feed import now
//	@Tags		xml-sources
//	@Param		id	path		string	true	"Source ID"
//	@Success	200	{object}	APIResponse[RunLogResponse]
//	@Failure	409	{object}	ErrorResponse	"An import is already running"
//	@Router		/xml-sources/{id}/import [post]
func (h *XMLSourceHandler) Import(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	run, err := h.imports.Run(c.Request.Context(), id)
	if err != nil {
		if run == nil {
			h.HandleError(c, err)
			return
		}
		h.HandleErrorWithData(c, err, "", toRunLogResponse(run))
		return
	}
	h.Success(c, toRunLogResponse(run))
}

// Preview godoc
//
//	@Summary	Map the first records of the feed without importing them
//	@Tags		xml-sources
//	@Param		id		path		string	true	"Source ID"
//	@Param		limit	query		int		false	"Number of records (max 50)"
//	@Success	200		{object}	APIResponse[[]feedimport.PreviewItem]
//	@Router		/xml-sources/{id}/preview [get]
func (h *XMLSourceHandler) Preview(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var q PreviewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = feedimport.DefaultPreviewLimit
	}
	items, err := h.imports.Preview(c.Request.Context(), id, q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, items, int64(len(items)), q.Limit)
}

// TestConnection fetches and parses the feed without importing it
func (h *XMLSourceHandler) TestConnection(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	report, err := h.imports.TestConnection(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Upload godoc
//
//	@Summary	Upload a feed document for the source
//	@Tags		xml-sources
//	@Accept		multipart/form-data
//	@Param		id		path		string	true	"Source ID"
//	@Param		file	formData	file	true	"XML document"
//	@Success	200		{object}	APIResponse[XMLSourceResponse]
//	@Router		/xml-sources/{id}/upload [post]
func (h *XMLSourceHandler) Upload(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	if header.Size > MaxFeedUploadSize {
		h.BadRequest(c, "file exceeds the upload limit")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxFeedUploadSize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read uploaded file")
		return
	}
	if len(data) > MaxFeedUploadSize {
		h.BadRequest(c, "file exceeds the upload limit")
		return
	}

	source, err := h.imports.UploadDocument(c.Request.Context(), id, header.Filename, data)
	if err != nil {
		var parseErr *feed.ParseError
		if errors.Is(err, feedimport.ErrEmptyDocument) || errors.As(err, &parseErr) {
			h.BadRequest(c, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, toXMLSourceResponse(source))
}

// Runs lists the most recent imports of the source
func (h *XMLSourceHandler) Runs(c *gin.Context) {
	listRuns(&h.BaseHandler, c, h.runs, runlog.SourceKindXMLSource)
}
