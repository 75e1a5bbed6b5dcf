// Package feedexport publishes catalog products as XML feeds for resellers and marketplaces.
package feedexport

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/feed"
)

// Feed is a rendered export document
type Feed struct {
	Name     string
	Products int
	Body     []byte
}

// Info summarizes an export for the people consuming it
type Info struct {
	Name        string            `json:"name"`
	Format      feed.ExportFormat `json:"format"`
	Products    int               `json:"product_count"`
	LastAccess  *time.Time        `json:"last_access"`
	AccessCount int               `json:"access_count"`
	Currency    string            `json:"currency"`
}

// ExportService renders product exports
type ExportService struct {
	exports  feed.ExportRepository
	products feed.ProductCatalog
	now      func() time.Time
	logger   *zap.Logger
}

// ExportServiceConfig contains the dependencies of ExportService
type ExportServiceConfig struct {
	Exports  feed.ExportRepository
	Products feed.ProductCatalog
	Now      func() time.Time
	Logger   *zap.Logger
}

// NewExportService creates an export service
func NewExportService(cfg ExportServiceConfig) *ExportService {
	s := &ExportService{
		exports:  cfg.Exports,
		products: cfg.Products,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Render builds the export addressed by token. Unknown or inactive tokens
// return feed.ErrExportNotFound and a wrong password feed.ErrExportForbidden.
// Every served document is counted on the export.
func (s *ExportService) Render(ctx context.Context, token, password string) (*Feed, error) {
	export, err := s.open(ctx, token, password)
	if err != nil {
		return nil, err
	}
	products, err := s.products.ListProducts(ctx, export.Query())
	if err != nil {
		return nil, fmt.Errorf("list products for export %s: %w", export.Name, err)
	}

	root, err := build(export, products)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode export %s: %w", export.Name, err)
	}

	now := s.now()
	if err := s.exports.RecordAccess(ctx, export.ID, now); err != nil {
		s.logger.Warn("Failed to record export access", zap.String("export", export.Name), zap.Error(err))
	}
	s.logger.Info("Served product export",
		zap.String("export", export.Name),
		zap.String("format", string(export.Format)),
		zap.Int("products", len(products)),
		zap.Int("bytes", buf.Len()),
	)
	return &Feed{Name: export.Name, Products: len(products), Body: buf.Bytes()}, nil
}

// Describe reports the export's settings and how many products it currently lists
func (s *ExportService) Describe(ctx context.Context, token, password string) (*Info, error) {
	export, err := s.open(ctx, token, password)
	if err != nil {
		return nil, err
	}
	products, err := s.products.ListProducts(ctx, export.Query())
	if err != nil {
		return nil, fmt.Errorf("list products for export %s: %w", export.Name, err)
	}
	return &Info{
		Name:        export.Name,
		Format:      export.Format,
		Products:    len(products),
		LastAccess:  export.LastAccess,
		AccessCount: export.AccessCount,
		Currency:    export.CurrencyCode(),
	}, nil
}

func (s *ExportService) open(ctx context.Context, token, password string) (*feed.ProductExport, error) {
	if token == "" {
		return nil, feed.ErrExportNotFound
	}
	export, err := s.exports.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := export.Authorize(password); err != nil {
		s.logger.Warn("Rejected export request", zap.String("export", export.Name), zap.Error(err))
		return nil, err
	}
	return export, nil
}
