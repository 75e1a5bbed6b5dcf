package feed

import (
	"errors"
	"fmt"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

var (
	ErrSourceNotFound       = errors.New("feed: source not found")
	ErrProductNotFound      = errors.New("feed: product not found")
	ErrMissingName          = errors.New("feed: source name is required")
	ErrMissingFeedLocation  = errors.New("feed: either a feed URL or an uploaded document is required")
	ErrSourcePaused         = errors.New("feed: source is paused")
	ErrInvalidPath          = errors.New("feed: invalid xml path")
	ErrInvalidTarget        = errors.New("feed: invalid target field")
	ErrInvalidTransform     = errors.New("feed: invalid transform")
	ErrInvalidRegex         = errors.New("feed: invalid regex pattern")
	ErrInvalidPriceBounds   = errors.New("feed: minimum price exceeds maximum price")
	ErrInvalidTemplate      = errors.New("feed: unknown template")
	ErrInvalidRounding      = errors.New("feed: unknown price rounding")
	ErrCategoryNotFound     = errors.New("feed: category not found")
	ErrMissingXMLCategory   = errors.New("feed: category mapping needs a feed category")
	ErrMissingCategory      = errors.New("feed: category mapping needs a catalog category")
	ErrInvalidCategoryMatch = errors.New("feed: unknown category match type")
	ErrExportNotFound       = errors.New("feed: export not found")
	ErrExportForbidden      = errors.New("feed: export password does not match")
	ErrMissingAccessToken   = errors.New("feed: export access token is required")
	ErrInvalidExportFilter  = errors.New("feed: unknown export filter")
	ErrInvalidExportFormat  = errors.New("feed: unknown export format")
	ErrInvalidPriceField    = errors.New("feed: unknown export price field")
	ErrInvalidAdjustment    = errors.New("feed: unknown price adjustment")
	ErrNegativeMinStock     = errors.New("feed: minimum stock cannot be negative")
)

// FetchError reports a failure to obtain the raw feed document
type FetchError struct {
	Location   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed: fetch %s: HTTP %d: %v", e.Location, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("feed: fetch %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports a feed document that could not be decoded or parsed
type ParseError struct {
	Location string
	Offset   int64
	Err      error
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("feed: parse %s at byte %d: %v", e.Location, e.Offset, e.Err)
	}
	return fmt.Sprintf("feed: parse %s: %v", e.Location, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func configError(op string, err error) error {
	return shared.NewIngestError(shared.ErrConfig, op, err)
}
