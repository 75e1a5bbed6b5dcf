package feed

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// DefaultSyncInterval applies when a source has no interval configured
const DefaultSyncInterval = 6 * time.Hour

// SourceState is the lifecycle of a feed source
type SourceState string

const (
	SourceStateDraft  SourceState = "draft"
	SourceStateActive SourceState = "active"
	SourceStateError  SourceState = "error"
	SourceStatePaused SourceState = "paused"
)

// IsValid checks if the state is known
func (s SourceState) IsValid() bool {
	switch s {
	case SourceStateDraft, SourceStateActive, SourceStateError, SourceStatePaused:
		return true
	}
	return false
}

// SyncPolicy decides which reconciliation actions a source may take
type SyncPolicy struct {
	CreateNew           bool
	UpdateExisting      bool
	UpdatePrice         bool
	UpdateStock         bool
	UpdateImages        bool
	UpdateDescription   bool
	UpdateCategory      bool
	DeactivateZeroStock bool
}

// DefaultSyncPolicy allows every action except zero-stock deactivation
func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		CreateNew:         true,
		UpdateExisting:    true,
		UpdatePrice:       true,
		UpdateStock:       true,
		UpdateImages:      true,
		UpdateDescription: true,
		UpdateCategory:    true,
	}
}

// XMLProductSource is a configured supplier feed
type XMLProductSource struct {
	shared.BaseEntity
	Name                string
	State               SourceState
	FeedURL             string
	Username            string
	Password            string
	UploadKey           string
	DeclaredEncoding    string
	ProductPath         string
	Template            Template
	SupplierID          *uuid.UUID
	Pricing             PricingPolicy
	Policy              SyncPolicy
	AutoSync            bool
	SyncIntervalMinutes int
	LastSync            *time.Time
	LastError           string
	Mappings            []FieldMapping
	Categories          CategoryPolicy
	CategoryMappings    []CategoryMapping
}

// NewXMLProductSource creates a draft source pointing at a feed URL
func NewXMLProductSource(name, feedURL string) (*XMLProductSource, error) {
	s := &XMLProductSource{
		BaseEntity: shared.NewBaseEntity(),
		Name:       strings.TrimSpace(name),
		State:      SourceStateDraft,
		FeedURL:    strings.TrimSpace(feedURL),
		Template:   TemplateCustom,
		Pricing:    PricingPolicy{Rounding: RoundingNone},
		Policy:     DefaultSyncPolicy(),
		Categories: CategoryPolicy{AutoCreate: true, Separator: DefaultCategorySeparator},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the source configuration. Mapping rules are compiled as part of it.
func (s *XMLProductSource) Validate() error {
	if s.Name == "" {
		return configError("validate source", ErrMissingName)
	}
	if s.FeedURL == "" && s.UploadKey == "" {
		return configError("validate source", ErrMissingFeedLocation)
	}
	if !s.Template.IsValid() {
		return configError("validate source", ErrInvalidTemplate)
	}
	if err := s.Pricing.Validate(); err != nil {
		return err
	}
	if _, err := CompileRules(s.Mappings); err != nil {
		return err
	}
	if _, err := NewCategoryMatcher(s.CategoryMappings); err != nil {
		return err
	}
	if s.ProductPath != "" {
		if _, err := ParsePath(s.ProductPath); err != nil {
			return err
		}
	}
	return nil
}

// UsesUpload reports whether the payload comes from an uploaded document
func (s *XMLProductSource) UsesUpload() bool {
	return s.UploadKey != ""
}

// Location describes where the feed is read from, for logs and errors
func (s *XMLProductSource) Location() string {
	if s.UsesUpload() {
		return "upload:" + s.UploadKey
	}
	return s.FeedURL
}

// CanRun reports whether an import may start
func (s *XMLProductSource) CanRun() error {
	if s.State == SourceStatePaused {
		return ErrSourcePaused
	}
	return s.Validate()
}

// Activate marks the source active
func (s *XMLProductSource) Activate(now time.Time) {
	s.State = SourceStateActive
	s.Touch(now)
}

// Pause stops scheduled and manual imports
func (s *XMLProductSource) Pause(now time.Time) {
	s.State = SourceStatePaused
	s.Touch(now)
}

// MarkError records a failed import
func (s *XMLProductSource) MarkError(detail string, now time.Time) {
	s.State = SourceStateError
	s.LastError = detail
	s.Touch(now)
}

// MarkSynced records a completed import
func (s *XMLProductSource) MarkSynced(now time.Time) {
	s.State = SourceStateActive
	s.LastError = ""
	s.LastSync = &now
	s.Touch(now)
}

// SetUpload points the source at an uploaded document
func (s *XMLProductSource) SetUpload(key string, now time.Time) {
	s.UploadKey = key
	s.Touch(now)
}

// SyncInterval returns the configured interval or the default
func (s *XMLProductSource) SyncInterval() time.Duration {
	if s.SyncIntervalMinutes <= 0 {
		return DefaultSyncInterval
	}
	return time.Duration(s.SyncIntervalMinutes) * time.Minute
}

// IsDueForSync reports whether a scheduled import should run
func (s *XMLProductSource) IsDueForSync(now time.Time) bool {
	if !s.AutoSync || s.State == SourceStatePaused || s.State == SourceStateDraft {
		return false
	}
	if s.LastSync == nil {
		return true
	}
	return !now.Before(s.LastSync.Add(s.SyncInterval()))
}

// EffectiveProductPath returns the configured product path or the template's
func (s *XMLProductSource) EffectiveProductPath() string {
	if s.ProductPath != "" {
		return s.ProductPath
	}
	return s.Template.ProductPath()
}
