package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

func TestNewXMLProductSource(t *testing.T) {
	s, err := NewXMLProductSource("Supplier A", "https://supplier.example/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, SourceStateDraft, s.State)
	assert.True(t, s.Policy.CreateNew)
	assert.False(t, s.UsesUpload())

	_, err = NewXMLProductSource("", "https://supplier.example/feed.xml")
	assert.ErrorIs(t, err, ErrMissingName)

	_, err = NewXMLProductSource("Supplier A", "")
	assert.ErrorIs(t, err, ErrMissingFeedLocation)
	assert.ErrorIs(t, err, shared.ErrConfig)
}

func TestXMLProductSource_Lifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewXMLProductSource("Supplier A", "https://supplier.example/feed.xml")
	require.NoError(t, err)
	s.AutoSync = true

	assert.False(t, s.IsDueForSync(now), "draft sources are not scheduled")

	s.Activate(now)
	assert.True(t, s.IsDueForSync(now))

	s.MarkError("HTTP 500", now)
	assert.Equal(t, SourceStateError, s.State)
	assert.Equal(t, "HTTP 500", s.LastError)

	s.MarkSynced(now)
	assert.Equal(t, SourceStateActive, s.State)
	assert.Empty(t, s.LastError)
	assert.False(t, s.IsDueForSync(now.Add(time.Hour)))
	assert.True(t, s.IsDueForSync(now.Add(DefaultSyncInterval)))

	s.Pause(now)
	assert.ErrorIs(t, s.CanRun(), ErrSourcePaused)
}

func TestXMLProductSource_ValidateMappings(t *testing.T) {
	s, err := NewXMLProductSource("Supplier A", "https://supplier.example/feed.xml")
	require.NoError(t, err)

	s.Mappings = []FieldMapping{{Target: TargetName, XMLPath: "Name[]/X"}}
	assert.ErrorIs(t, s.Validate(), ErrInvalidPath)

	s.Mappings = nil
	s.Template = TemplateTicimax
	assert.Equal(t, "Products/Product", s.EffectiveProductPath())
	s.ProductPath = "Urunler/Urun"
	assert.Equal(t, "Urunler/Urun", s.EffectiveProductPath())
}
