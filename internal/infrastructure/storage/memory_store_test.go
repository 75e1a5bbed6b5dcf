package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDocumentStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()

	t.Run("round trip", func(t *testing.T) {
		data := []byte("<Products/>")
		require.NoError(t, s.Upload(ctx, "sources/a/feed.xml", data, "application/xml"))
		data[0] = 'X'

		got, err := s.Download(ctx, "sources/a/feed.xml")
		require.NoError(t, err)
		assert.Equal(t, "<Products/>", string(got))
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Download(ctx, "sources/missing.xml")
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, s.Upload(ctx, "", nil, ""), ErrEmptyKey)
		_, err := s.Download(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "k", []byte("v"), ""))
		require.NoError(t, s.Delete(ctx, "k"))
		_, err := s.Download(ctx, "k")
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})
}
