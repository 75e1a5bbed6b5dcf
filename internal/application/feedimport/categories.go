package feedimport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/feed"
)

// CategoryResolver turns a feed category into a catalog category complete name.
// Resolved paths are cached for the lifetime of the resolver.
type CategoryResolver struct {
	categories feed.CategoryRepository
	mu         sync.Mutex
	cache      map[string]*feed.Category
	logger     *zap.Logger
}

// NewCategoryResolver creates a resolver backed by the category repository
func NewCategoryResolver(categories feed.CategoryRepository, logger *zap.Logger) *CategoryResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryResolver{
		categories: categories,
		cache:      make(map[string]*feed.Category),
		logger:     logger,
	}
}

// Resolve applies the source's category mappings, then walks the feed category
// levels in the catalog. Missing levels are created when the source allows it;
// otherwise the deepest existing level is used. An empty result falls back to
// the source's default category.
func (r *CategoryResolver) Resolve(ctx context.Context, source *feed.XMLProductSource, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return source.Categories.Default, nil
	}
	matcher, err := feed.NewCategoryMatcher(source.CategoryMappings)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m := matcher.Find(raw); m != nil {
		c, err := r.walk(ctx, m.Levels(), true)
		if err != nil {
			return "", err
		}
		if c != nil {
			return c.CompleteName, nil
		}
	}

	c, err := r.walk(ctx, source.Categories.Levels(raw), source.Categories.AutoCreate)
	if err != nil {
		return "", err
	}
	if c == nil {
		r.logger.Debug("Feed category not in catalog, using default",
			zap.String("source", source.Name),
			zap.String("category", raw),
		)
		return source.Categories.Default, nil
	}
	return c.CompleteName, nil
}

func (r *CategoryResolver) walk(ctx context.Context, levels []string, create bool) (*feed.Category, error) {
	var parent *feed.Category
	path := make([]string, 0, len(levels))
	for _, name := range levels {
		path = append(path, name)
		key := strings.ToLower(strings.Join(path, feed.CategoryPathSeparator))
		if c, ok := r.cache[key]; ok {
			parent = c
			continue
		}

		var parentID *uuid.UUID
		if parent != nil {
			parentID = &parent.ID
		}
		c, err := r.categories.FindChild(ctx, parentID, name)
		switch {
		case errors.Is(err, feed.ErrCategoryNotFound):
			if !create {
				return parent, nil
			}
			c = &feed.Category{ID: uuid.New(), Name: name, ParentID: parentID, CompleteName: completeName(parent, name)}
			if err := r.categories.Create(ctx, c); err != nil {
				return nil, fmt.Errorf("create category %q: %w", c.CompleteName, err)
			}
			r.logger.Info("Created catalog category", zap.String("category", c.CompleteName))
		case err != nil:
			return nil, fmt.Errorf("find category %q: %w", name, err)
		}
		r.cache[key] = c
		parent = c
	}
	return parent, nil
}

func completeName(parent *feed.Category, name string) string {
	if parent == nil {
		return name
	}
	return parent.CompleteName + feed.CategoryPathSeparator + name
}
