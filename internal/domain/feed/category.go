package feed

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultCategorySeparator splits a feed category path into levels
	DefaultCategorySeparator = " > "
	// CategoryPathSeparator joins catalog category levels into a complete name
	CategoryPathSeparator = " / "
)

// CategoryMatch is how a category mapping compares against the feed value
type CategoryMatch string

const (
	CategoryMatchExact      CategoryMatch = "exact"
	CategoryMatchContains   CategoryMatch = "contains"
	CategoryMatchStartsWith CategoryMatch = "startswith"
	CategoryMatchRegex      CategoryMatch = "regex"
)

// IsValid checks if the match type is known
func (m CategoryMatch) IsValid() bool {
	switch m {
	case CategoryMatchExact, CategoryMatchContains, CategoryMatchStartsWith, CategoryMatchRegex:
		return true
	}
	return false
}

// Category is a catalog product category
type Category struct {
	ID           uuid.UUID
	Name         string
	ParentID     *uuid.UUID
	CompleteName string
}

// CategoryRepository stores catalog categories.
// FindChild matches names case-insensitively and returns ErrCategoryNotFound on a miss.
type CategoryRepository interface {
	FindChild(ctx context.Context, parentID *uuid.UUID, name string) (*Category, error)
	Create(ctx context.Context, category *Category) error
}

// CategoryPolicy decides how feed categories land in the catalog
type CategoryPolicy struct {
	AutoCreate bool
	Separator  string
	// Default is the complete name used when the feed carries no usable category
	Default string
}

// Levels splits a feed category into trimmed, non-empty levels
func (p CategoryPolicy) Levels(raw string) []string {
	sep := p.Separator
	if sep == "" {
		sep = DefaultCategorySeparator
	}
	if strings.TrimSpace(sep) != "" {
		sep = strings.TrimSpace(sep)
	}
	var levels []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			levels = append(levels, part)
		}
	}
	return levels
}

// CategoryMapping sends a feed category to a catalog category path
type CategoryMapping struct {
	ID          uuid.UUID
	SourceID    uuid.UUID
	Sequence    int
	XMLCategory string
	// Category is the catalog path, levels joined by CategoryPathSeparator
	Category  string
	MatchType CategoryMatch
	Active    bool
}

// Validate checks the mapping. Every failure is a ConfigError.
func (m CategoryMapping) Validate() error {
	if strings.TrimSpace(m.XMLCategory) == "" {
		return configError("validate category mapping", ErrMissingXMLCategory)
	}
	if strings.TrimSpace(m.Category) == "" {
		return configError("validate category mapping", fmt.Errorf("%w for %q", ErrMissingCategory, m.XMLCategory))
	}
	if !m.MatchType.IsValid() {
		return configError("validate category mapping", fmt.Errorf("%w: %q", ErrInvalidCategoryMatch, m.MatchType))
	}
	if m.MatchType == CategoryMatchRegex {
		if _, err := regexp.Compile(m.XMLCategory); err != nil {
			return configError("validate category mapping", fmt.Errorf("%w: %v", ErrInvalidRegex, err))
		}
	}
	return nil
}

// Levels splits the target catalog path
func (m CategoryMapping) Levels() []string {
	return CategoryPolicy{Separator: CategoryPathSeparator}.Levels(m.Category)
}

// CategoryMatcher finds the mapping for a feed category value
type CategoryMatcher struct {
	exact  map[string]*CategoryMapping
	others []*CategoryMapping
	regex  map[*CategoryMapping]*regexp.Regexp
}

// NewCategoryMatcher prepares the active mappings. Exact mappings win; the
// others are tried in sequence order. Regex patterns match from the start of the value.
func NewCategoryMatcher(mappings []CategoryMapping) (*CategoryMatcher, error) {
	sorted := make([]CategoryMapping, 0, len(mappings))
	for _, m := range mappings {
		if m.Active {
			sorted = append(sorted, m)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	cm := &CategoryMatcher{
		exact: make(map[string]*CategoryMapping),
		regex: make(map[*CategoryMapping]*regexp.Regexp),
	}
	for i := range sorted {
		m := &sorted[i]
		if err := m.Validate(); err != nil {
			return nil, err
		}
		key := strings.TrimSpace(m.XMLCategory)
		switch m.MatchType {
		case CategoryMatchExact:
			if _, dup := cm.exact[key]; !dup {
				cm.exact[key] = m
			}
		case CategoryMatchRegex:
			cm.regex[m] = regexp.MustCompile(`^(?:` + m.XMLCategory + `)`)
			cm.others = append(cm.others, m)
		default:
			cm.others = append(cm.others, m)
		}
	}
	return cm, nil
}

// Find returns the mapping for the value, or nil
func (cm *CategoryMatcher) Find(value string) *CategoryMapping {
	value = strings.TrimSpace(value)
	if cm == nil || value == "" {
		return nil
	}
	if m, ok := cm.exact[value]; ok {
		return m
	}
	for _, m := range cm.others {
		switch m.MatchType {
		case CategoryMatchContains:
			if strings.Contains(value, m.XMLCategory) {
				return m
			}
		case CategoryMatchStartsWith:
			if strings.HasPrefix(value, m.XMLCategory) {
				return m
			}
		case CategoryMatchRegex:
			if cm.regex[m].MatchString(value) {
				return m
			}
		}
	}
	return nil
}
