package feed

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"
)

// FieldMapping is one configured rule: where to read a value and how to convert it
type FieldMapping struct {
	ID           uuid.UUID
	SourceID     uuid.UUID
	Sequence     int
	Target       TargetField
	XMLPath      string
	Transform    Transform
	RegexPattern string
	RegexReplace string
	DefaultValue string
	IsRequired   bool
}

// Rule is a validated FieldMapping ready for evaluation
type Rule struct {
	FieldMapping
	Path  Path
	regex *regexp.Regexp
}

// Compile validates the mapping and prepares its path and regex.
// Every failure is a ConfigError.
func (m FieldMapping) Compile() (*Rule, error) {
	if !m.Target.IsValid() {
		return nil, configError("compile mapping", fmt.Errorf("%w: %q", ErrInvalidTarget, m.Target))
	}
	if !m.Transform.IsValid() {
		return nil, configError("compile mapping", fmt.Errorf("%w: %q", ErrInvalidTransform, m.Transform))
	}
	path, err := ParsePath(m.XMLPath)
	if err != nil {
		return nil, err
	}

	rule := &Rule{FieldMapping: m, Path: path}
	if m.Transform == TransformRegex {
		if m.RegexPattern == "" {
			return nil, configError("compile mapping", fmt.Errorf("%w: pattern is empty for %s", ErrInvalidRegex, m.Target))
		}
		re, err := regexp.Compile(m.RegexPattern)
		if err != nil {
			return nil, configError("compile mapping", fmt.Errorf("%w: %v", ErrInvalidRegex, err))
		}
		rule.regex = re
	}
	return rule, nil
}

// Convert applies the rule's transform and default to a raw value
func (r *Rule) Convert(raw string) string {
	v := r.Transform.Apply(raw, r.regex, r.RegexReplace)
	if v == "" {
		v = r.DefaultValue
	}
	return v
}

// CompileRules compiles mappings ordered by sequence.
// The first invalid mapping aborts with a ConfigError.
func CompileRules(mappings []FieldMapping) ([]*Rule, error) {
	sorted := make([]FieldMapping, len(mappings))
	copy(sorted, mappings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	rules := make([]*Rule, 0, len(sorted))
	for _, m := range sorted {
		r, err := m.Compile()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
