package feed

import (
	"fmt"
	"strings"
)

// Path is a parsed mapping path relative to a product element.
//
// Supported forms:
//
//	A/B/C    text of the first matching element at each step
//	A/@attr  attribute of the resolved element (attr is only allowed last)
//	A/B[]    every element reached through every match of each step, as a list
type Path struct {
	Steps []string
	Attr  string
	List  bool
	raw   string
}

// ParsePath validates and parses a mapping path.
// Namespace prefixes ("g:id") are reduced to the local name.
func ParsePath(raw string) (Path, error) {
	p := Path{raw: strings.TrimSpace(raw)}
	if p.raw == "" {
		return Path{}, pathError(raw, "empty path")
	}

	parts := strings.Split(p.raw, "/")
	for i, part := range parts {
		last := i == len(parts)-1
		if part == "" {
			return Path{}, pathError(raw, "empty segment")
		}

		if strings.HasPrefix(part, "@") {
			if !last {
				return Path{}, pathError(raw, "attribute must be the last segment")
			}
			name := part[1:]
			if strings.HasSuffix(name, "[]") {
				return Path{}, pathError(raw, "attribute cannot be a list")
			}
			if !validName(name) {
				return Path{}, pathError(raw, fmt.Sprintf("invalid attribute name %q", name))
			}
			p.Attr = localName(name)
			continue
		}

		if strings.HasSuffix(part, "[]") {
			if !last {
				return Path{}, pathError(raw, "list marker is only allowed on the last segment")
			}
			part = strings.TrimSuffix(part, "[]")
			p.List = true
		}
		if !validName(part) {
			return Path{}, pathError(raw, fmt.Sprintf("invalid element name %q", part))
		}
		p.Steps = append(p.Steps, localName(part))
	}
	return p, nil
}

// MustParsePath is ParsePath for static paths; it panics on error
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the path as written
func (p Path) String() string {
	return p.raw
}

// IsAttr reports whether the path selects an attribute
func (p Path) IsAttr() bool {
	return p.Attr != ""
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch r {
		case '[', ']', '@', '/', '*', '(', ')', '=', '\'', '"', ' ', '\t':
			return false
		}
	}
	return !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, ":")
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func pathError(raw, reason string) error {
	return configError("parse path", fmt.Errorf("%w %q: %s", ErrInvalidPath, raw, reason))
}
