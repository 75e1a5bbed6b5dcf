package xmlfeed

import (
	"fmt"
	"strings"

	"github.com/mobilsoft/connectors/internal/domain/feed"
)

// imageAttrFallbacks are read when an image element carries its URL in an attribute
var imageAttrFallbacks = []string{"url", "src", "href"}

// Map evaluates the rules against one product element.
// Rules are applied in order; for scalar targets the first non-empty value wins.
func Map(el *Element, rules []*feed.Rule) *feed.MappedRecord {
	rec := feed.NewMappedRecord()
	for _, r := range rules {
		values := selectValues(el, r)
		converted := make([]string, 0, len(values))
		for _, v := range values {
			if c := r.Convert(v); c != "" {
				converted = append(converted, c)
			}
		}
		if len(converted) == 0 && r.DefaultValue != "" {
			converted = append(converted, r.DefaultValue)
		}

		if r.Path.List || r.Target.IsList() {
			rec.Append(r.Target, converted...)
		}
		if len(converted) > 0 && !r.Target.IsList() {
			rec.Set(r.Target, converted[0])
		}
	}

	for _, r := range rules {
		if r.IsRequired && !rec.Has(r.Target) && !containsTarget(rec.Missing, r.Target) {
			rec.Missing = append(rec.Missing, r.Target)
		}
	}
	for _, r := range rules {
		if !r.Target.IsNumeric() {
			continue
		}
		if _, _, err := rec.Decimal(r.Target); err != nil {
			msg := fmt.Sprintf("%s: cannot parse %q as a number", r.Target, rec.Get(r.Target))
			if !containsString(rec.Errors, msg) {
				rec.Errors = append(rec.Errors, msg)
			}
		}
	}
	return rec
}

// selectValues returns the raw values the rule's path points at.
// Scalar paths follow the first matching child at each step; list paths
// fan out over every match so repeated wrappers contribute all their items.
func selectValues(el *Element, r *feed.Rule) []string {
	p := r.Path
	if len(p.Steps) == 0 {
		if v, ok := el.Attr(p.Attr); ok {
			return []string{v}
		}
		return nil
	}

	nodes := []*Element{el}
	for _, step := range p.Steps {
		var next []*Element
		for _, n := range nodes {
			if p.List {
				next = append(next, n.ChildrenNamed(step)...)
			} else if c := n.Child(step); c != nil {
				next = append(next, c)
			}
		}
		if len(next) == 0 {
			return nil
		}
		nodes = next
	}

	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if p.IsAttr() {
			if v, ok := n.Attr(p.Attr); ok {
				values = append(values, v)
			}
			continue
		}
		v := n.Text
		if v == "" && r.Target.IsImage() {
			v = imageAttr(n)
		}
		values = append(values, v)
	}
	return values
}

func imageAttr(n *Element) string {
	for _, name := range imageAttrFallbacks {
		if v, ok := n.Attr(name); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func containsTarget(list []feed.TargetField, t feed.TargetField) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
