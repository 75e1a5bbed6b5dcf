package feed

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Transform is a pure string conversion applied to an extracted value
type Transform string

const (
	TransformNone           Transform = "none"
	TransformUppercase      Transform = "uppercase"
	TransformLowercase      Transform = "lowercase"
	TransformTitlecase      Transform = "titlecase"
	TransformStrip          Transform = "strip"
	TransformNumeric        Transform = "numeric"
	TransformLocalizedPrice Transform = "localized_price"
	TransformHTMLStrip      Transform = "html_strip"
	TransformRegex          Transform = "regex"
)

// IsValid checks if the transform is known. The empty transform means none.
func (t Transform) IsValid() bool {
	switch t {
	case "", TransformNone, TransformUppercase, TransformLowercase, TransformTitlecase,
		TransformStrip, TransformNumeric, TransformLocalizedPrice, TransformHTMLStrip, TransformRegex:
		return true
	}
	return false
}

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	nonNumericPattern = regexp.MustCompile(`[^\d.,]`)
	nonPricePattern   = regexp.MustCompile(`[^\d.,-]`)
	groupRefPattern   = regexp.MustCompile(`\\(\d+)|\\g<(\w+)>`)
)

// Apply runs the transform on value. re and replacement are only used by TransformRegex.
// Empty input stays empty so that defaults can apply afterwards.
func (t Transform) Apply(value string, re *regexp.Regexp, replacement string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	switch t {
	case TransformUppercase:
		return cases.Upper(language.Und).String(value)
	case TransformLowercase:
		return cases.Lower(language.Und).String(value)
	case TransformTitlecase:
		return cases.Title(language.Und).String(value)
	case TransformStrip:
		return collapseSpace(value)
	case TransformNumeric:
		return orRaw(normalizeNumber(strings.ReplaceAll(nonNumericPattern.ReplaceAllString(value, ""), ",", ".")), value)
	case TransformLocalizedPrice:
		return orRaw(LocalizedPrice(value), value)
	case TransformHTMLStrip:
		return collapseSpace(htmlTagPattern.ReplaceAllString(value, ""))
	case TransformRegex:
		if re == nil {
			return value
		}
		return re.ReplaceAllString(value, RegexReplacement(replacement))
	default:
		return value
	}
}

// LocalizedPrice converts a Turkish formatted amount ("1.234,56 TL") to a
// plain decimal string ("1234.56"). Dots group thousands, the comma separates decimals.
func LocalizedPrice(value string) string {
	v := nonPricePattern.ReplaceAllString(value, "")
	v = strings.ReplaceAll(v, ".", "")
	v = strings.ReplaceAll(v, ",", ".")
	return normalizeNumber(v)
}

// normalizeNumber returns the canonical decimal form, or the input when it is not a number
func normalizeNumber(v string) string {
	if v == "" {
		return ""
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return v
	}
	return d.String()
}

// orRaw keeps the raw input when a numeric transform found no digits,
// so the value later fails to parse instead of disappearing.
func orRaw(converted, raw string) string {
	if converted == "" {
		return raw
	}
	return converted
}

// RegexReplacement rewrites \1 and \g<name> group references to the ${1} form
func RegexReplacement(s string) string {
	return groupRefPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := groupRefPattern.FindStringSubmatch(m)
		if sub[1] != "" {
			return "${" + sub[1] + "}"
		}
		return "${" + sub[2] + "}"
	})
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
