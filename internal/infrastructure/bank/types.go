package bank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/shared"
)

const queryDateLayout = "2006-01-02"

// flexString accepts a JSON string or number
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = flexString(n.String())
	return nil
}

// flexDecimal accepts a JSON number or a numeric string
type flexDecimal struct {
	decimal.Decimal
	Valid bool
}

func (d *flexDecimal) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*d = flexDecimal{}
		return nil
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(string(s), " ", ""))
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*d = flexDecimal{Decimal: v, Valid: true}
	return nil
}

func (d flexDecimal) ptr() *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// flexDate accepts a date or a timestamp string
type flexDate struct {
	time.Time
}

var dateLayouts = []string{
	queryDateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006",
}

func (d *flexDate) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*d = flexDate{}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, string(s)); err == nil {
			*d = flexDate{Time: t}
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

// firstString returns the first non-empty value
func firstString(values ...flexString) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

func firstDecimal(values ...flexDecimal) flexDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return flexDecimal{}
}

func firstDate(values ...flexDate) time.Time {
	for _, v := range values {
		if !v.IsZero() {
			return v.Time
		}
	}
	return time.Time{}
}

// decodeItems decodes each raw item on its own so one malformed entry does not
// hide its peers. Malformed entries come back as data errors.
func decodeItems[T any](logger *zap.Logger, bank banking.BankType, what string, raw []json.RawMessage) ([]T, []error) {
	items := make([]T, 0, len(raw))
	var bad []error
	for i, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			derr := shared.NewIngestError(shared.ErrData, fmt.Sprintf("decode %s %d", what, i), err)
			logger.Warn("malformed bank item",
				zap.String("bank", bank.String()),
				zap.String("item", what),
				zap.Int("index", i),
				zap.Error(derr),
			)
			bad = append(bad, derr)
			continue
		}
		items = append(items, item)
	}
	return items, bad
}
