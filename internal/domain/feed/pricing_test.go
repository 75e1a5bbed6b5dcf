package feed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestPricingPolicy_Apply(t *testing.T) {
	tests := []struct {
		name   string
		policy PricingPolicy
		cost   string
		want   string
	}{
		{
			name:   "markup clamped to max",
			policy: PricingPolicy{MarkupPercent: dec("50"), MinPrice: decPtr("120"), MaxPrice: decPtr("140")},
			cost:   "100",
			want:   "140",
		},
		{
			name:   "markup raised to min",
			policy: PricingPolicy{MarkupPercent: dec("10"), MinPrice: decPtr("120")},
			cost:   "100",
			want:   "120",
		},
		{
			name:   "percent then fixed",
			policy: PricingPolicy{MarkupPercent: dec("30"), MarkupFixed: dec("5")},
			cost:   "100",
			want:   "135",
		},
		{
			name:   "round to 99",
			policy: PricingPolicy{MarkupPercent: dec("30"), Rounding: Rounding99},
			cost:   "99.50",
			want:   "129.99",
		},
		{
			name:   "round to 90",
			policy: PricingPolicy{MarkupFixed: dec("0.4"), Rounding: Rounding90},
			cost:   "10",
			want:   "10.9",
		},
		{
			name:   "round to whole",
			policy: PricingPolicy{Rounding: Rounding00},
			cost:   "10.5",
			want:   "11",
		},
		{
			name:   "no cost",
			policy: PricingPolicy{MarkupPercent: dec("50"), MinPrice: decPtr("120")},
			cost:   "0",
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Apply(dec(tt.cost))
			assert.True(t, dec(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestPricingPolicy_Validate(t *testing.T) {
	assert.NoError(t, PricingPolicy{}.Validate())

	err := PricingPolicy{MinPrice: decPtr("200"), MaxPrice: decPtr("100")}.Validate()
	assert.ErrorIs(t, err, ErrInvalidPriceBounds)
	assert.ErrorIs(t, err, shared.ErrConfig)
}
