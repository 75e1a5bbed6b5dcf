package feed

import (
	"github.com/shopspring/decimal"
)

// Rounding controls how a computed sale price is rounded
type Rounding string

const (
	RoundingNone Rounding = "none"
	Rounding99   Rounding = "99" // end with .99
	Rounding90   Rounding = "90" // end with .90
	Rounding00   Rounding = "00" // whole number
)

// IsValid checks if the rounding is known. The empty rounding means none.
func (r Rounding) IsValid() bool {
	switch r {
	case "", RoundingNone, Rounding99, Rounding90, Rounding00:
		return true
	}
	return false
}

var hundred = decimal.NewFromInt(100)

// PricingPolicy turns a supplier cost into a sale price
type PricingPolicy struct {
	MarkupPercent decimal.Decimal
	MarkupFixed   decimal.Decimal
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	Currency      string
	Rounding      Rounding
}

// Validate checks the policy bounds
func (p PricingPolicy) Validate() error {
	if p.MinPrice != nil && p.MaxPrice != nil && p.MinPrice.GreaterThan(*p.MaxPrice) {
		return configError("validate pricing", ErrInvalidPriceBounds)
	}
	if !p.Rounding.IsValid() {
		return configError("validate pricing", ErrInvalidRounding)
	}
	return nil
}

// Apply computes the sale price: percent markup, then fixed markup, then
// rounding, then clamping into [MinPrice, MaxPrice].
// A non-positive cost yields zero, meaning no price is known.
func (p PricingPolicy) Apply(cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}

	price := cost
	if !p.MarkupPercent.IsZero() {
		price = price.Mul(decimal.NewFromInt(1).Add(p.MarkupPercent.Div(hundred)))
	}
	price = price.Add(p.MarkupFixed)
	price = p.round(price)

	if p.MinPrice != nil && price.LessThan(*p.MinPrice) {
		price = *p.MinPrice
	}
	if p.MaxPrice != nil && price.GreaterThan(*p.MaxPrice) {
		price = *p.MaxPrice
	}
	return price.Round(2)
}

func (p PricingPolicy) round(price decimal.Decimal) decimal.Decimal {
	switch p.Rounding {
	case Rounding99:
		return price.Floor().Add(decimal.NewFromFloat(0.99))
	case Rounding90:
		return price.Floor().Add(decimal.NewFromFloat(0.90))
	case Rounding00:
		return price.Round(0)
	default:
		return price
	}
}
