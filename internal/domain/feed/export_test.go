package feed

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

func TestNewProductExport(t *testing.T) {
	e, err := NewProductExport("  Bayi XML ")
	require.NoError(t, err)
	assert.Equal(t, "Bayi XML", e.Name)
	assert.True(t, e.Active)
	assert.Len(t, e.AccessToken, 43)
	assert.Equal(t, ExportFormatStandard, e.Format)

	other, err := NewProductExport("Bayi XML")
	require.NoError(t, err)
	assert.NotEqual(t, e.AccessToken, other.AccessToken)

	_, err = NewProductExport(" ")
	assert.ErrorIs(t, err, ErrMissingName)
	assert.ErrorIs(t, err, shared.ErrConfig)
}

func TestProductExport_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *ProductExport)
		want   error
	}{
		{"filter", func(e *ProductExport) { e.Filter = "brand" }, ErrInvalidExportFilter},
		{"format", func(e *ProductExport) { e.Format = "amazon" }, ErrInvalidExportFormat},
		{"price field", func(e *ProductExport) { e.PriceField = "msrp" }, ErrInvalidPriceField},
		{"adjustment", func(e *ProductExport) { e.Adjustment = "double" }, ErrInvalidAdjustment},
		{"min stock", func(e *ProductExport) { e.MinStock = -1 }, ErrNegativeMinStock},
		{"token", func(e *ProductExport) { e.AccessToken = "" }, ErrMissingAccessToken},
		{"root element", func(e *ProductExport) { e.RootElement = "a b" }, ErrInvalidPath},
		{"mapping target", func(e *ProductExport) {
			e.FieldMappings = []ExportFieldMapping{{Field: "ean", Element: "ean"}}
		}, ErrInvalidTarget},
		{"mapping path", func(e *ProductExport) {
			e.FieldMappings = []ExportFieldMapping{{Field: TargetSKU, Element: "a//b"}}
		}, ErrInvalidPath},
		{"scalar field on a list path", func(e *ProductExport) {
			e.FieldMappings = []ExportFieldMapping{{Field: TargetSKU, Element: "codes/code[]"}}
		}, ErrInvalidPath},
		{"list field on a scalar path", func(e *ProductExport) {
			e.FieldMappings = []ExportFieldMapping{{Field: TargetImages, Element: "images"}}
		}, ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewProductExport("Bayi")
			require.NoError(t, err)
			tt.mutate(e)
			err = e.Validate()
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, shared.ErrConfig)
		})
	}
}

func TestProductExport_Price(t *testing.T) {
	p := &ProductRecord{ListPrice: dec("100"), Cost: dec("60")}
	tests := []struct {
		field      ExportPriceField
		adjustment PriceAdjustment
		value      string
		want       string
	}{
		{ExportPriceList, AdjustNone, "0", "100"},
		{ExportPriceList, AdjustPercent, "12.5", "112.5"},
		{ExportPriceList, AdjustPercentDiscount, "15", "85"},
		{ExportPriceCost, AdjustFixed, "9.999", "70"},
		{ExportPriceCost, AdjustFixedDiscount, "10", "50"},
		{ExportPriceList, "", "50", "100"},
	}
	for _, tt := range tests {
		e := &ProductExport{PriceField: tt.field, Adjustment: tt.adjustment, AdjustmentValue: dec(tt.value)}
		assert.True(t, dec(tt.want).Equal(e.Price(p)), "%s %s %s: got %s", tt.field, tt.adjustment, tt.value, e.Price(p))
	}
}

func TestProductExport_Query(t *testing.T) {
	supplier := uuid.New()
	e := &ProductExport{Filter: ExportFilterCategory, Categories: []string{"Ev"}, SupplierID: &supplier, MinStock: 2}

	q := e.Query()
	assert.True(t, q.SaleOnly)
	assert.Equal(t, []string{"Ev"}, q.Categories)
	assert.Nil(t, q.SupplierID, "only the selected filter applies")
	require.NotNil(t, q.MinStock)
	assert.True(t, dec("2").Equal(*q.MinStock))

	e.IncludeZeroStock = true
	assert.Nil(t, e.Query().MinStock)

	p := &ProductRecord{SaleOK: true, Category: "Ev / Banyo", Stock: dec("3")}
	assert.True(t, q.Matches(p))
	p.Category = "Evcil Hayvan"
	assert.False(t, q.Matches(p), "a category prefix must end at a level boundary")
	p.Category = "Ev"
	p.Stock = dec("2")
	assert.False(t, q.Matches(p), "stock must exceed the minimum")
}

func TestProductExport_Authorize(t *testing.T) {
	e := &ProductExport{Active: true}
	assert.NoError(t, e.Authorize("anything"))

	e.Password = "s3cret"
	assert.NoError(t, e.Authorize("s3cret"))
	assert.ErrorIs(t, e.Authorize(""), ErrExportForbidden)

	e.Active = false
	assert.ErrorIs(t, e.Authorize("s3cret"), ErrExportNotFound)
}

func TestProductExport_RegenerateToken(t *testing.T) {
	e, err := NewProductExport("Bayi")
	require.NoError(t, err)
	old := e.AccessToken
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, e.RegenerateToken(now))
	assert.NotEqual(t, old, e.AccessToken)
	assert.Equal(t, now, e.UpdatedAt)
}
