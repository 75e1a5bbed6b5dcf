package feed

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

const (
	// DefaultExportCurrency is written when an export has no currency
	DefaultExportCurrency = "TRY"
	// DefaultExportRoot and DefaultExportProduct name the standard layout's elements
	DefaultExportRoot    = "products"
	DefaultExportProduct = "product"

	exportTokenBytes = 32
)

// ExportFormat is the XML layout an export is written in
type ExportFormat string

const (
	ExportFormatStandard    ExportFormat = "standard"
	ExportFormatTSoft       ExportFormat = "tsoft"
	ExportFormatTicimax     ExportFormat = "ticimax"
	ExportFormatN11         ExportFormat = "n11"
	ExportFormatHepsiburada ExportFormat = "hepsiburada"
)

// IsValid checks if the format is known
func (f ExportFormat) IsValid() bool {
	switch f {
	case ExportFormatStandard, ExportFormatTSoft, ExportFormatTicimax, ExportFormatN11, ExportFormatHepsiburada:
		return true
	}
	return false
}

// ExportFilter selects which catalog products an export lists
type ExportFilter string

const (
	ExportFilterAll      ExportFilter = "all"
	ExportFilterCategory ExportFilter = "category"
	ExportFilterSupplier ExportFilter = "supplier"
	ExportFilterManual   ExportFilter = "manual"
)

// IsValid checks if the filter is known
func (f ExportFilter) IsValid() bool {
	switch f {
	case ExportFilterAll, ExportFilterCategory, ExportFilterSupplier, ExportFilterManual:
		return true
	}
	return false
}

// ExportPriceField is the product price an export starts from
type ExportPriceField string

const (
	ExportPriceList ExportPriceField = "list_price"
	ExportPriceCost ExportPriceField = "cost"
)

// PriceAdjustment changes the exported price
type PriceAdjustment string

const (
	AdjustNone            PriceAdjustment = "none"
	AdjustPercent         PriceAdjustment = "percent"
	AdjustPercentDiscount PriceAdjustment = "percent_discount"
	AdjustFixed           PriceAdjustment = "fixed"
	AdjustFixedDiscount   PriceAdjustment = "fixed_discount"
)

// IsValid checks if the adjustment is known. The empty adjustment means none.
func (a PriceAdjustment) IsValid() bool {
	switch a {
	case "", AdjustNone, AdjustPercent, AdjustPercentDiscount, AdjustFixed, AdjustFixedDiscount:
		return true
	}
	return false
}

// ExportFieldMapping writes one product field at a path below the product element
// of the standard layout. Element uses the mapping path language: "a/b" nests
// elements, "a/@attr" writes an attribute and "a/b[]" repeats b for list fields.
type ExportFieldMapping struct {
	ID       uuid.UUID
	ExportID uuid.UUID
	Sequence int
	Name     string
	Field    TargetField
	Element  string
	CDATA    bool
	// Default is written when the product field is empty
	Default string
}

// Compile validates the mapping and parses its element path
func (m ExportFieldMapping) Compile() (Path, error) {
	if !m.Field.IsValid() {
		return Path{}, configError("validate export mapping", fmt.Errorf("%w: %q", ErrInvalidTarget, m.Field))
	}
	p, err := ParsePath(m.Element)
	if err != nil {
		return Path{}, err
	}
	if p.List != m.Field.IsList() {
		return Path{}, configError("validate export mapping",
			fmt.Errorf("%w %q: only the images field is written as a list", ErrInvalidPath, m.Element))
	}
	return p, nil
}

// ProductQuery selects catalog products for an export.
// Empty selectors do not restrict the result.
type ProductQuery struct {
	SaleOnly   bool
	Categories []string
	SupplierID *uuid.UUID
	IDs        []uuid.UUID
	// MinStock keeps products with more stock than the value when set
	MinStock *decimal.Decimal
}

// Matches reports whether the product satisfies the query. A category selects
// itself and every category below it.
func (q ProductQuery) Matches(p *ProductRecord) bool {
	if q.SaleOnly && !p.SaleOK {
		return false
	}
	if len(q.Categories) > 0 && !inCategories(p.Category, q.Categories) {
		return false
	}
	if q.SupplierID != nil && (p.SupplierID == nil || *p.SupplierID != *q.SupplierID) {
		return false
	}
	if len(q.IDs) > 0 && !containsID(q.IDs, p.ID) {
		return false
	}
	if q.MinStock != nil && !p.Stock.GreaterThan(*q.MinStock) {
		return false
	}
	return true
}

func inCategories(category string, roots []string) bool {
	for _, root := range roots {
		if category == root || strings.HasPrefix(category, root+CategoryPathSeparator) {
			return true
		}
	}
	return false
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ProductCatalog lists products for exports, ordered by name
type ProductCatalog interface {
	ListProducts(ctx context.Context, q ProductQuery) ([]*ProductRecord, error)
}

// ExportRepository persists product exports together with their field mappings.
// FindByToken returns ErrExportNotFound for unknown tokens.
type ExportRepository interface {
	FindByToken(ctx context.Context, token string) (*ProductExport, error)
	Save(ctx context.Context, export *ProductExport) error
	RecordAccess(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ProductExport publishes part of the catalog as an XML feed for resellers
// and marketplaces. The feed is addressed by its access token.
type ProductExport struct {
	shared.BaseEntity
	Name        string
	Active      bool
	AccessToken string
	// Password is an optional second secret passed alongside the token
	Password string

	Filter     ExportFilter
	Categories []string
	SupplierID *uuid.UUID
	ProductIDs []uuid.UUID

	IncludeZeroStock bool
	MinStock         int

	PriceField      ExportPriceField
	Adjustment      PriceAdjustment
	AdjustmentValue decimal.Decimal
	Currency        string

	Format             ExportFormat
	RootElement        string
	ProductElement     string
	IncludeImages      bool
	IncludeDescription bool
	FieldMappings      []ExportFieldMapping

	LastAccess  *time.Time
	AccessCount int
}

// NewProductExport creates an active export of the whole catalog in the standard layout
func NewProductExport(name string) (*ProductExport, error) {
	token, err := NewAccessToken()
	if err != nil {
		return nil, err
	}
	e := &ProductExport{
		BaseEntity:         shared.NewBaseEntity(),
		Name:               strings.TrimSpace(name),
		Active:             true,
		AccessToken:        token,
		Filter:             ExportFilterAll,
		PriceField:         ExportPriceList,
		Adjustment:         AdjustNone,
		Currency:           DefaultExportCurrency,
		Format:             ExportFormatStandard,
		RootElement:        DefaultExportRoot,
		ProductElement:     DefaultExportProduct,
		IncludeImages:      true,
		IncludeDescription: true,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewAccessToken returns a random URL-safe token
func NewAccessToken() (string, error) {
	b := make([]byte, exportTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Validate checks the export configuration
func (e *ProductExport) Validate() error {
	if e.Name == "" {
		return configError("validate export", ErrMissingName)
	}
	if e.AccessToken == "" {
		return configError("validate export", ErrMissingAccessToken)
	}
	if !e.Filter.IsValid() {
		return configError("validate export", fmt.Errorf("%w: %q", ErrInvalidExportFilter, e.Filter))
	}
	if e.PriceField != ExportPriceList && e.PriceField != ExportPriceCost {
		return configError("validate export", fmt.Errorf("%w: %q", ErrInvalidPriceField, e.PriceField))
	}
	if !e.Adjustment.IsValid() {
		return configError("validate export", fmt.Errorf("%w: %q", ErrInvalidAdjustment, e.Adjustment))
	}
	if !e.Format.IsValid() {
		return configError("validate export", fmt.Errorf("%w: %q", ErrInvalidExportFormat, e.Format))
	}
	if e.MinStock < 0 {
		return configError("validate export", ErrNegativeMinStock)
	}
	for _, name := range []string{e.RootElement, e.ProductElement} {
		if name != "" && !validName(name) {
			return configError("validate export", fmt.Errorf("%w %q", ErrInvalidPath, name))
		}
	}
	for _, m := range e.FieldMappings {
		if _, err := m.Compile(); err != nil {
			return err
		}
	}
	return nil
}

// Authorize checks the password given with the token. Exports without a
// password accept any value.
func (e *ProductExport) Authorize(password string) error {
	if !e.Active {
		return ErrExportNotFound
	}
	if e.Password == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(e.Password), []byte(password)) != 1 {
		return ErrExportForbidden
	}
	return nil
}

// RegenerateToken replaces the access token, invalidating published links
func (e *ProductExport) RegenerateToken(now time.Time) error {
	token, err := NewAccessToken()
	if err != nil {
		return err
	}
	e.AccessToken = token
	e.Touch(now)
	return nil
}

// Query builds the catalog query for the export. A category, supplier or
// manual filter without a selection lists the whole catalog.
func (e *ProductExport) Query() ProductQuery {
	q := ProductQuery{SaleOnly: true}
	switch e.Filter {
	case ExportFilterCategory:
		q.Categories = e.Categories
	case ExportFilterSupplier:
		q.SupplierID = e.SupplierID
	case ExportFilterManual:
		q.IDs = e.ProductIDs
	}
	if !e.IncludeZeroStock {
		floor := decimal.NewFromInt(int64(e.MinStock))
		q.MinStock = &floor
	}
	return q
}

// Price returns the exported price of the product, rounded to cents
func (e *ProductExport) Price(p *ProductRecord) decimal.Decimal {
	price := p.ListPrice
	if e.PriceField == ExportPriceCost {
		price = p.Cost
	}
	v := e.AdjustmentValue
	switch e.Adjustment {
	case AdjustPercent:
		price = price.Mul(decimal.NewFromInt(1).Add(v.Div(hundred)))
	case AdjustPercentDiscount:
		price = price.Mul(decimal.NewFromInt(1).Sub(v.Div(hundred)))
	case AdjustFixed:
		price = price.Add(v)
	case AdjustFixedDiscount:
		price = price.Sub(v)
	}
	return price.Round(2)
}

// CurrencyCode returns the export currency or the default
func (e *ProductExport) CurrencyCode() string {
	if e.Currency == "" {
		return DefaultExportCurrency
	}
	return e.Currency
}

// Elements returns the root and product element names of the standard layout
func (e *ProductExport) Elements() (root, product string) {
	root, product = e.RootElement, e.ProductElement
	if root == "" {
		root = DefaultExportRoot
	}
	if product == "" {
		product = DefaultExportProduct
	}
	return root, product
}

// SortedMappings returns the field mappings in sequence order
func (e *ProductExport) SortedMappings() []ExportFieldMapping {
	out := append([]ExportFieldMapping(nil), e.FieldMappings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// RecordAccess counts a served request
func (e *ProductExport) RecordAccess(at time.Time) {
	e.LastAccess = &at
	e.AccessCount++
}
