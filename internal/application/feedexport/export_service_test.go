package feedexport

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/infrastructure/xmlfeed"
)

type memoryExports struct {
	mu        sync.Mutex
	exports   map[string]*feed.ProductExport
	accessErr error
}

func (m *memoryExports) FindByToken(_ context.Context, token string) (*feed.ProductExport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exports[token]
	if !ok {
		return nil, feed.ErrExportNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memoryExports) Save(_ context.Context, e *feed.ProductExport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.exports[e.AccessToken] = &cp
	return nil
}

func (m *memoryExports) RecordAccess(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accessErr != nil {
		return m.accessErr
	}
	for _, e := range m.exports {
		if e.ID == id {
			e.RecordAccess(at)
		}
	}
	return nil
}

type memoryCatalog struct {
	products []*feed.ProductRecord
	queries  []feed.ProductQuery
}

func (m *memoryCatalog) ListProducts(_ context.Context, q feed.ProductQuery) ([]*feed.ProductRecord, error) {
	m.queries = append(m.queries, q)
	var out []*feed.ProductRecord
	for _, p := range m.products {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type exportEnv struct {
	exports *memoryExports
	catalog *memoryCatalog
	service *ExportService
	now     time.Time
}

func newExportEnv(t *testing.T, products ...*feed.ProductRecord) *exportEnv {
	t.Helper()
	env := &exportEnv{
		exports: &memoryExports{exports: make(map[string]*feed.ProductExport)},
		catalog: &memoryCatalog{products: products},
		now:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	env.service = NewExportService(ExportServiceConfig{
		Exports:  env.exports,
		Products: env.catalog,
		Now:      func() time.Time { return env.now },
		Logger:   zap.NewNop(),
	})
	return env
}

func (env *exportEnv) add(t *testing.T, configure func(e *feed.ProductExport)) *feed.ProductExport {
	t.Helper()
	e, err := feed.NewProductExport("Bayi XML")
	require.NoError(t, err)
	if configure != nil {
		configure(e)
	}
	require.NoError(t, e.Validate())
	require.NoError(t, env.exports.Save(context.Background(), e))
	return e
}

func product(name, sku string, price, stock int64) *feed.ProductRecord {
	return &feed.ProductRecord{
		ID:        uuid.New(),
		SKU:       sku,
		Barcode:   "869" + sku,
		Name:      name,
		ListPrice: decimal.NewFromInt(price),
		Cost:      decimal.NewFromInt(price / 2),
		Stock:     decimal.NewFromInt(stock),
		TaxRate:   decimal.NewFromInt(20),
		SaleOK:    true,
	}
}

func parseExport(t *testing.T, body []byte, productPath string) []*xmlfeed.Element {
	t.Helper()
	doc, err := xmlfeed.NewDocument("export", body, "")
	require.NoError(t, err)
	var out []*xmlfeed.Element
	for el, err := range doc.Products(feed.MustParsePath(productPath)) {
		require.NoError(t, err)
		out = append(out, el)
	}
	return out
}

func TestExportService_RenderStandard(t *testing.T) {
	kupa := product("Kupa", "K-1", 100, 5)
	kupa.Category = "Ev / Mutfak"
	kupa.Brand = "Paşabahçe"
	kupa.Description = "<b>Cam</b>"
	kupa.ImageURL = "https://cdn.example.com/k1.jpg"
	kupa.ImageURLs = []string{"https://cdn.example.com/k1-2.jpg"}
	kupa.Weight = decimal.RequireFromString("0.35")
	empty := product("Boş Raf", "R-1", 50, 0)
	hidden := product("Gizli", "G-1", 10, 9)
	hidden.SaleOK = false

	env := newExportEnv(t, kupa, empty, hidden)
	e := env.add(t, func(e *feed.ProductExport) {
		e.Adjustment = feed.AdjustPercent
		e.AdjustmentValue = decimal.NewFromInt(10)
		e.FieldMappings = []feed.ExportFieldMapping{
			{Sequence: 2, Name: "Maliyet", Field: feed.TargetCost, Element: "pricing/cost"},
			{Sequence: 1, Name: "Para", Field: feed.TargetCurrency, Element: "pricing/@currency"},
			{Sequence: 3, Name: "Renk", Field: feed.TargetColor, Element: "color", Default: "Standart", CDATA: true},
			{Sequence: 4, Name: "Galeri", Field: feed.TargetImages, Element: "gallery/url[]"},
		}
	})

	out, err := env.service.Render(context.Background(), e.AccessToken, "")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Products, "products without stock or not for sale are left out")
	assert.Equal(t, "Bayi XML", out.Name)
	body := string(out.Body)
	assert.True(t, strings.HasPrefix(body, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, body, "<description><![CDATA[<b>Cam</b>]]></description>")
	assert.Contains(t, body, "<color><![CDATA[Standart]]></color>")

	items := parseExport(t, out.Body, "products/product")
	require.Len(t, items, 1)
	el := items[0]
	assert.Equal(t, kupa.ID.String(), el.Child("id").Text)
	assert.Equal(t, "K-1", el.Child("code").Text)
	assert.Equal(t, "Ev / Mutfak", el.Child("category").Text)
	assert.Equal(t, "110.00", el.Child("price").Text)
	assert.Equal(t, "TRY", el.Child("currency").Text)
	assert.Equal(t, "20", el.Child("vat").Text)
	assert.Equal(t, "5", el.Child("stock").Text)
	assert.Equal(t, "https://cdn.example.com/k1.jpg", el.Child("image").Text)
	assert.Equal(t, "https://cdn.example.com/k1-2.jpg", el.Child("images").Child("img").Text)
	assert.Equal(t, "0.35", el.Child("weight").Text)

	pricing := el.Child("pricing")
	require.NotNil(t, pricing)
	currency, _ := pricing.Attr("currency")
	assert.Equal(t, "TRY", currency)
	assert.Equal(t, "50.00", pricing.Child("cost").Text)
	assert.Len(t, el.Child("gallery").ChildrenNamed("url"), 1)

	stored, err := env.exports.FindByToken(context.Background(), e.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AccessCount)
	require.NotNil(t, stored.LastAccess)
	assert.Equal(t, env.now, *stored.LastAccess)
}

func TestExportService_Layouts(t *testing.T) {
	p := product("Çaydanlık", "C-9", 200, 3)
	p.Category = "Ev / Mutfak / Demlik"
	p.ImageURL = "https://cdn.example.com/c9.jpg"
	p.ImageURLs = []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		format feed.ExportFormat
		path   string
		check  func(t *testing.T, el *xmlfeed.Element)
	}{
		{feed.ExportFormatTSoft, "products/product", func(t *testing.T, el *xmlfeed.Element) {
			assert.Equal(t, "C-9", el.Child("ws_code").Text)
			assert.Equal(t, "Ev > Mutfak > Demlik", el.Child("category_path").Text)
			assert.Equal(t, "200.00", el.Child("price_list").Text)
			assert.Equal(t, "240.00", el.Child("price_list_vat_included").Text)
			assert.Len(t, el.Child("images").ChildrenNamed("img_item"), 6)
		}},
		{feed.ExportFormatTicimax, "Products/Product", func(t *testing.T, el *xmlfeed.Element) {
			assert.Equal(t, "Demlik", el.Child("CategoryName").Text)
			assert.Equal(t, "Ev / Mutfak / Demlik", el.Child("CategoryPath").Text)
			assert.Equal(t, "https://cdn.example.com/c9.jpg", el.Child("Images").Child("Image").Child("Url").Text)
		}},
		{feed.ExportFormatN11, "Products/Product", func(t *testing.T, el *xmlfeed.Element) {
			assert.Equal(t, "C-9", el.Child("productSellerCode").Text)
			assert.Equal(t, "1", el.Child("currencyType").Text)
			assert.Equal(t, "3", el.Child("stockAmount").Text)
			assert.NotNil(t, el.Child("subtitle"))
		}},
		{feed.ExportFormatHepsiburada, "Products/Product", func(t *testing.T, el *xmlfeed.Element) {
			assert.Equal(t, "C-9", el.Child("MerchantSku").Text)
			assert.Equal(t, "https://cdn.example.com/c9.jpg", el.Child("Image1").Text)
			assert.Equal(t, "d", el.Child("Image5").Text)
			assert.Nil(t, el.Child("Image6"))
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			env := newExportEnv(t, p)
			e := env.add(t, func(e *feed.ProductExport) { e.Format = tt.format })

			out, err := env.service.Render(context.Background(), e.AccessToken, "")
			require.NoError(t, err)
			items := parseExport(t, out.Body, tt.path)
			require.Len(t, items, 1)
			tt.check(t, items[0])
		})
	}
}

func TestExportService_Filters(t *testing.T) {
	supplier := uuid.New()
	kupa := product("Kupa", "K-1", 100, 5)
	kupa.Category = "Ev / Mutfak"
	kupa.SupplierID = &supplier
	tabak := product("Tabak", "T-1", 80, 1)
	tabak.Category = "Ev / Mutfak / Tabak"
	kalem := product("Kalem", "P-1", 5, 100)
	kalem.Category = "Kırtasiye"
	env := newExportEnv(t, kupa, tabak, kalem)

	tests := []struct {
		name      string
		configure func(e *feed.ProductExport)
		want      []string
	}{
		{"all", nil, []string{"Kalem", "Kupa", "Tabak"}},
		{"category includes children", func(e *feed.ProductExport) {
			e.Filter = feed.ExportFilterCategory
			e.Categories = []string{"Ev / Mutfak"}
		}, []string{"Kupa", "Tabak"}},
		{"supplier", func(e *feed.ProductExport) {
			e.Filter = feed.ExportFilterSupplier
			e.SupplierID = &supplier
		}, []string{"Kupa"}},
		{"manual", func(e *feed.ProductExport) {
			e.Filter = feed.ExportFilterManual
			e.ProductIDs = []uuid.UUID{kalem.ID}
		}, []string{"Kalem"}},
		{"minimum stock", func(e *feed.ProductExport) { e.MinStock = 4 }, []string{"Kalem", "Kupa"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := env.add(t, tt.configure)
			out, err := env.service.Render(context.Background(), e.AccessToken, "")
			require.NoError(t, err)
			var names []string
			for _, el := range parseExport(t, out.Body, "products/product") {
				names = append(names, el.Child("name").Text)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestExportService_Access(t *testing.T) {
	env := newExportEnv(t, product("Kupa", "K-1", 100, 5))
	locked := env.add(t, func(e *feed.ProductExport) { e.Password = "s3cret" })
	inactive := env.add(t, func(e *feed.ProductExport) { e.Active = false })

	_, err := env.service.Render(context.Background(), "unknown", "")
	assert.ErrorIs(t, err, feed.ErrExportNotFound)

	_, err = env.service.Render(context.Background(), "", "")
	assert.ErrorIs(t, err, feed.ErrExportNotFound)

	_, err = env.service.Render(context.Background(), inactive.AccessToken, "")
	assert.ErrorIs(t, err, feed.ErrExportNotFound)

	_, err = env.service.Render(context.Background(), locked.AccessToken, "wrong")
	assert.ErrorIs(t, err, feed.ErrExportForbidden)

	out, err := env.service.Render(context.Background(), locked.AccessToken, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Products)
}

func TestExportService_AccessRecordFailureStillServes(t *testing.T) {
	env := newExportEnv(t, product("Kupa", "K-1", 100, 5))
	e := env.add(t, nil)
	env.exports.accessErr = errors.New("database is read only")

	out, err := env.service.Render(context.Background(), e.AccessToken, "")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Products)
}

func TestExportService_Describe(t *testing.T) {
	env := newExportEnv(t, product("Kupa", "K-1", 100, 5), product("Tabak", "T-1", 80, 0))
	e := env.add(t, func(e *feed.ProductExport) {
		e.Format = feed.ExportFormatN11
		e.IncludeZeroStock = true
	})

	info, err := env.service.Describe(context.Background(), e.AccessToken, "")
	require.NoError(t, err)
	assert.Equal(t, "Bayi XML", info.Name)
	assert.Equal(t, feed.ExportFormatN11, info.Format)
	assert.Equal(t, 2, info.Products)
	assert.Equal(t, "TRY", info.Currency)
	assert.Zero(t, info.AccessCount, "describing does not count as an access")
	require.Len(t, env.catalog.queries, 1)
	assert.Nil(t, env.catalog.queries[0].MinStock)
}
