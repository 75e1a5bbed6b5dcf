package feedexport

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/infrastructure/xmlfeed"
)

// Extra image limits per layout
const (
	standardExtraImages    = 10
	tsoftExtraImages       = 9
	hepsiburadaExtraImages = 4
)

var pathImages = feed.MustParsePath("images/img[]")

type layout func(e *feed.ProductExport, products []*feed.ProductRecord) (*xmlfeed.Element, error)

var layouts = map[feed.ExportFormat]layout{
	feed.ExportFormatStandard:    standardLayout,
	feed.ExportFormatTSoft:       tsoftLayout,
	feed.ExportFormatTicimax:     ticimaxLayout,
	feed.ExportFormatN11:         n11Layout,
	feed.ExportFormatHepsiburada: hepsiburadaLayout,
}

func build(e *feed.ProductExport, products []*feed.ProductRecord) (*xmlfeed.Element, error) {
	l, ok := layouts[e.Format]
	if !ok {
		l = standardLayout
	}
	return l(e, products)
}

type compiledMapping struct {
	feed.ExportFieldMapping
	path feed.Path
}

func standardLayout(e *feed.ProductExport, products []*feed.ProductRecord) (*xmlfeed.Element, error) {
	var mappings []compiledMapping
	for _, m := range e.SortedMappings() {
		p, err := m.Compile()
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, compiledMapping{ExportFieldMapping: m, path: p})
	}

	rootName, productName := e.Elements()
	root := xmlfeed.NewElement(rootName)
	for _, p := range products {
		el := root.Add(productName, "")
		el.Add("id", p.ID.String())
		el.Add("code", p.SKU)
		el.Add("barcode", p.Barcode)
		el.Add("name", p.Name)
		if p.Category != "" {
			el.Add("category", p.Category)
		}
		el.Add("price", money(e.Price(p)))
		el.Add("currency", e.CurrencyCode())
		el.Add("vat", whole(p.TaxRate))
		el.Add("stock", whole(p.Stock))
		if p.Brand != "" {
			el.Add("brand", p.Brand)
		}
		if e.IncludeDescription {
			el.AddCDATA("description", p.Description)
		}
		if e.IncludeImages {
			if p.ImageURL != "" {
				el.Add("image", p.ImageURL)
			}
			el.Put(pathImages, false, head(p.ImageURLs, standardExtraImages)...)
		}
		if !p.Weight.IsZero() {
			el.Add("weight", p.Weight.String())
		}
		for _, m := range mappings {
			values := fieldValues(e, p, m.Field)
			if len(values) == 0 && m.Default != "" {
				values = []string{m.Default}
			}
			el.Put(m.path, m.CDATA, values...)
		}
	}
	return root, nil
}

func tsoftLayout(e *feed.ProductExport, products []*feed.ProductRecord) (*xmlfeed.Element, error) {
	root := xmlfeed.NewElement("products")
	for _, p := range products {
		price := e.Price(p)
		withVAT := price.Mul(decimal.NewFromInt(1).Add(p.TaxRate.Div(decimal.NewFromInt(100))))

		el := root.Add("product", "")
		el.Add("code", p.ID.String())
		el.Add("ws_code", p.SKU)
		el.AddCDATA("barcode", p.Barcode)
		el.AddCDATA("name", p.Name)
		if p.Category != "" {
			el.AddCDATA("category_path", strings.ReplaceAll(p.Category, feed.CategoryPathSeparator, feed.DefaultCategorySeparator))
		}
		el.Add("stock", whole(p.Stock))
		el.Add("unit", "ADET")
		el.Add("price_list", money(price))
		el.Add("price_list_vat_included", money(withVAT))
		el.Add("currency", e.CurrencyCode())
		el.Add("vat", whole(p.TaxRate))
		if p.Brand != "" {
			el.AddCDATA("brand", p.Brand)
		}
		el.Add("desi", "0")
		el.Add("weight", p.Weight.String())
		if e.IncludeDescription {
			el.AddCDATA("detail", p.Description)
		}
		if e.IncludeImages {
			images := el.Add("images", "")
			var urls []string
			if p.ImageURL != "" {
				urls = append(urls, p.ImageURL)
			}
			urls = append(urls, head(p.ImageURLs, tsoftExtraImages)...)
			for _, u := range urls {
				images.AddCDATA("img_item", u)
			}
		}
	}
	return root, nil
}

func ticimaxLayout(e *feed.ProductExport, products []*feed.ProductRecord) (*xmlfeed.Element, error) {
	root := xmlfeed.NewElement("Products")
	for _, p := range products {
		el := root.Add("Product", "")
		el.Add("ProductId", p.ID.String())
		el.Add("ProductCode", p.SKU)
		el.Add("Barcode", p.Barcode)
		el.Add("ProductName", p.Name)
		if p.Category != "" {
			el.Add("CategoryName", leafCategory(p.Category))
			el.Add("CategoryPath", p.Category)
		}
		el.Add("Price", money(e.Price(p)))
		el.Add("Stock", whole(p.Stock))
		if p.Brand != "" {
			el.Add("Brand", p.Brand)
		}
		if e.IncludeDescription {
			el.Add("Description", p.Description)
		}
		if e.IncludeImages {
			images := el.Add("Images", "")
			if p.ImageURL != "" {
				img := images.Add("Image", "")
				img.Add("Url", p.ImageURL)
				img.Add("Order", "1")
			}
		}
	}
	return root, nil
}

func n11Layout(e *feed.ProductExport, products []*feed.ProductRecord) (*xmlfeed.Element, error) {
	currencyType := "2"
	if e.CurrencyCode() == feed.DefaultExportCurrency {
		currencyType = "1"
	}
	root := xmlfeed.NewElement("Products")
	for _, p := range products {
		el := root.Add("Product", "")
		el.Add("productSellerCode", sellerCode(p))
		el.Add("title", p.Name)
		el.Add("subtitle", "")
		el.Add("price", money(e.Price(p)))
		el.Add("currencyType", currencyType)
		if p.Category != "" {
			el.Add("category", leafCategory(p.Category))
		}
		el.Add("stockAmount", whole(p.Stock))
		if e.IncludeDescription {
			el.Add("description", p.Description)
		}
		if e.IncludeImages {
			images := el.Add("images", "")
			if p.ImageURL != "" {
				img := images.Add("image", "")
				img.Add("url", p.ImageURL)
				img.Add("order", "1")
			}
		}
	}
	return root, nil
}

func hepsiburadaLayout(e *feed.ProductExport, products []*feed.ProductRecord) (*xmlfeed.Element, error) {
	root := xmlfeed.NewElement("Products")
	for _, p := range products {
		el := root.Add("Product", "")
		el.Add("MerchantSku", sellerCode(p))
		el.Add("Barcode", p.Barcode)
		el.Add("ProductName", p.Name)
		el.Add("Price", money(e.Price(p)))
		el.Add("AvailableStock", whole(p.Stock))
		if p.Brand != "" {
			el.Add("Brand", p.Brand)
		}
		if e.IncludeDescription {
			el.Add("Description", p.Description)
		}
		if e.IncludeImages {
			if p.ImageURL != "" {
				el.Add("Image1", p.ImageURL)
			}
			for i, u := range head(p.ImageURLs, hepsiburadaExtraImages) {
				el.Add("Image"+strconv.Itoa(i+2), u)
			}
		}
	}
	return root, nil
}

// fieldValues returns the product values written by a field mapping
func fieldValues(e *feed.ProductExport, p *feed.ProductRecord, field feed.TargetField) []string {
	var v string
	switch field {
	case feed.TargetSKU:
		v = p.SKU
	case feed.TargetBarcode:
		v = p.Barcode
	case feed.TargetName:
		v = p.Name
	case feed.TargetDescription:
		v = p.Description
	case feed.TargetPrice:
		v = money(e.Price(p))
	case feed.TargetCost:
		v = money(p.Cost)
	case feed.TargetStock:
		v = whole(p.Stock)
	case feed.TargetCategory:
		v = p.Category
	case feed.TargetBrand:
		v = p.Brand
	case feed.TargetImage:
		v = p.ImageURL
	case feed.TargetImages:
		return p.ImageURLs
	case feed.TargetSupplierSKU:
		v = p.SupplierSKU
	case feed.TargetCurrency:
		v = firstNonEmpty(p.Currency, e.CurrencyCode())
	case feed.TargetTax:
		v = whole(p.TaxRate)
	case feed.TargetWeight:
		if !p.Weight.IsZero() {
			v = p.Weight.String()
		}
	case feed.TargetModel:
		v = p.Model
	case feed.TargetColor:
		v = p.Color
	case feed.TargetSize:
		v = p.Size
	}
	if v == "" {
		return nil
	}
	return []string{v}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func whole(d decimal.Decimal) string {
	return strconv.FormatInt(d.IntPart(), 10)
}

func head(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func leafCategory(complete string) string {
	if i := strings.LastIndex(complete, feed.CategoryPathSeparator); i >= 0 {
		return complete[i+len(feed.CategoryPathSeparator):]
	}
	return complete
}

func sellerCode(p *feed.ProductRecord) string {
	return firstNonEmpty(p.SKU, p.ID.String())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
