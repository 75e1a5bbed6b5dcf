package feed

// Template is a known e-commerce export format with preset mappings
type Template string

const (
	TemplateCustom  Template = "custom"
	TemplateTsoft   Template = "tsoft"
	TemplateTicimax Template = "ticimax"
	TemplateGoogle  Template = "google"
)

// IsValid checks if the template is known. The empty template means custom.
func (t Template) IsValid() bool {
	switch t {
	case "", TemplateCustom, TemplateTsoft, TemplateTicimax, TemplateGoogle:
		return true
	}
	return false
}

// ProductPath returns the repeating product element path of the template
func (t Template) ProductPath() string {
	switch t {
	case TemplateTsoft:
		return "product"
	case TemplateTicimax:
		return "Products/Product"
	case TemplateGoogle:
		return "feed/entry"
	default:
		return ""
	}
}

type templateRule struct {
	target    TargetField
	path      string
	transform Transform
	required  bool
}

var templateRules = map[Template][]templateRule{
	TemplateTsoft: {
		{TargetSKU, "ws_code", TransformStrip, true},
		{TargetBarcode, "barcode", TransformStrip, false},
		{TargetName, "name", TransformStrip, true},
		{TargetDescription, "detail", TransformNone, false},
		{TargetPrice, "price_special", TransformNumeric, false},
		{TargetCost, "price", TransformNumeric, false},
		{TargetStock, "stock", TransformNumeric, false},
		{TargetCategory, "category", TransformStrip, false},
		{TargetBrand, "brand", TransformStrip, false},
		{TargetImage, "picture1", TransformStrip, false},
		{TargetWeight, "weight", TransformNumeric, false},
		{TargetModel, "model", TransformStrip, false},
		{TargetCurrency, "currency", TransformUppercase, false},
		{TargetTax, "tax", TransformNumeric, false},
	},
	TemplateTicimax: {
		{TargetSKU, "ProductCode", TransformStrip, true},
		{TargetBarcode, "Barcode", TransformStrip, false},
		{TargetName, "ProductName", TransformStrip, true},
		{TargetDescription, "Description", TransformNone, false},
		{TargetPrice, "Price1", TransformLocalizedPrice, false},
		{TargetCost, "BuyingPrice", TransformLocalizedPrice, false},
		{TargetStock, "Stock", TransformNumeric, false},
		{TargetCategory, "Category/CategoryName", TransformStrip, false},
		{TargetBrand, "Brand", TransformStrip, false},
		{TargetImages, "Images/Image/Path[]", TransformStrip, false},
		{TargetWeight, "Weight", TransformNumeric, false},
	},
	TemplateGoogle: {
		{TargetSKU, "g:id", TransformStrip, true},
		{TargetBarcode, "g:gtin", TransformStrip, false},
		{TargetName, "title", TransformStrip, true},
		{TargetDescription, "content", TransformHTMLStrip, false},
		{TargetPrice, "g:price", TransformNumeric, false},
		{TargetCategory, "g:google_product_category", TransformStrip, false},
		{TargetBrand, "g:brand", TransformStrip, false},
		{TargetImage, "g:image_link", TransformStrip, false},
	},
}

// TemplateMappings returns the preset mappings of a template, or nil for custom
func TemplateMappings(t Template) []FieldMapping {
	rules := templateRules[t]
	if len(rules) == 0 {
		return nil
	}
	mappings := make([]FieldMapping, 0, len(rules))
	for i, r := range rules {
		mappings = append(mappings, FieldMapping{
			Sequence:   (i + 1) * 10,
			Target:     r.target,
			XMLPath:    r.path,
			Transform:  r.transform,
			IsRequired: r.required,
		})
	}
	return mappings
}
