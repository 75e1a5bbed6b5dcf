package feed

// TargetField is the canonical product attribute a mapping rule fills
type TargetField string

const (
	TargetSKU         TargetField = "sku"
	TargetBarcode     TargetField = "barcode"
	TargetName        TargetField = "name"
	TargetDescription TargetField = "description"
	TargetPrice       TargetField = "price"
	TargetCost        TargetField = "cost"
	TargetStock       TargetField = "stock"
	TargetCategory    TargetField = "category"
	TargetBrand       TargetField = "brand"
	TargetImage       TargetField = "image"
	TargetImages      TargetField = "images"
	TargetSupplierSKU TargetField = "supplier_sku"
	TargetCurrency    TargetField = "currency"
	TargetTax         TargetField = "tax"
	TargetWeight      TargetField = "weight"
	TargetModel       TargetField = "model"
	TargetColor       TargetField = "color"
	TargetSize        TargetField = "size"
)

// AllTargetFields returns every valid target field
func AllTargetFields() []TargetField {
	return []TargetField{
		TargetSKU, TargetBarcode, TargetName, TargetDescription, TargetPrice, TargetCost,
		TargetStock, TargetCategory, TargetBrand, TargetImage, TargetImages, TargetSupplierSKU,
		TargetCurrency, TargetTax, TargetWeight, TargetModel, TargetColor, TargetSize,
	}
}

// IsValid checks if the target field is known
func (f TargetField) IsValid() bool {
	for _, v := range AllTargetFields() {
		if v == f {
			return true
		}
	}
	return false
}

// IsNumeric reports whether the field holds a decimal value
func (f TargetField) IsNumeric() bool {
	switch f {
	case TargetPrice, TargetCost, TargetStock, TargetTax, TargetWeight:
		return true
	}
	return false
}

// IsList reports whether the field collects several values
func (f TargetField) IsList() bool {
	return f == TargetImages
}

// IsImage reports whether the field holds image URLs
func (f TargetField) IsImage() bool {
	return f == TargetImage || f == TargetImages
}

// String returns the string representation
func (f TargetField) String() string {
	return string(f)
}
