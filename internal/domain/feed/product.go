package feed

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductRecord is the catalog's view of a product touched by feed imports
type ProductRecord struct {
	ID              uuid.UUID
	SKU             string
	Barcode         string
	Name            string
	Description     string
	ListPrice       decimal.Decimal
	Cost            decimal.Decimal
	Currency        string
	Stock           decimal.Decimal
	Brand           string
	Category        string
	Model           string
	Color           string
	Size            string
	Weight          decimal.Decimal
	TaxRate         decimal.Decimal
	ImageURL        string
	ImageURLs       []string
	SupplierID      *uuid.UUID
	SupplierSKU     string
	SourceID        *uuid.UUID
	LockedFromFeeds bool
	SaleOK          bool
	LastSyncSource  string
	LastSyncTime    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TouchSync stamps the product as written by a feed import
func (p *ProductRecord) TouchSync(sourceName string, now time.Time) {
	p.LastSyncSource = sourceName
	p.LastSyncTime = &now
	p.UpdatedAt = now
}

// MappedRecord is the output of evaluating all mapping rules against one feed element
type MappedRecord struct {
	Values  map[TargetField]string
	Lists   map[TargetField][]string
	Missing []TargetField
	// Errors holds non-fatal conversion problems, such as unparseable numbers
	Errors []string
}

// NewMappedRecord creates an empty record
func NewMappedRecord() *MappedRecord {
	return &MappedRecord{
		Values: make(map[TargetField]string),
		Lists:  make(map[TargetField][]string),
	}
}

// Valid reports whether every required field received a value
func (r *MappedRecord) Valid() bool {
	return len(r.Missing) == 0
}

// Set stores a scalar value. Later rules for the same target only fill an empty value.
func (r *MappedRecord) Set(field TargetField, value string) {
	if value == "" {
		return
	}
	if r.Values[field] == "" {
		r.Values[field] = value
	}
}

// Append adds list values, dropping duplicates and empties
func (r *MappedRecord) Append(field TargetField, values ...string) {
	for _, v := range values {
		if v == "" || containsString(r.Lists[field], v) {
			continue
		}
		r.Lists[field] = append(r.Lists[field], v)
	}
}

// Get returns the scalar value of a field
func (r *MappedRecord) Get(field TargetField) string {
	return r.Values[field]
}

// Has reports whether a field has a non-empty value
func (r *MappedRecord) Has(field TargetField) bool {
	return r.Values[field] != "" || len(r.Lists[field]) > 0
}

// Decimal parses a numeric field. ok is false when the field is empty.
func (r *MappedRecord) Decimal(field TargetField) (d decimal.Decimal, ok bool, err error) {
	v := strings.TrimSpace(r.Values[field])
	if v == "" {
		return decimal.Zero, false, nil
	}
	d, err = decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

// Images returns the primary image and the extra images.
// The image field wins as primary; otherwise the first list entry is used.
func (r *MappedRecord) Images() (primary string, extra []string) {
	all := make([]string, 0, len(r.Lists[TargetImages])+1)
	if img := r.Values[TargetImage]; img != "" {
		all = append(all, img)
	}
	for _, img := range r.Lists[TargetImage] {
		if !containsString(all, img) {
			all = append(all, img)
		}
	}
	for _, img := range r.Lists[TargetImages] {
		if !containsString(all, img) {
			all = append(all, img)
		}
	}
	if len(all) == 0 {
		return "", nil
	}
	return all[0], all[1:]
}

// Identity returns the lookup keys of the record
func (r *MappedRecord) Identity() (barcode, sku, supplierSKU string) {
	return r.Values[TargetBarcode], r.Values[TargetSKU], r.Values[TargetSupplierSKU]
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
