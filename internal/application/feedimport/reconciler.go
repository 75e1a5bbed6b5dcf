package feedimport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/feed"
)

// Action is the reconciliation outcome for one mapped record
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Candidate is a mapped record with its computed prices
type Candidate struct {
	Record *feed.MappedRecord
	// Cost is the supplier cost; zero means the feed carried no usable price
	Cost      decimal.Decimal
	ListPrice decimal.Decimal
}

// HasPrice reports whether the candidate carries a usable price
func (c Candidate) HasPrice() bool {
	return c.Cost.IsPositive()
}

// Decision is what the reconciler did with a candidate
type Decision struct {
	Action    Action
	Product   *feed.ProductRecord
	MatchedBy string
	Reason    string
}

// Reconciler resolves mapped records against the catalog and creates or updates products
type Reconciler struct {
	products   feed.ProductRepository
	categories *CategoryResolver
	now        func() time.Time
	logger     *zap.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(products feed.ProductRepository, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{products: products, now: time.Now, logger: logger}
}

// Reconcile matches by barcode, then sku, then (source, supplier sku) and applies the
// source policy. Updates only write non-empty mapped values.
func (r *Reconciler) Reconcile(ctx context.Context, source *feed.XMLProductSource, c Candidate) (Decision, error) {
	rec := c.Record
	if !rec.Valid() {
		return Decision{Action: ActionSkip, Reason: "missing required fields: " + joinTargets(rec.Missing)}, nil
	}

	existing, matchedBy, err := r.find(ctx, source.ID, rec)
	if err != nil {
		return Decision{}, err
	}
	now := r.now()

	if existing == nil {
		if !source.Policy.CreateNew {
			return Decision{Action: ActionSkip, Reason: "creating products is disabled"}, nil
		}
		category, err := r.category(ctx, source, rec)
		if err != nil {
			return Decision{}, err
		}
		product := newProduct(source, rec)
		apply(product, source, c, category, true)
		product.TouchSync(source.Name, now)
		product.CreatedAt = now
		if err := r.products.Create(ctx, product); err != nil {
			return Decision{}, fmt.Errorf("create product %s: %w", describe(rec), err)
		}
		return Decision{Action: ActionCreate, Product: product}, nil
	}

	if existing.LockedFromFeeds {
		r.logger.Debug("Skipping locked product",
			zap.String("product_id", existing.ID.String()),
			zap.String("matched_by", matchedBy),
		)
		return Decision{Action: ActionSkip, Product: existing, MatchedBy: matchedBy, Reason: "product is locked from feed updates"}, nil
	}
	if !source.Policy.UpdateExisting {
		return Decision{Action: ActionSkip, Product: existing, MatchedBy: matchedBy, Reason: "updating products is disabled"}, nil
	}

	var category string
	if source.Policy.UpdateCategory {
		if category, err = r.category(ctx, source, rec); err != nil {
			return Decision{}, err
		}
	}
	apply(existing, source, c, category, false)
	existing.TouchSync(source.Name, now)
	if err := r.products.Update(ctx, existing); err != nil {
		return Decision{}, fmt.Errorf("update product %s: %w", describe(rec), err)
	}
	return Decision{Action: ActionUpdate, Product: existing, MatchedBy: matchedBy}, nil
}

func (r *Reconciler) find(ctx context.Context, sourceID uuid.UUID, rec *feed.MappedRecord) (*feed.ProductRecord, string, error) {
	barcode, sku, supplierSKU := rec.Identity()
	if supplierSKU == "" {
		supplierSKU = sku
	}
	lookups := []struct {
		name string
		key  string
		find func() (*feed.ProductRecord, error)
	}{
		{"barcode", barcode, func() (*feed.ProductRecord, error) { return r.products.FindByBarcode(ctx, barcode) }},
		{"sku", sku, func() (*feed.ProductRecord, error) { return r.products.FindBySKU(ctx, sku) }},
		{"supplier_sku", supplierSKU, func() (*feed.ProductRecord, error) {
			return r.products.FindBySupplierSKU(ctx, sourceID, supplierSKU)
		}},
	}
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		p, err := l.find()
		if errors.Is(err, feed.ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("find product by %s: %w", l.name, err)
		}
		return p, l.name, nil
	}
	return nil, "", nil
}

// category resolves the record's catalog category. Without a category store
// the feed value is used as is.
func (r *Reconciler) category(ctx context.Context, source *feed.XMLProductSource, rec *feed.MappedRecord) (string, error) {
	raw := rec.Get(feed.TargetCategory)
	if r.categories == nil {
		return firstNonEmpty(raw, source.Categories.Default), nil
	}
	category, err := r.categories.Resolve(ctx, source, raw)
	if err != nil {
		return "", fmt.Errorf("resolve category %q: %w", raw, err)
	}
	return category, nil
}

func newProduct(source *feed.XMLProductSource, rec *feed.MappedRecord) *feed.ProductRecord {
	barcode, sku, _ := rec.Identity()
	return &feed.ProductRecord{
		ID:       uuid.New(),
		SKU:      sku,
		Barcode:  barcode,
		SaleOK:   true,
		Currency: firstNonEmpty(rec.Get(feed.TargetCurrency), source.Pricing.Currency),
	}
}

// apply copies mapped values onto p. Existing non-empty values are never replaced by
// empty ones; price, stock, images, description and category follow the policy flags on updates.
func apply(p *feed.ProductRecord, source *feed.XMLProductSource, c Candidate, category string, isNew bool) {
	rec := c.Record
	policy := source.Policy

	setString(&p.Name, rec.Get(feed.TargetName))
	setString(&p.Brand, rec.Get(feed.TargetBrand))
	if isNew || policy.UpdateCategory {
		setString(&p.Category, category)
	}
	setString(&p.Model, rec.Get(feed.TargetModel))
	setString(&p.Color, rec.Get(feed.TargetColor))
	setString(&p.Size, rec.Get(feed.TargetSize))
	setString(&p.Currency, rec.Get(feed.TargetCurrency))
	if p.Barcode == "" {
		p.Barcode = rec.Get(feed.TargetBarcode)
	}
	if p.SKU == "" {
		p.SKU = rec.Get(feed.TargetSKU)
	}
	setDecimal(&p.Weight, rec, feed.TargetWeight)
	setDecimal(&p.TaxRate, rec, feed.TargetTax)

	if isNew || policy.UpdateDescription {
		setString(&p.Description, rec.Get(feed.TargetDescription))
	}
	if (isNew || policy.UpdatePrice) && c.HasPrice() {
		p.Cost = c.Cost
		p.ListPrice = c.ListPrice
	}
	if isNew || policy.UpdateImages {
		if primary, extra := rec.Images(); primary != "" {
			p.ImageURL = primary
			if isNew || len(extra) > 0 {
				p.ImageURLs = extra
			}
		}
	}
	if isNew || policy.UpdateStock {
		if stock, ok, err := rec.Decimal(feed.TargetStock); ok && err == nil {
			p.Stock = stock
			if policy.DeactivateZeroStock {
				p.SaleOK = stock.IsPositive()
			}
		}
	}

	id := source.ID
	p.SourceID = &id
	if source.SupplierID != nil {
		supplier := *source.SupplierID
		p.SupplierID = &supplier
	}
	_, sku, supplierSKU := rec.Identity()
	setString(&p.SupplierSKU, firstNonEmpty(supplierSKU, sku))
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDecimal(dst *decimal.Decimal, rec *feed.MappedRecord, field feed.TargetField) {
	if d, ok, err := rec.Decimal(field); ok && err == nil {
		*dst = d
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinTargets(targets []feed.TargetField) string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

func describe(rec *feed.MappedRecord) string {
	barcode, sku, _ := rec.Identity()
	switch {
	case sku != "":
		return "sku " + sku
	case barcode != "":
		return "barcode " + barcode
	default:
		return fmt.Sprintf("%q", rec.Get(feed.TargetName))
	}
}
