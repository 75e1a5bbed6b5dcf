package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
)

// GormProductRepository implements feed.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

var (
	_ feed.ProductRepository = (*GormProductRepository)(nil)
	_ feed.ProductCatalog    = (*GormProductRepository)(nil)
)

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByBarcode finds a product by exact barcode
func (r *GormProductRepository) FindByBarcode(ctx context.Context, barcode string) (*feed.ProductRecord, error) {
	if barcode == "" {
		return nil, feed.ErrProductNotFound
	}
	return r.first(ctx, "barcode = ?", barcode)
}

// FindBySKU finds a product by exact SKU. The oldest match wins.
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*feed.ProductRecord, error) {
	if sku == "" {
		return nil, feed.ErrProductNotFound
	}
	return r.first(ctx, "sku = ?", sku)
}

// FindBySupplierSKU finds a product previously imported from the source under the supplier SKU
func (r *GormProductRepository) FindBySupplierSKU(ctx context.Context, sourceID uuid.UUID, supplierSKU string) (*feed.ProductRecord, error) {
	if supplierSKU == "" {
		return nil, feed.ErrProductNotFound
	}
	return r.first(ctx, "source_id = ? AND supplier_sku = ?", sourceID, supplierSKU)
}

// Create inserts a product
func (r *GormProductRepository) Create(ctx context.Context, product *feed.ProductRecord) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(models.ProductModelFromDomain(product)).Error
}

// Update writes every column of the product
func (r *GormProductRepository) Update(ctx context.Context, product *feed.ProductRecord) error {
	return r.db.WithContext(ctx).Save(models.ProductModelFromDomain(product)).Error
}

// ListProducts returns the products selected by an export query ordered by name.
// A category selects itself and every category below it.
func (r *GormProductRepository) ListProducts(ctx context.Context, q feed.ProductQuery) ([]*feed.ProductRecord, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&models.ProductModel{})
	if q.SaleOnly {
		query = query.Where("sale_ok = ?", true)
	}
	if len(q.Categories) > 0 {
		categories := db.Where("category IN ?", q.Categories)
		for _, c := range q.Categories {
			categories = categories.Or("category LIKE ? ESCAPE '\\'", escapeLike(c+feed.CategoryPathSeparator)+"%")
		}
		query = query.Where(categories)
	}
	if q.SupplierID != nil {
		query = query.Where("supplier_id = ?", *q.SupplierID)
	}
	if len(q.IDs) > 0 {
		query = query.Where("id IN ?", q.IDs)
	}
	if q.MinStock != nil {
		query = query.Where("CAST(stock AS DOUBLE PRECISION) > ?", q.MinStock.InexactFloat64())
	}

	var rows []models.ProductModel
	if err := query.Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	products := make([]*feed.ProductRecord, 0, len(rows))
	for i := range rows {
		products = append(products, rows[i].ToDomain())
	}
	return products, nil
}

func (r *GormProductRepository) first(ctx context.Context, query string, args ...any) (*feed.ProductRecord, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).
		Where(query, args...).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, feed.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
