package feed

import (
	"context"

	"github.com/google/uuid"
)

// SourceRepository persists feed sources together with their mappings
type SourceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*XMLProductSource, error)
	FindAutoSync(ctx context.Context) ([]XMLProductSource, error)
	Save(ctx context.Context, source *XMLProductSource) error
}

// ProductRepository is the catalog port used by the reconciler.
// Finders return ErrProductNotFound when nothing matches.
type ProductRepository interface {
	FindByBarcode(ctx context.Context, barcode string) (*ProductRecord, error)
	FindBySKU(ctx context.Context, sku string) (*ProductRecord, error)
	FindBySupplierSKU(ctx context.Context, sourceID uuid.UUID, supplierSKU string) (*ProductRecord, error)
	Create(ctx context.Context, product *ProductRecord) error
	Update(ctx context.Context, product *ProductRecord) error
}

// DocumentStore holds uploaded feed documents
type DocumentStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}
