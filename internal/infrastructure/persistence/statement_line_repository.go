package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
)

// GormStatementLineRepository implements banking.StatementLineRepository using GORM
type GormStatementLineRepository struct {
	db *gorm.DB
}

var _ banking.StatementLineRepository = (*GormStatementLineRepository)(nil)

// NewGormStatementLineRepository creates a new GormStatementLineRepository
func NewGormStatementLineRepository(db *gorm.DB) *GormStatementLineRepository {
	return &GormStatementLineRepository{db: db}
}

// ExistsByImportRef reports whether a line with the import reference was already stored
func (r *GormStatementLineRepository) ExistsByImportRef(ctx context.Context, ref string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StatementLineModel{}).
		Where("bank_import_ref = ?", ref).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a line. A unique violation on bank_import_ref is reported as DUPLICATE_IGNORED.
// The insert runs in a nested transaction (a savepoint inside an outer one) so a
// violation leaves the surrounding transaction usable.
func (r *GormStatementLineRepository) Create(ctx context.Context, line *banking.StatementLine) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(models.StatementLineModelFromDomain(line)).Error
	})
	if isUniqueViolation(err) {
		return shared.NewIngestError(shared.ErrDuplicateIgnored, "create statement line "+line.BankImportRef, err)
	}
	return err
}

// CountByAccount returns the number of lines stored for an account
func (r *GormStatementLineRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StatementLineModel{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}
