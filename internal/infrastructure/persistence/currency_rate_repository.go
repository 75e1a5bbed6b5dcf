package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
)

// GormCurrencyRateRepository implements banking.CurrencyRateRepository using GORM
type GormCurrencyRateRepository struct {
	db *gorm.DB
}

var _ banking.CurrencyRateRepository = (*GormCurrencyRateRepository)(nil)

// NewGormCurrencyRateRepository creates a new GormCurrencyRateRepository
func NewGormCurrencyRateRepository(db *gorm.DB) *GormCurrencyRateRepository {
	return &GormCurrencyRateRepository{db: db}
}

// Upsert inserts the rate or updates the existing row for (currency, effective_date, source)
func (r *GormCurrencyRateRepository) Upsert(ctx context.Context, rate *banking.CurrencyRate) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "currency"}, {Name: "effective_date"}, {Name: "source"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "buy_rate", "connector_id", "updated_at"}),
		}).
		Create(models.CurrencyRateModelFromDomain(rate)).Error
}

// FindByKey finds the rate for (currency, date, source)
func (r *GormCurrencyRateRepository) FindByKey(ctx context.Context, currency string, date time.Time, source string) (*banking.CurrencyRate, error) {
	var model models.CurrencyRateModel
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if err := r.db.WithContext(ctx).
		Where("currency = ? AND effective_date = ? AND source = ?", currency, day, source).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
