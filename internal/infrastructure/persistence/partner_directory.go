package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence/models"
)

// GormPartnerDirectory implements banking.PartnerDirectory using GORM
type GormPartnerDirectory struct {
	db *gorm.DB
}

var _ banking.PartnerDirectory = (*GormPartnerDirectory)(nil)

// NewGormPartnerDirectory creates a new GormPartnerDirectory
func NewGormPartnerDirectory(db *gorm.DB) *GormPartnerDirectory {
	return &GormPartnerDirectory{db: db}
}

// FindByIBAN returns partners owning the normalized IBAN
func (r *GormPartnerDirectory) FindByIBAN(ctx context.Context, iban string) ([]banking.Partner, error) {
	iban = banking.NormalizeIBAN(iban)
	if iban == "" {
		return nil, nil
	}
	sub := r.db.Model(&models.PartnerBankAccountModel{}).Select("partner_id").Where("iban = ?", iban)
	return r.find(r.db.WithContext(ctx).Where("id IN (?)", sub))
}

// FindByTaxID returns partners with the tax id
func (r *GormPartnerDirectory) FindByTaxID(ctx context.Context, taxID string) ([]banking.Partner, error) {
	if taxID == "" {
		return nil, nil
	}
	return r.find(r.db.WithContext(ctx).Where("tax_id = ?", taxID))
}

// FindByExactName returns partners whose name matches exactly
func (r *GormPartnerDirectory) FindByExactName(ctx context.Context, name string) ([]banking.Partner, error) {
	if name == "" {
		return nil, nil
	}
	return r.find(r.db.WithContext(ctx).Where("name = ?", name))
}

func (r *GormPartnerDirectory) find(q *gorm.DB) ([]banking.Partner, error) {
	var rows []models.PartnerModel
	if err := q.Preload("BankAccounts").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	partners := make([]banking.Partner, 0, len(rows))
	for i := range rows {
		partners = append(partners, rows[i].ToDomain())
	}
	return partners, nil
}
