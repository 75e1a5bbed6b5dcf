package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mobilsoft/connectors/internal/domain/feed"
)

// ProductExportModel is the persistence model for a published product export
type ProductExportModel struct {
	BaseModel
	Name               string                    `gorm:"type:varchar(200);not null"`
	Active             bool                      `gorm:"not null"`
	AccessToken        string                    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Password           string                    `gorm:"type:text"`
	Filter             feed.ExportFilter         `gorm:"type:varchar(20);not null;default:'all'"`
	Categories         []string                  `gorm:"type:text;serializer:json"`
	SupplierID         *uuid.UUID                `gorm:"type:uuid"`
	ProductIDs         []uuid.UUID               `gorm:"column:product_ids;type:text;serializer:json"`
	IncludeZeroStock   bool                      `gorm:"not null"`
	MinStock           int                       `gorm:"not null"`
	PriceField         feed.ExportPriceField     `gorm:"type:varchar(20);not null;default:'list_price'"`
	Adjustment         feed.PriceAdjustment      `gorm:"type:varchar(20);not null;default:'none'"`
	AdjustmentValue    decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Currency           string                    `gorm:"type:varchar(3)"`
	Format             feed.ExportFormat         `gorm:"type:varchar(20);not null;default:'standard'"`
	RootElement        string                    `gorm:"type:varchar(100)"`
	ProductElement     string                    `gorm:"type:varchar(100)"`
	IncludeImages      bool                      `gorm:"not null"`
	IncludeDescription bool                      `gorm:"not null"`
	LastAccess         *time.Time
	AccessCount        int                       `gorm:"not null"`
	FieldMappings      []ExportFieldMappingModel `gorm:"foreignKey:ExportID"`
}

// TableName returns the table name for GORM
func (ProductExportModel) TableName() string {
	return "xml_product_exports"
}

// ToDomain converts the model and its field mappings to a domain export
func (m *ProductExportModel) ToDomain() *feed.ProductExport {
	e := &feed.ProductExport{
		BaseEntity:         m.BaseModel.Entity(),
		Name:               m.Name,
		Active:             m.Active,
		AccessToken:        m.AccessToken,
		Password:           m.Password,
		Filter:             m.Filter,
		Categories:         m.Categories,
		SupplierID:         m.SupplierID,
		ProductIDs:         m.ProductIDs,
		IncludeZeroStock:   m.IncludeZeroStock,
		MinStock:           m.MinStock,
		PriceField:         m.PriceField,
		Adjustment:         m.Adjustment,
		AdjustmentValue:    m.AdjustmentValue,
		Currency:           m.Currency,
		Format:             m.Format,
		RootElement:        m.RootElement,
		ProductElement:     m.ProductElement,
		IncludeImages:      m.IncludeImages,
		IncludeDescription: m.IncludeDescription,
		LastAccess:         m.LastAccess,
		AccessCount:        m.AccessCount,
	}
	for _, fm := range m.FieldMappings {
		e.FieldMappings = append(e.FieldMappings, fm.ToDomain())
	}
	return e
}

// ProductExportModelFromDomain creates a model from a domain export
func ProductExportModelFromDomain(e *feed.ProductExport) *ProductExportModel {
	m := &ProductExportModel{
		Name:               e.Name,
		Active:             e.Active,
		AccessToken:        e.AccessToken,
		Password:           e.Password,
		Filter:             e.Filter,
		Categories:         e.Categories,
		SupplierID:         e.SupplierID,
		ProductIDs:         e.ProductIDs,
		IncludeZeroStock:   e.IncludeZeroStock,
		MinStock:           e.MinStock,
		PriceField:         e.PriceField,
		Adjustment:         e.Adjustment,
		AdjustmentValue:    e.AdjustmentValue,
		Currency:           e.Currency,
		Format:             e.Format,
		RootElement:        e.RootElement,
		ProductElement:     e.ProductElement,
		IncludeImages:      e.IncludeImages,
		IncludeDescription: e.IncludeDescription,
		LastAccess:         e.LastAccess,
		AccessCount:        e.AccessCount,
	}
	m.SetEntity(e.BaseEntity)
	for _, fm := range e.FieldMappings {
		fm.ExportID = e.ID
		m.FieldMappings = append(m.FieldMappings, *ExportFieldMappingModelFromDomain(fm))
	}
	return m
}

// ExportFieldMappingModel is the persistence model for one export field mapping
type ExportFieldMappingModel struct {
	ID       uuid.UUID        `gorm:"type:uuid;primary_key"`
	ExportID uuid.UUID        `gorm:"type:uuid;not null;index"`
	Sequence int              `gorm:"not null"`
	Name     string           `gorm:"type:varchar(200);not null"`
	Field    feed.TargetField `gorm:"type:varchar(30);not null"`
	Element  string           `gorm:"type:varchar(255);not null"`
	CDATA    bool             `gorm:"column:use_cdata;not null"`
	Default  string           `gorm:"column:default_value;type:text"`
}

// TableName returns the table name for GORM
func (ExportFieldMappingModel) TableName() string {
	return "xml_export_field_mappings"
}

// ToDomain converts the model to a domain export field mapping
func (m *ExportFieldMappingModel) ToDomain() feed.ExportFieldMapping {
	return feed.ExportFieldMapping{
		ID:       m.ID,
		ExportID: m.ExportID,
		Sequence: m.Sequence,
		Name:     m.Name,
		Field:    m.Field,
		Element:  m.Element,
		CDATA:    m.CDATA,
		Default:  m.Default,
	}
}

// ExportFieldMappingModelFromDomain creates a model from a domain mapping.
// Mappings without an id get a fresh one.
func ExportFieldMappingModelFromDomain(fm feed.ExportFieldMapping) *ExportFieldMappingModel {
	id := fm.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &ExportFieldMappingModel{
		ID:       id,
		ExportID: fm.ExportID,
		Sequence: fm.Sequence,
		Name:     fm.Name,
		Field:    fm.Field,
		Element:  fm.Element,
		CDATA:    fm.CDATA,
		Default:  fm.Default,
	}
}
