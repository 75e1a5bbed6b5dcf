package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// XMLProductSourceModel is the persistence model for an XML product source
type XMLProductSourceModel struct {
	BaseModel
	Name                string                    `gorm:"type:varchar(200);not null"`
	State               feed.SourceState          `gorm:"type:varchar(20);not null;default:'draft'"`
	FeedURL             string                    `gorm:"column:feed_url;type:text"`
	Username            string                    `gorm:"type:varchar(200)"`
	Password            string                    `gorm:"type:text"`
	UploadKey           string                    `gorm:"type:varchar(500)"`
	DeclaredEncoding    string                    `gorm:"type:varchar(40)"`
	ProductPath         string                    `gorm:"type:varchar(255)"`
	Template            feed.Template             `gorm:"type:varchar(20);not null;default:'custom'"`
	SupplierID          *uuid.UUID                `gorm:"type:uuid"`
	MarkupPercent       decimal.Decimal           `gorm:"type:decimal(9,4);not null"`
	MarkupFixed         decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	MinPrice            *decimal.Decimal          `gorm:"type:decimal(18,2)"`
	MaxPrice            *decimal.Decimal          `gorm:"type:decimal(18,2)"`
	Currency            string                    `gorm:"type:varchar(3)"`
	Rounding            feed.Rounding             `gorm:"type:varchar(10);not null;default:'none'"`
	CreateNew           bool                      `gorm:"not null"`
	UpdateExisting      bool                      `gorm:"not null"`
	UpdatePrice         bool                      `gorm:"not null"`
	UpdateStock         bool                      `gorm:"not null"`
	UpdateImages        bool                      `gorm:"not null"`
	UpdateDescription   bool                      `gorm:"not null"`
	UpdateCategory      bool                      `gorm:"not null"`
	DeactivateZeroStock bool                      `gorm:"not null"`
	AutoCreateCategory  bool                      `gorm:"not null"`
	CategorySeparator   string                    `gorm:"type:varchar(20)"`
	DefaultCategory     string                    `gorm:"type:varchar(500)"`
	AutoSync            bool                      `gorm:"not null"`
	SyncIntervalMinutes int                       `gorm:"not null"`
	LastSync            *time.Time
	LastError           string                    `gorm:"type:text"`
	Mappings            []XMLFieldMappingModel    `gorm:"foreignKey:SourceID"`
	CategoryMappings    []XMLCategoryMappingModel `gorm:"foreignKey:SourceID"`
}

// TableName returns the table name for GORM
func (XMLProductSourceModel) TableName() string {
	return "xml_product_sources"
}

// ToDomain converts the model and its mappings to a domain source
func (m *XMLProductSourceModel) ToDomain() *feed.XMLProductSource {
	s := &feed.XMLProductSource{
		BaseEntity:       m.BaseModel.Entity(),
		Name:             m.Name,
		State:            m.State,
		FeedURL:          m.FeedURL,
		Username:         m.Username,
		Password:         m.Password,
		UploadKey:        m.UploadKey,
		DeclaredEncoding: m.DeclaredEncoding,
		ProductPath:      m.ProductPath,
		Template:         m.Template,
		SupplierID:       m.SupplierID,
		Pricing: feed.PricingPolicy{
			MarkupPercent: m.MarkupPercent,
			MarkupFixed:   m.MarkupFixed,
			MinPrice:      m.MinPrice,
			MaxPrice:      m.MaxPrice,
			Currency:      m.Currency,
			Rounding:      m.Rounding,
		},
		Policy: feed.SyncPolicy{
			CreateNew:           m.CreateNew,
			UpdateExisting:      m.UpdateExisting,
			UpdatePrice:         m.UpdatePrice,
			UpdateStock:         m.UpdateStock,
			UpdateImages:        m.UpdateImages,
			UpdateDescription:   m.UpdateDescription,
			UpdateCategory:      m.UpdateCategory,
			DeactivateZeroStock: m.DeactivateZeroStock,
		},
		Categories: feed.CategoryPolicy{
			AutoCreate: m.AutoCreateCategory,
			Separator:  m.CategorySeparator,
			Default:    m.DefaultCategory,
		},
		AutoSync:            m.AutoSync,
		SyncIntervalMinutes: m.SyncIntervalMinutes,
		LastSync:            m.LastSync,
		LastError:           m.LastError,
	}
	for i := range m.Mappings {
		s.Mappings = append(s.Mappings, m.Mappings[i].ToDomain())
	}
	for i := range m.CategoryMappings {
		s.CategoryMappings = append(s.CategoryMappings, m.CategoryMappings[i].ToDomain())
	}
	return s
}

// XMLProductSourceModelFromDomain creates a model from a domain source, mappings included
func XMLProductSourceModelFromDomain(s *feed.XMLProductSource) *XMLProductSourceModel {
	m := &XMLProductSourceModel{
		Name:                s.Name,
		State:               s.State,
		FeedURL:             s.FeedURL,
		Username:            s.Username,
		Password:            s.Password,
		UploadKey:           s.UploadKey,
		DeclaredEncoding:    s.DeclaredEncoding,
		ProductPath:         s.ProductPath,
		Template:            s.Template,
		SupplierID:          s.SupplierID,
		MarkupPercent:       s.Pricing.MarkupPercent,
		MarkupFixed:         s.Pricing.MarkupFixed,
		MinPrice:            s.Pricing.MinPrice,
		MaxPrice:            s.Pricing.MaxPrice,
		Currency:            s.Pricing.Currency,
		Rounding:            s.Pricing.Rounding,
		CreateNew:           s.Policy.CreateNew,
		UpdateExisting:      s.Policy.UpdateExisting,
		UpdatePrice:         s.Policy.UpdatePrice,
		UpdateStock:         s.Policy.UpdateStock,
		UpdateImages:        s.Policy.UpdateImages,
		UpdateDescription:   s.Policy.UpdateDescription,
		UpdateCategory:      s.Policy.UpdateCategory,
		DeactivateZeroStock: s.Policy.DeactivateZeroStock,
		AutoCreateCategory:  s.Categories.AutoCreate,
		CategorySeparator:   s.Categories.Separator,
		DefaultCategory:     s.Categories.Default,
		AutoSync:            s.AutoSync,
		SyncIntervalMinutes: s.SyncIntervalMinutes,
		LastSync:            s.LastSync,
		LastError:           s.LastError,
	}
	m.SetEntity(s.BaseEntity)
	for _, fm := range s.Mappings {
		mm := XMLFieldMappingModelFromDomain(fm)
		mm.SourceID = s.ID
		m.Mappings = append(m.Mappings, *mm)
	}
	for _, cm := range s.CategoryMappings {
		mm := XMLCategoryMappingModelFromDomain(cm)
		mm.SourceID = s.ID
		m.CategoryMappings = append(m.CategoryMappings, *mm)
	}
	return m
}

// XMLFieldMappingModel is the persistence model for one mapping rule
type XMLFieldMappingModel struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key"`
	SourceID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	Sequence     int              `gorm:"not null"`
	Target       feed.TargetField `gorm:"type:varchar(30);not null"`
	XMLPath      string           `gorm:"column:xml_path;type:varchar(255);not null"`
	Transform    feed.Transform   `gorm:"type:varchar(20);not null;default:'none'"`
	RegexPattern string           `gorm:"type:varchar(255)"`
	RegexReplace string           `gorm:"type:varchar(255)"`
	DefaultValue string           `gorm:"type:varchar(255)"`
	IsRequired   bool             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (XMLFieldMappingModel) TableName() string {
	return "xml_field_mappings"
}

// ToDomain converts the model to a domain mapping
func (m *XMLFieldMappingModel) ToDomain() feed.FieldMapping {
	return feed.FieldMapping{
		ID:           m.ID,
		SourceID:     m.SourceID,
		Sequence:     m.Sequence,
		Target:       m.Target,
		XMLPath:      m.XMLPath,
		Transform:    m.Transform,
		RegexPattern: m.RegexPattern,
		RegexReplace: m.RegexReplace,
		DefaultValue: m.DefaultValue,
		IsRequired:   m.IsRequired,
	}
}

// XMLFieldMappingModelFromDomain creates a model from a domain mapping.
// Mappings without an id get a fresh one.
func XMLFieldMappingModelFromDomain(fm feed.FieldMapping) *XMLFieldMappingModel {
	id := fm.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &XMLFieldMappingModel{
		ID:           id,
		SourceID:     fm.SourceID,
		Sequence:     fm.Sequence,
		Target:       fm.Target,
		XMLPath:      fm.XMLPath,
		Transform:    fm.Transform,
		RegexPattern: fm.RegexPattern,
		RegexReplace: fm.RegexReplace,
		DefaultValue: fm.DefaultValue,
		IsRequired:   fm.IsRequired,
	}
}

// XMLCategoryMappingModel is the persistence model for one category mapping
type XMLCategoryMappingModel struct {
	ID          uuid.UUID          `gorm:"type:uuid;primary_key"`
	SourceID    uuid.UUID          `gorm:"type:uuid;not null;index"`
	Sequence    int                `gorm:"not null"`
	XMLCategory string             `gorm:"column:xml_category;type:varchar(500);not null"`
	Category    string             `gorm:"type:varchar(500);not null"`
	MatchType   feed.CategoryMatch `gorm:"type:varchar(20);not null;default:'exact'"`
	Active      bool               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (XMLCategoryMappingModel) TableName() string {
	return "xml_category_mappings"
}

// ToDomain converts the model to a domain category mapping
func (m *XMLCategoryMappingModel) ToDomain() feed.CategoryMapping {
	return feed.CategoryMapping{
		ID:          m.ID,
		SourceID:    m.SourceID,
		Sequence:    m.Sequence,
		XMLCategory: m.XMLCategory,
		Category:    m.Category,
		MatchType:   m.MatchType,
		Active:      m.Active,
	}
}

// XMLCategoryMappingModelFromDomain creates a model from a domain category mapping
func XMLCategoryMappingModelFromDomain(cm feed.CategoryMapping) *XMLCategoryMappingModel {
	id := cm.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &XMLCategoryMappingModel{
		ID:          id,
		SourceID:    cm.SourceID,
		Sequence:    cm.Sequence,
		XMLCategory: cm.XMLCategory,
		Category:    cm.Category,
		MatchType:   cm.MatchType,
		Active:      cm.Active,
	}
}

// ProductCategoryModel is a catalog category; complete_name is unique
type ProductCategoryModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	CreatedAt    time.Time  `gorm:"not null"`
	Name         string     `gorm:"type:varchar(200);not null"`
	ParentID     *uuid.UUID `gorm:"type:uuid;index"`
	CompleteName string     `gorm:"type:varchar(1000);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (ProductCategoryModel) TableName() string {
	return "product_categories"
}

// ToDomain converts the model to a domain category
func (m *ProductCategoryModel) ToDomain() *feed.Category {
	return &feed.Category{ID: m.ID, Name: m.Name, ParentID: m.ParentID, CompleteName: m.CompleteName}
}

// ProductModel is the catalog row written by feed imports
type ProductModel struct {
	BaseModel
	SKU             string          `gorm:"column:sku;type:varchar(100);index"`
	Barcode         *string         `gorm:"type:varchar(64);uniqueIndex"`
	Name            string          `gorm:"type:varchar(500);not null"`
	Description     string          `gorm:"type:text"`
	ListPrice       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Cost            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency        string          `gorm:"type:varchar(3)"`
	Stock           decimal.Decimal `gorm:"type:decimal(18,3);not null"`
	Brand           string          `gorm:"type:varchar(200)"`
	Category        string          `gorm:"type:varchar(255)"`
	Model           string          `gorm:"type:varchar(200)"`
	Color           string          `gorm:"type:varchar(100)"`
	Size            string          `gorm:"type:varchar(100)"`
	Weight          decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(6,2);not null"`
	ImageURL        string          `gorm:"column:image_url;type:text"`
	ImageURLs       []string        `gorm:"column:image_urls;type:text;serializer:json"`
	SupplierID      *uuid.UUID      `gorm:"type:uuid"`
	SupplierSKU     string          `gorm:"column:supplier_sku;type:varchar(100);index"`
	SourceID        *uuid.UUID      `gorm:"type:uuid;index"`
	LockedFromFeeds bool            `gorm:"not null"`
	SaleOK          bool            `gorm:"not null"`
	LastSyncSource  string          `gorm:"type:varchar(200)"`
	LastSyncTime    *time.Time
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the model to a domain product
func (m *ProductModel) ToDomain() *feed.ProductRecord {
	p := &feed.ProductRecord{
		ID:              m.ID,
		SKU:             m.SKU,
		Name:            m.Name,
		Description:     m.Description,
		ListPrice:       m.ListPrice,
		Cost:            m.Cost,
		Currency:        m.Currency,
		Stock:           m.Stock,
		Brand:           m.Brand,
		Category:        m.Category,
		Model:           m.Model,
		Color:           m.Color,
		Size:            m.Size,
		Weight:          m.Weight,
		TaxRate:         m.TaxRate,
		ImageURL:        m.ImageURL,
		ImageURLs:       m.ImageURLs,
		SupplierID:      m.SupplierID,
		SupplierSKU:     m.SupplierSKU,
		SourceID:        m.SourceID,
		LockedFromFeeds: m.LockedFromFeeds,
		SaleOK:          m.SaleOK,
		LastSyncSource:  m.LastSyncSource,
		LastSyncTime:    m.LastSyncTime,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Barcode != nil {
		p.Barcode = *m.Barcode
	}
	return p
}

// ProductModelFromDomain creates a model from a domain product.
// An empty barcode is stored as NULL so the unique index ignores it.
func ProductModelFromDomain(p *feed.ProductRecord) *ProductModel {
	m := &ProductModel{
		SKU:             p.SKU,
		Name:            p.Name,
		Description:     p.Description,
		ListPrice:       p.ListPrice,
		Cost:            p.Cost,
		Currency:        p.Currency,
		Stock:           p.Stock,
		Brand:           p.Brand,
		Category:        p.Category,
		Model:           p.Model,
		Color:           p.Color,
		Size:            p.Size,
		Weight:          p.Weight,
		TaxRate:         p.TaxRate,
		ImageURL:        p.ImageURL,
		ImageURLs:       p.ImageURLs,
		SupplierID:      p.SupplierID,
		SupplierSKU:     p.SupplierSKU,
		SourceID:        p.SourceID,
		LockedFromFeeds: p.LockedFromFeeds,
		SaleOK:          p.SaleOK,
		LastSyncSource:  p.LastSyncSource,
		LastSyncTime:    p.LastSyncTime,
	}
	m.SetEntity(shared.BaseEntity{ID: p.ID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt})
	if p.Barcode != "" {
		barcode := p.Barcode
		m.Barcode = &barcode
	}
	return m
}
