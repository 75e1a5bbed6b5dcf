package models

import (
	"time"

	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
)

// QCommerceChannelModel is the persistence model for a quick-commerce channel.
// APIKey and WebhookSecret hold sealed values.
type QCommerceChannelModel struct {
	BaseModel
	Name          string                 `gorm:"type:varchar(200);not null"`
	Platform      qcommerce.PlatformType `gorm:"type:varchar(20);not null;index"`
	Active        bool                   `gorm:"not null"`
	MerchantID    string                 `gorm:"type:varchar(100)"`
	APIKey        string                 `gorm:"column:api_key;type:text"`
	WebhookSecret string                 `gorm:"type:text"`
	ShopID        string                 `gorm:"type:varchar(100)"`
	LastSync      *time.Time
}

// TableName returns the table name for GORM
func (QCommerceChannelModel) TableName() string {
	return "qcommerce_channels"
}

// ToDomain converts the model to a domain channel
func (m *QCommerceChannelModel) ToDomain() *qcommerce.Channel {
	return &qcommerce.Channel{
		BaseEntity:    m.BaseModel.Entity(),
		Name:          m.Name,
		Platform:      m.Platform,
		Active:        m.Active,
		MerchantID:    m.MerchantID,
		APIKey:        m.APIKey,
		WebhookSecret: m.WebhookSecret,
		ShopID:        m.ShopID,
		LastSync:      m.LastSync,
	}
}

// QCommerceChannelModelFromDomain creates a model from a domain channel
func QCommerceChannelModelFromDomain(c *qcommerce.Channel) *QCommerceChannelModel {
	m := &QCommerceChannelModel{
		Name:          c.Name,
		Platform:      c.Platform,
		Active:        c.Active,
		MerchantID:    c.MerchantID,
		APIKey:        c.APIKey,
		WebhookSecret: c.WebhookSecret,
		ShopID:        c.ShopID,
		LastSync:      c.LastSync,
	}
	m.SetEntity(c.BaseEntity)
	return m
}
