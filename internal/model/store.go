package model

import (
	"time"

	"gorm.io/gorm"
)

// Store represents a provisioned storefront. It exclusively owns its sliders
// and ads.
type Store struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	MerchantID  uint           `json:"merchant_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	Slug        string         `json:"slug" gorm:"type:varchar(255);uniqueIndex;not null"`
	Category    string         `json:"category" gorm:"type:varchar(100);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Logo        string         `json:"logo" gorm:"type:varchar(500)"`
	Banner      string         `json:"banner" gorm:"type:varchar(500)"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Merchant *User         `json:"-" gorm:"foreignKey:MerchantID"`
	Sliders  []StoreSlider `json:"sliders,omitempty" gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
	Ads      []StoreAd     `json:"ads,omitempty" gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE"`
}
