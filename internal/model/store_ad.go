package model

import "time"

// Ad placements
const (
	PlacementBanner          = "banner"
	PlacementBetweenProducts = "between_products"
)

// StoreAd is a promotional ad of a store.
type StoreAd struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	StoreID     uint      `json:"store_id" gorm:"index;not null"`
	TemplateID  string    `json:"template_id" gorm:"type:varchar(100);not null"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	ImageURL    string    `json:"image_url,omitempty" gorm:"type:varchar(1024)"`
	LinkURL     string    `json:"link_url,omitempty" gorm:"type:varchar(1024)"`
	Placement   string    `json:"placement" gorm:"type:varchar(32);not null;default:'banner'"`
	SortOrder   int       `json:"sort_order" gorm:"not null;default:0"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// All returns every model of the service for migrations.
func All() []interface{} {
	return []interface{}{&User{}, &Store{}, &StoreSlider{}, &StoreAd{}}
}
