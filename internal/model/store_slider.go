package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StoreSlider is a hero banner of a store, displayed by SortOrder.
type StoreSlider struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	StoreID    uint              `json:"store_id" gorm:"index;not null"`
	Title      string            `json:"title" gorm:"type:varchar(255);not null"`
	Subtitle   string            `json:"subtitle" gorm:"type:varchar(512)"`
	ButtonText string            `json:"button_text" gorm:"type:varchar(128)"`
	ImagePath  string            `json:"image_path" gorm:"type:varchar(1024);not null"`
	SortOrder  int               `json:"sort_order" gorm:"index;not null;default:0"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// BeforeCreate assigns a random id.
func (s *StoreSlider) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
