package model

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User roles
const (
	RoleMerchant = "merchant"
	RoleAdmin    = "admin"
)

// User represents an account stored in the database. Merchants carry a
// denormalized copy of their store's name, slug and category for quick lookup.
type User struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	Email            string         `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	SecondaryEmail   *string        `json:"secondary_email,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	Password         string         `json:"-" gorm:"type:varchar(255);not null"`
	FirstName        string         `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName         string         `json:"last_name" gorm:"type:varchar(100);not null"`
	Phone            string         `json:"phone" gorm:"type:varchar(20);not null"`
	Role             string         `json:"role" gorm:"type:varchar(20);not null;default:'merchant'"`
	StoreName        string         `json:"store_name,omitempty" gorm:"type:varchar(255)"`
	StoreSlug        *string        `json:"store_slug,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	StoreCategory    string         `json:"store_category,omitempty" gorm:"type:varchar(100)"`
	StoreDescription string         `json:"store_description,omitempty" gorm:"type:text"`
	StoreLogo        string         `json:"store_logo,omitempty" gorm:"type:varchar(500)"`
	MerchantVerified bool           `json:"merchant_verified" gorm:"default:false"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate hashes the plain password and normalizes the email.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleMerchant
	}
	if u.Password == "" || isBcryptHash(u.Password) {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// CheckPassword compares a plain password with the stored hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
