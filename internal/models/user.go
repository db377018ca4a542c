package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account holder
type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Email             string     `gorm:"uniqueIndex:users_email_key;not null" json:"email"`
	EncryptedPassword string     `gorm:"column:encrypted_password;not null" json:"-"`
	FullName          string     `gorm:"not null" json:"full_name"`
	Phone             string     `json:"phone"`
	Status            string     `gorm:"default:active" json:"status"`
	Locale            string     `gorm:"default:tr" json:"locale"`
	LastLoginAt       *time.Time `json:"last_login_at"`
	DiscardedAt       *time.Time `gorm:"index" json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Loans []Loan `gorm:"foreignKey:UserID" json:"loans,omitempty"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// User status constants
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// LocaleTR is the default locale
const LocaleTR = "tr"

// BeforeCreate hook for setting defaults
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Status == "" {
		u.Status = StatusActive
	}
	if u.Locale == "" {
		u.Locale = LocaleTR
	}
	return nil
}

// IsActive returns true if the account may sign in
func (u *User) IsActive() bool {
	return u.Status == StatusActive && u.DiscardedAt == nil
}

// UserResponse is the JSON response format for users
type UserResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Phone       string     `json:"phone"`
	Status      string     `json:"status"`
	Locale      string     `json:"locale"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		Phone:       u.Phone,
		Status:      u.Status,
		Locale:      u.Locale,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
