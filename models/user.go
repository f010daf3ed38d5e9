package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleStaff    = "staff"
	RoleSupplier = "supplier"
)

type User struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	Email              string         `json:"email" gorm:"uniqueIndex;not null"`
	Phone              string         `json:"phone"`
	Password           string         `json:"-" gorm:"not null"`
	FullName           string         `json:"full_name" gorm:"not null"`
	Role               string         `json:"role" gorm:"not null;index"` // staff, supplier
	IsActive           bool           `json:"is_active"`
	MustChangePassword bool           `json:"must_change_password"`
	LastLoginAt        *time.Time     `json:"last_login_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u User) IsStaff() bool {
	return u.Role == RoleStaff
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ChangePasswordRequest replaces the caller's password. Suppliers arrive
// here after logging in with the temporary password sent on approval.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}
