package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbsandco/crumbs-backend/pkg/db/models"
	"github.com/crumbsandco/crumbs-backend/pkg/enums"
)

// LoginRequest carries back-office credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the successful login payload.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	Admin       AdminSummary `json:"admin"`
}

// AdminSummary is the public shape of a back-office account. The password
// hash never leaves this package.
type AdminSummary struct {
	ID          uuid.UUID       `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Role        enums.AdminRole `json:"role"`
	IsActive    bool            `json:"is_active"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CreateAdminRequest is the owner-only account creation payload.
type CreateAdminRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Name     string          `json:"name" validate:"required"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     enums.AdminRole `json:"role" validate:"required"`
}

// FromModel converts a stored admin into its public summary.
func FromModel(admin *models.AdminUser) AdminSummary {
	return AdminSummary{
		ID:          admin.ID,
		Email:       admin.Email,
		Name:        admin.Name,
		Role:        admin.Role,
		IsActive:    admin.IsActive,
		LastLoginAt: admin.LastLoginAt,
		CreatedAt:   admin.CreatedAt,
	}
}
