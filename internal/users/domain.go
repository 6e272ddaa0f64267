package users

import (
	"fmt"
	"time"

	"github.com/sitemaster-erp/sitemaster/internal/shared"
)

// User represents a user account. Site staff are referenced by id from audit
// logs, approvals and transaction creator/approver fields.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var (
	// ErrEmailRequired indicates a blank email.
	ErrEmailRequired = fmt.Errorf("users: email is required: %w", shared.ErrValidation)
	// ErrNameRequired indicates a blank display name.
	ErrNameRequired = fmt.Errorf("users: name is required: %w", shared.ErrValidation)
	// ErrPasswordTooShort indicates a password below the minimum length.
	ErrPasswordTooShort = fmt.Errorf("users: password must be at least 8 characters: %w", shared.ErrValidation)
	// ErrInvalidCredentials indicates a failed email/password check.
	ErrInvalidCredentials = fmt.Errorf("users: invalid credentials: %w", shared.ErrValidation)
)
