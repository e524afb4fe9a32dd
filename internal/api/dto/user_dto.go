package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateAccountRequest creates a user or an admin.
type CreateAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccountResponse never carries the password hash.
type AccountResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// User converts a domain user.
func User(u *domain.User) AccountResponse {
	return AccountResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// Admin converts a domain admin.
func Admin(a *domain.Admin) AccountResponse {
	return AccountResponse{ID: a.ID, Username: a.Username, Email: a.Email, CreatedAt: a.CreatedAt}
}
