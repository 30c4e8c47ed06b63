package storage

import (
	"context"
)

// AuthStorage defines interface for storing the login session on client
type AuthStorage interface {
	// SaveAuth stores the session, replacing any previous one
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves the stored session
	// Returns ErrAuthNotFound if no session exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes the stored session (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated checks if a session exists and its token is not expired
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData represents the saved login session
type AuthData struct {
	Username    string   `json:"username"`
	UserID      string   `json:"user_id"`
	AccessToken string   `json:"access_token"`
	Roles       []string `json:"roles"`
	ExpiresAt   int64    `json:"expires_at"` // unix seconds
}
