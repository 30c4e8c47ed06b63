package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
)

const userColumns = `id, username, password_hash, password_salt, roles, created_at, last_login`

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.PasswordSalt,
		encodeRoles(user.Roles),
		user.CreatedAt.UnixMicro(),
		nullableMicro(user.LastLogin),
	)

	if err != nil {
		// Проверяем на duplicate username
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByUsername retrieves user by username
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return s.getUser(ctx, query, username)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return s.getUser(ctx, query, userID)
}

// SetUserRoles replaces the roles granted to a user
func (s *Storage) SetUserRoles(ctx context.Context, userID string, roles []models.UserRole) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET roles = ? WHERE id = ?`, encodeRoles(roles), userID)
	if err != nil {
		return fmt.Errorf("failed to update user roles: %w", err)
	}

	return requireAffected(result, storage.ErrUserNotFound)
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, lastLogin.UnixMicro(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return requireAffected(result, storage.ErrUserNotFound)
}

func (s *Storage) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	var roles string
	var createdAt int64
	var lastLogin sql.NullInt64

	err := s.rdb.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.PasswordSalt,
		&roles,
		&createdAt,
		&lastLogin,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Roles = decodeRoles(roles)
	user.CreatedAt = unixMicroToTime(createdAt)
	if lastLogin.Valid {
		t := unixMicroToTime(lastLogin.Int64)
		user.LastLogin = &t
	}

	return user, nil
}

// requireAffected returns notFound if the statement changed no rows
func requireAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return notFound
	}

	return nil
}

// encodeRoles хранит роли строкой через запятую
func encodeRoles(roles []models.UserRole) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// decodeRoles пропускает неизвестные роли
func decodeRoles(s string) []models.UserRole {
	if s == "" {
		return nil
	}
	var roles []models.UserRole
	for _, part := range strings.Split(s, ",") {
		if role, ok := models.ParseUserRole(part); ok {
			roles = append(roles, role)
		}
	}
	return roles
}
