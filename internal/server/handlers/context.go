package handlers

import (
	"context"

	"github.com/iudanet/mapkeeper/internal/diff"
	"github.com/iudanet/mapkeeper/internal/models"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
	// UsernameKey ключ для хранения username в контексте
	UsernameKey contextKey = "username"
	// RolesKey ключ для хранения ролей пользователя в контексте
	RolesKey contextKey = "roles"
)

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUsername извлекает username из контекста запроса
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// GetRoles извлекает роли пользователя из контекста запроса
func GetRoles(ctx context.Context) []models.UserRole {
	roles, _ := ctx.Value(RolesKey).([]models.UserRole)
	return roles
}

// WithUser кладет данные пользователя в контекст
func WithUser(ctx context.Context, userID, username string, roles []models.UserRole) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UsernameKey, username)
	return context.WithValue(ctx, RolesKey, roles)
}

// actorFromContext собирает автора diff из контекста
func actorFromContext(ctx context.Context) (diff.Actor, bool) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return diff.Actor{}, false
	}
	return diff.Actor{UserID: userID, Roles: GetRoles(ctx)}, true
}
