package models

import "time"

// UserRole роль пользователя, влияет на лимиты changeset
type UserRole string

const (
	RoleUser          UserRole = "user"
	RoleModerator     UserRole = "moderator"
	RoleAdministrator UserRole = "administrator"
)

// Лимиты размера changeset по ролям
const (
	ChangesetMaxSizeUser          int64 = 10_000
	ChangesetMaxSizeModerator     int64 = 20_000
	ChangesetMaxSizeAdministrator int64 = 50_000
)

// ParseUserRole parses a role name.
func ParseUserRole(s string) (UserRole, bool) {
	switch UserRole(s) {
	case RoleUser, RoleModerator, RoleAdministrator:
		return UserRole(s), true
	default:
		return "", false
	}
}

// ChangesetMaxSize returns the highest changeset size limit granted by roles.
// A user without roles gets the plain user limit.
func ChangesetMaxSize(roles []UserRole) int64 {
	limit := ChangesetMaxSizeUser
	for _, role := range roles {
		var l int64
		switch role {
		case RoleModerator:
			l = ChangesetMaxSizeModerator
		case RoleAdministrator:
			l = ChangesetMaxSizeAdministrator
		default:
			l = ChangesetMaxSizeUser
		}
		if l > limit {
			limit = l
		}
	}
	return limit
}

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time  `json:"created_at"`           // время создания
	LastLogin    *time.Time `json:"last_login,omitempty"` // время последнего входа
	ID           string     `json:"id"`                   // UUID пользователя
	Username     string     `json:"username"`             // уникальный username
	PasswordHash string     `json:"-"`                    // base64 argon2id хеш пароля
	PasswordSalt string     `json:"-"`                    // base64 соль (32 bytes)
	Roles        []UserRole `json:"roles"`
}

// HasRole reports whether the user was granted role.
func (u *User) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
