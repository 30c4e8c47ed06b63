package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DisplayNamePattern допустимые символы отображаемого имени:
// буквы любого алфавита, цифры, пробел, точка, дефис и нижнее подчеркивание
var DisplayNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.\- ]+$`)

const (
	// MinUsernameLen минимальная длина username в символах
	MinUsernameLen = 3
	// MaxUsernameLen максимальная длина username в символах
	MaxUsernameLen = 255
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 8
)

// ErrInvalidUsername returned for every username rule violation
var ErrInvalidUsername = errors.New("invalid username")

// ValidateUsername checks a display name: 3-255 characters, no leading or
// trailing whitespace, only letters, digits, spaces and "_.-".
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidUsername)
	}

	n := utf8.RuneCountInString(username)
	if n < MinUsernameLen {
		return fmt.Errorf("%w: must be at least %d characters long", ErrInvalidUsername, MinUsernameLen)
	}
	if n > MaxUsernameLen {
		return fmt.Errorf("%w: must not exceed %d characters", ErrInvalidUsername, MaxUsernameLen)
	}

	if strings.TrimSpace(username) != username {
		return fmt.Errorf("%w: must not start or end with whitespace", ErrInvalidUsername)
	}

	if !DisplayNamePattern.MatchString(username) {
		return fmt.Errorf("%w: can only contain letters, numbers, spaces and _.-", ErrInvalidUsername)
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if utf8.RuneCountInString(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	return nil
}
