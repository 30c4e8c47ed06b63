package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username string `json:"username"` // display name пользователя
	Password string `json:"password"` // пароль, хешируется на сервере argon2id
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	UserID  string `json:"user_id"` // UUID пользователя
	Message string `json:"message"` // сообщение об успешной регистрации
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string   `json:"access_token"` // JWT access token
	UserID      string   `json:"user_id"`
	Roles       []string `json:"roles"`
	ExpiresIn   int64    `json:"expires_in"` // время жизни access token в секундах
}

// RolesRequest заменяет роли пользователя (только для администратора)
type RolesRequest struct {
	Roles []string `json:"roles"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
	Kind    string `json:"kind,omitempty"`    // validation, conflict или integrity для ошибок diff
}
