package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/mapkeeper/internal/client/api"
	"github.com/iudanet/mapkeeper/internal/client/storage"
	"github.com/iudanet/mapkeeper/internal/validation"
	pkgapi "github.com/iudanet/mapkeeper/pkg/api"
)

// ErrNotAuthenticated возвращается, если сессии нет или токен истек
var ErrNotAuthenticated = errors.New("not authenticated, please run 'mapkeeper login' first")

// Service предоставляет функции авторизации и хранит сессию
type Service struct {
	apiClient api.ClientAPI
	store     storage.AuthStorage
	now       func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(apiClient api.ClientAPI, store storage.AuthStorage) *Service {
	return &Service{
		apiClient: apiClient,
		store:     store,
		now:       time.Now,
	}
}

// Register регистрирует нового пользователя
func (s *Service) Register(ctx context.Context, username, password string) (*pkgapi.RegisterResponse, error) {
	// Валидация входных данных до запроса к серверу
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	resp, err := s.apiClient.Register(ctx, pkgapi.RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	return resp, nil
}

// Login выполняет аутентификацию и сохраняет сессию
func (s *Service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	session := &storage.AuthData{
		Username:    username,
		UserID:      resp.UserID,
		AccessToken: resp.AccessToken,
		Roles:       resp.Roles,
		ExpiresAt:   s.now().Unix() + resp.ExpiresIn,
	}
	if err := s.store.SaveAuth(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Session возвращает действующую сессию или ErrNotAuthenticated
func (s *Service) Session(ctx context.Context) (*storage.AuthData, error) {
	session, err := s.store.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if s.now().Unix() >= session.ExpiresAt {
		return nil, ErrNotAuthenticated
	}

	return session, nil
}

// Logout удаляет локальную сессию. Токены stateless, сервер не уведомляется.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
