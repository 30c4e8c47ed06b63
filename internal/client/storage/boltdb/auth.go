package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/mapkeeper/internal/client/storage"
)

// Хранится одна сессия, новый login ее заменяет
var keySession = []byte("session")

// SaveAuth сохраняет сессию
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.update(ctx, bucketAuth, func(b *bbolt.Bucket) error {
		if err := b.Put(keySession, data); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// GetAuth возвращает сессию или storage.ErrAuthNotFound
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	var session storage.AuthData

	err := s.view(ctx, bucketAuth, func(b *bbolt.Bucket) error {
		data := b.Get(keySession)
		if data == nil {
			return storage.ErrAuthNotFound
		}
		// data действительна только внутри транзакции, Unmarshal копирует
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// DeleteAuth удаляет сессию
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.update(ctx, bucketAuth, func(b *bbolt.Bucket) error {
		if b.Get(keySession) == nil {
			return storage.ErrAuthNotFound
		}
		return b.Delete(keySession)
	})
}

// IsAuthenticated сообщает, есть ли сессия с неистекшим токеном
func (s *Storage) IsAuthenticated(ctx context.Context) (bool, error) {
	session, err := s.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return time.Now().Unix() < session.ExpiresAt, nil
}
