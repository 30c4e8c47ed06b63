package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/mapkeeper/internal/models"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

// setupFileStorage создает базу в файле: нужна, когда читатели и писатель
// должны работать через разные соединения
func setupFileStorage(t *testing.T) *Storage {
	storage, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage) string {
	userID := uuid.New().String()
	user := &models.User{
		ID:           userID,
		Username:     "testuser_" + userID[:8],
		PasswordHash: "hash",
		PasswordSalt: "salt",
		Roles:        []models.UserRole{models.RoleUser},
		CreatedAt:    time.Now(),
	}

	err := s.CreateUser(ctx, user)
	require.NoError(t, err)

	return userID
}

func createTestChangeset(t *testing.T, ctx context.Context, s *Storage) *models.Changeset {
	now := time.Now()
	cs := &models.Changeset{
		UserID:    createTestUser(t, ctx, s),
		Tags:      map[string]string{"comment": "test"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateChangeset(ctx, cs))
	return cs
}

func timePtr(t time.Time) *time.Time {
	return &t
}
