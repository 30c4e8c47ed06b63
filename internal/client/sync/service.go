// Package sync отправляет outbox на сервер одним diff и управляет текущим changeset.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/mapkeeper/internal/client/api"
	"github.com/iudanet/mapkeeper/internal/client/storage"
	pkgapi "github.com/iudanet/mapkeeper/pkg/api"
)

var (
	// ErrNothingToUpload outbox пуст
	ErrNothingToUpload = errors.New("nothing to upload")
	// ErrChangesetOpen текущий changeset уже открыт
	ErrChangesetOpen = errors.New("changeset already open")
)

// LocalStorage часть клиентского хранилища, нужная для синхронизации
type LocalStorage interface {
	storage.OutboxStorage
	storage.MetadataStorage
}

// Service отправляет локальные правки на сервер
type Service struct {
	apiClient api.ClientAPI
	store     LocalStorage
	logger    *slog.Logger
}

// NewService создает сервис синхронизации
func NewService(apiClient api.ClientAPI, store LocalStorage, logger *slog.Logger) *Service {
	return &Service{
		apiClient: apiClient,
		store:     store,
		logger:    logger,
	}
}

// UploadResult итог отправки outbox
type UploadResult struct {
	Response    *pkgapi.UploadResponse
	ChangesetID int64
	Uploaded    int
}

// OpenChangeset открывает changeset на сервере и запоминает его как текущий
func (s *Service) OpenChangeset(ctx context.Context, accessToken string, tags map[string]string) (*pkgapi.Changeset, error) {
	if id, err := s.store.GetCurrentChangeset(ctx); err == nil {
		return nil, fmt.Errorf("%w: %d", ErrChangesetOpen, id)
	} else if !errors.Is(err, storage.ErrNoChangeset) {
		return nil, fmt.Errorf("failed to get current changeset: %w", err)
	}

	cs, err := s.apiClient.CreateChangeset(ctx, accessToken, pkgapi.CreateChangesetRequest{Tags: tags})
	if err != nil {
		return nil, fmt.Errorf("failed to create changeset: %w", err)
	}

	if err := s.store.SaveCurrentChangeset(ctx, cs.ID); err != nil {
		return nil, fmt.Errorf("failed to save current changeset: %w", err)
	}

	s.logger.InfoContext(ctx, "changeset opened", slog.Int64("changeset_id", cs.ID))
	return cs, nil
}

// CloseChangeset закрывает текущий changeset.
// Если сервер уже закрыл его (по размеру или таймауту), локальная отметка все равно снимается.
func (s *Service) CloseChangeset(ctx context.Context, accessToken string) (int64, error) {
	id, err := s.store.GetCurrentChangeset(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.apiClient.CloseChangeset(ctx, accessToken, id); err != nil {
		if !api.IsConflict(err) {
			return 0, fmt.Errorf("failed to close changeset %d: %w", id, err)
		}
		s.logger.WarnContext(ctx, "changeset already closed on server", slog.Int64("changeset_id", id))
	}

	if err := s.store.ClearCurrentChangeset(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear current changeset: %w", err)
	}

	s.logger.InfoContext(ctx, "changeset closed", slog.Int64("changeset_id", id))
	return id, nil
}

// CurrentChangeset возвращает текущий changeset с сервера
func (s *Service) CurrentChangeset(ctx context.Context) (*pkgapi.Changeset, error) {
	id, err := s.store.GetCurrentChangeset(ctx)
	if err != nil {
		return nil, err
	}

	cs, err := s.apiClient.GetChangeset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get changeset %d: %w", id, err)
	}
	return cs, nil
}

// Upload отправляет все правки outbox одним diff в текущий changeset.
// Diff применяется целиком или не применяется вовсе, поэтому outbox
// очищается только после успешного ответа. При конфликте правки остаются
// в outbox: их нужно обновить до свежих версий и отправить снова.
func (s *Service) Upload(ctx context.Context, accessToken string) (*UploadResult, error) {
	changesetID, err := s.store.GetCurrentChangeset(ctx)
	if err != nil {
		return nil, err
	}

	staged, err := s.store.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending drafts: %w", err)
	}
	if len(staged) == 0 {
		return nil, ErrNothingToUpload
	}

	drafts := make([]pkgapi.Draft, len(staged))
	for i, d := range staged {
		drafts[i] = d.Draft
	}
	lastSeq := staged[len(staged)-1].Seq

	s.logger.InfoContext(ctx, "uploading diff",
		slog.Int64("changeset_id", changesetID),
		slog.Int("drafts", len(drafts)))

	resp, err := s.apiClient.Upload(ctx, accessToken, changesetID, pkgapi.UploadRequest{Drafts: drafts})
	if err != nil {
		if api.IsConflict(err) {
			s.logger.WarnContext(ctx, "diff rejected by conflict, drafts kept",
				slog.Int64("changeset_id", changesetID),
				slog.Any("error", err))
		}
		return nil, fmt.Errorf("failed to upload diff: %w", err)
	}

	// Правки, добавленные во время отправки, остаются в outbox
	if err := s.store.Clear(ctx, lastSeq); err != nil {
		return nil, fmt.Errorf("diff uploaded but failed to clear outbox: %w", err)
	}

	s.logger.InfoContext(ctx, "diff uploaded",
		slog.Int64("changeset_id", changesetID),
		slog.Int("results", len(resp.Results)),
		slog.Int("skipped", len(resp.Skipped)))

	return &UploadResult{
		Response:    resp,
		ChangesetID: changesetID,
		Uploaded:    len(drafts),
	}, nil
}

// PendingCount возвращает количество правок, ожидающих отправки
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	staged, err := s.store.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending drafts: %w", err)
	}
	return len(staged), nil
}
