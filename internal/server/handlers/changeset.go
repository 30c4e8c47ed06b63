package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
	"github.com/iudanet/mapkeeper/pkg/api"
)

// ChangesetHandler обрабатывает открытие, чтение и закрытие changeset
type ChangesetHandler struct {
	logger  *slog.Logger
	storage storage.ChangesetStorage
}

// NewChangesetHandler создает новый handler для changeset
func NewChangesetHandler(logger *slog.Logger, s storage.ChangesetStorage) *ChangesetHandler {
	return &ChangesetHandler{
		logger:  logger,
		storage: s,
	}
}

// Create обрабатывает POST /api/v1/changesets
func (h *ChangesetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "user ID not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.CreateChangesetRequest
	// Пустое тело допустимо: changeset без тегов
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	cs := &models.Changeset{
		UserID:    userID,
		Tags:      req.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.storage.CreateChangeset(ctx, cs); err != nil {
		h.logger.ErrorContext(ctx, "failed to create changeset", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "changeset opened",
		slog.Int64("changeset_id", cs.ID),
		slog.String("user_id", userID))

	sendJSON(h.logger, w, changesetToAPI(cs), http.StatusCreated)
}

// Get обрабатывает GET /api/v1/changesets/{id}
func (h *ChangesetHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseChangesetID(h.logger, w, r)
	if !ok {
		return
	}

	cs, err := h.storage.GetChangeset(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrChangesetNotFound) {
			sendError(h.logger, w, "changeset not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get changeset", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, changesetToAPI(cs), http.StatusOK)
}

// Close обрабатывает PUT /api/v1/changesets/{id}/close
// Закрыть changeset может только его владелец
func (h *ChangesetHandler) Close(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := parseChangesetID(h.logger, w, r)
	if !ok {
		return
	}

	cs, err := h.storage.GetChangeset(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrChangesetNotFound) {
			sendError(h.logger, w, "changeset not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get changeset", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}
	if cs.UserID != userID {
		sendError(h.logger, w, "changeset belongs to another user", http.StatusForbidden)
		return
	}

	if err := h.storage.CloseChangeset(ctx, id, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, storage.ErrChangesetClosed):
			sendError(h.logger, w, "changeset already closed", http.StatusConflict)
		case errors.Is(err, storage.ErrChangesetNotFound):
			sendError(h.logger, w, "changeset not found", http.StatusNotFound)
		default:
			h.logger.ErrorContext(ctx, "failed to close changeset", slog.Any("error", err))
			sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.logger.InfoContext(ctx, "changeset closed", slog.Int64("changeset_id", id))

	w.WriteHeader(http.StatusNoContent)
}

// parseChangesetID читает {id} из пути
func parseChangesetID(logger *slog.Logger, w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		sendError(logger, w, "invalid changeset id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
