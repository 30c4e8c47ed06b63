package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/mapkeeper/internal/diff"
	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/pkg/api"
)

// maxUploadBytes ограничивает размер тела diff
const maxUploadBytes = 32 << 20

// DiffRunner применяет diff к changeset
type DiffRunner interface {
	Run(ctx context.Context, changesetID int64, actor diff.Actor, drafts []diff.Draft) (*diff.Result, error)
	CreateElement(ctx context.Context, changesetID int64, actor diff.Actor, draft diff.Draft) (*models.Element, error)
}

// UploadHandler принимает diff и одиночные создания элементов
type UploadHandler struct {
	logger *slog.Logger
	runner DiffRunner
}

// NewUploadHandler создает новый handler для загрузки diff
func NewUploadHandler(logger *slog.Logger, runner DiffRunner) *UploadHandler {
	return &UploadHandler{
		logger: logger,
		runner: runner,
	}
}

// Upload обрабатывает POST /api/v1/changesets/{id}/upload
// Весь diff применяется атомарно или не применяется вовсе
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := actorFromContext(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "user ID not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	changesetID, ok := parseChangesetID(h.logger, w, r)
	if !ok {
		return
	}

	var req api.UploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode upload request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	drafts := make([]diff.Draft, len(req.Drafts))
	for i, d := range req.Drafts {
		draft, err := draftFromAPI(d)
		if err != nil {
			sendError(h.logger, w, err.Error(), http.StatusBadRequest)
			return
		}
		drafts[i] = draft
	}

	result, err := h.runner.Run(ctx, changesetID, actor, drafts)
	if err != nil {
		if diff.KindOf(err) == 0 {
			h.logger.ErrorContext(ctx, "failed to apply diff",
				slog.Int64("changeset_id", changesetID),
				slog.Any("error", err))
		}
		sendDiffError(h.logger, w, err)
		return
	}

	sendJSON(h.logger, w, uploadResponse(drafts, result), http.StatusOK)
}

// Create обрабатывает POST /api/v1/changesets/{id}/elements
// Создает один элемент, id в запросе игнорируется
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := actorFromContext(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	changesetID, ok := parseChangesetID(h.logger, w, r)
	if !ok {
		return
	}

	var req api.Draft
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}
	// Placeholder подставит runner
	req.ID = -1

	draft, err := draftFromAPI(req)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	element, err := h.runner.CreateElement(ctx, changesetID, actor, draft)
	if err != nil {
		if diff.KindOf(err) == 0 {
			h.logger.ErrorContext(ctx, "failed to create element", slog.Any("error", err))
		}
		sendDiffError(h.logger, w, err)
		return
	}

	sendJSON(h.logger, w, elementToAPI(element), http.StatusCreated)
}
