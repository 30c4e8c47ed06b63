package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
	"github.com/iudanet/mapkeeper/pkg/api"
)

// ElementHandler отдает ревизии элементов
type ElementHandler struct {
	logger  *slog.Logger
	storage storage.ElementStorage
}

// NewElementHandler создает новый handler для чтения элементов
func NewElementHandler(logger *slog.Logger, s storage.ElementStorage) *ElementHandler {
	return &ElementHandler{
		logger:  logger,
		storage: s,
	}
}

// Latest обрабатывает GET /api/v1/elements/{type}/{id}?at=RFC3339
// Удаленный элемент отдается со статусом 410
func (h *ElementHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ref, ok := h.elementRef(w, r)
	if !ok {
		return
	}
	at, ok := h.pointInTime(w, r)
	if !ok {
		return
	}

	var elements []*models.Element
	err := h.storage.ReadSnapshot(ctx, func(tx storage.ElementReader) error {
		var err error
		elements, err = tx.LatestByRefs(ctx, []models.ElementRef{ref}, at)
		return err
	})
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	if len(elements) == 0 {
		sendError(h.logger, w, "element not found", http.StatusNotFound)
		return
	}
	e := elements[0]
	if !e.Visible {
		sendJSON(h.logger, w, elementToAPI(e), http.StatusGone)
		return
	}

	sendJSON(h.logger, w, elementToAPI(e), http.StatusOK)
}

// Version обрабатывает GET /api/v1/elements/{type}/{id}/{version}
func (h *ElementHandler) Version(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ref, ok := h.elementRef(w, r)
	if !ok {
		return
	}
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version <= 0 {
		sendError(h.logger, w, "invalid version", http.StatusBadRequest)
		return
	}

	var elements []*models.Element
	err = h.storage.ReadSnapshot(ctx, func(tx storage.ElementReader) error {
		var err error
		elements, err = tx.ByVersionedRefs(ctx, []models.VersionedElementRef{{ElementRef: ref, Version: version}})
		return err
	})
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	if len(elements) == 0 {
		sendError(h.logger, w, "element version not found", http.StatusNotFound)
		return
	}

	sendJSON(h.logger, w, elementToAPI(elements[0]), http.StatusOK)
}

// History обрабатывает GET /api/v1/elements/{type}/{id}/history
func (h *ElementHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ref, ok := h.elementRef(w, r)
	if !ok {
		return
	}

	var elements []*models.Element
	err := h.storage.ReadSnapshot(ctx, func(tx storage.ElementReader) error {
		var err error
		elements, err = tx.History(ctx, ref)
		return err
	})
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	if len(elements) == 0 {
		sendError(h.logger, w, "element not found", http.StatusNotFound)
		return
	}

	sendJSON(h.logger, w, api.ElementsResponse{Elements: elementsToAPI(elements)}, http.StatusOK)
}

// Parents обрабатывает GET /api/v1/elements/{type}/{id}/parents?type=way&at=RFC3339
// Возвращает ways и relations, которые ссылаются на элемент
func (h *ElementHandler) Parents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ref, ok := h.elementRef(w, r)
	if !ok {
		return
	}
	at, ok := h.pointInTime(w, r)
	if !ok {
		return
	}

	var parentType models.ElementType
	if s := r.URL.Query().Get("type"); s != "" {
		t, err := models.ParseElementType(s)
		if err != nil || t == models.ElementTypeNode {
			sendError(h.logger, w, "parent type must be way or relation", http.StatusBadRequest)
			return
		}
		parentType = t
	}

	var elements []*models.Element
	err := h.storage.ReadSnapshot(ctx, func(tx storage.ElementReader) error {
		var err error
		elements, err = tx.Parents(ctx, []models.ElementRef{ref}, parentType, at)
		return err
	})
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	sendJSON(h.logger, w, api.ElementsResponse{Elements: elementsToAPI(elements)}, http.StatusOK)
}

func (h *ElementHandler) elementRef(w http.ResponseWriter, r *http.Request) (models.ElementRef, bool) {
	t, err := models.ParseElementType(chi.URLParam(r, "type"))
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return models.ElementRef{}, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		sendError(h.logger, w, "invalid element id", http.StatusBadRequest)
		return models.ElementRef{}, false
	}
	return models.ElementRef{Type: t, ID: id}, true
}

// pointInTime читает ?at= один раз на запрос; пустое значение - текущее состояние
func (h *ElementHandler) pointInTime(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	s := r.URL.Query().Get("at")
	if s == "" {
		return time.Time{}, true
	}
	at, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		sendError(h.logger, w, "at must be an RFC 3339 time", http.StatusBadRequest)
		return time.Time{}, false
	}
	return at, true
}

func (h *ElementHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, r.Context().Err()) {
		return
	}
	h.logger.ErrorContext(r.Context(), "failed to read elements", slog.Any("error", err))
	sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
}
