package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/mapkeeper/internal/diff"
	"github.com/iudanet/mapkeeper/pkg/api"
)

// sendJSON отправляет JSON ответ
func sendJSON(logger *slog.Logger, w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func sendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	sendJSON(logger, w, resp, statusCode)
}

// sendDiffError отвечает на отклоненный diff, сохраняя вид ошибки
func sendDiffError(logger *slog.Logger, w http.ResponseWriter, err error) {
	statusCode := diffErrorStatus(err)
	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		message = "internal server error"
	}

	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	if kind := diff.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
	}
	sendJSON(logger, w, resp, statusCode)
}

// diffErrorStatus сопоставляет ошибку diff с HTTP статусом
func diffErrorStatus(err error) int {
	switch {
	case errors.Is(err, diff.ErrChangesetNotFound):
		return http.StatusNotFound
	case errors.Is(err, diff.ErrChangesetForbidden):
		return http.StatusForbidden
	case errors.Is(err, diff.ErrStillReferenced):
		return http.StatusPreconditionFailed
	}

	switch diff.KindOf(err) {
	case diff.KindConflict:
		return http.StatusConflict
	case diff.KindValidation, diff.KindIntegrity:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
