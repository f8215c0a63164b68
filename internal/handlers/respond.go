package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vidfriends/videosync/internal/logging"
	"github.com/vidfriends/videosync/internal/optimistic"
	"github.com/vidfriends/videosync/internal/repositories"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondStoreError maps repository failures onto API statuses and the
// failure categories clients use to explain reverted edits.
func respondStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "video not found"})
	case errors.Is(err, repositories.ErrPermissionDenied):
		respondJSON(ctx, w, http.StatusForbidden, errorResponse{
			Error: "row-level security denied the change",
			Code:  string(optimistic.ReasonPermissionDenied),
		})
	case errors.Is(err, repositories.ErrInvalidField):
		respondJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Error: err.Error(),
			Code:  string(optimistic.ReasonConstraintViolation),
		})
	case errors.Is(err, repositories.ErrConstraintViolation), errors.Is(err, repositories.ErrConflict):
		respondJSON(ctx, w, http.StatusConflict, errorResponse{
			Error: "the change violates a constraint, check dependent assignments such as the cutter",
			Code:  string(optimistic.ReasonConstraintViolation),
		})
	default:
		logging.FromContext(ctx).Error("video store failure", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
