package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vidfriends/videosync/internal/logging"
	"github.com/vidfriends/videosync/internal/models"
)

const maxBodyBytes = 1 << 20

// VideoHandler serves a workspace's video collection.
type VideoHandler struct {
	Videos VideoStore
	Events ChangePublisher
}

type listResponse struct {
	Videos []models.Record `json:"videos"`
}

type videoResponse struct {
	Video models.Record `json:"video"`
}

type fieldsRequest struct {
	Fields models.Fields `json:"fields"`
}

// List handles GET /api/v1/workspaces/{ownerID}/videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := strings.TrimSpace(chi.URLParam(r, "ownerID"))
	if ownerID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "owner id is required"})
		return
	}

	records, err := h.Videos.ListByOwner(ctx, ownerID)
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}
	if records == nil {
		records = []models.Record{}
	}

	etag := `W/"` + models.CollectionDigest(records) + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	respondJSON(ctx, w, http.StatusOK, listResponse{Videos: records})
}

// Create handles POST /api/v1/workspaces/{ownerID}/videos.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := strings.TrimSpace(chi.URLParam(r, "ownerID"))
	if ownerID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "owner id is required"})
		return
	}

	req, ok := decodeFields(w, r)
	if !ok {
		return
	}
	title, _ := req.Fields.Get(models.FieldTitle)
	if s, _ := title.(string); strings.TrimSpace(s) == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "title is required"})
		return
	}

	record, err := h.Videos.Create(ctx, ownerID, req.Fields)
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}

	h.publish(r, models.ChangeEvent{Kind: models.EventInserted, OwnerID: ownerID, Key: record.Key, Record: &record})
	respondJSON(ctx, w, http.StatusCreated, videoResponse{Video: record})
}

// Get handles GET /api/v1/videos/{key}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, err := h.Videos.FindByKey(ctx, chi.URLParam(r, "key"))
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, videoResponse{Video: record})
}

// Update handles PATCH /api/v1/videos/{key}. Only the supplied fields change.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	req, ok := decodeFields(w, r)
	if !ok {
		return
	}
	if len(req.Fields) == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "at least one field is required"})
		return
	}

	record, err := h.Videos.ApplyMutation(ctx, key, req.Fields)
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}

	if h.Events != nil {
		ownerID, err := h.Videos.OwnerOf(ctx, key)
		if err == nil {
			h.publish(r, models.ChangeEvent{Kind: models.EventUpdated, OwnerID: ownerID, Key: key, Record: &record})
		} else {
			logging.FromContext(ctx).Warn("resolve video owner for change event", "key", key, "error", err)
		}
	}
	respondJSON(ctx, w, http.StatusOK, videoResponse{Video: record})
}

// Delete handles DELETE /api/v1/videos/{key}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	var ownerID string
	if h.Events != nil {
		owner, err := h.Videos.OwnerOf(ctx, key)
		if err != nil {
			respondStoreError(ctx, w, err)
			return
		}
		ownerID = owner
	}

	if err := h.Videos.Delete(ctx, key); err != nil {
		respondStoreError(ctx, w, err)
		return
	}

	h.publish(r, models.ChangeEvent{Kind: models.EventDeleted, OwnerID: ownerID, Key: key})
	w.WriteHeader(http.StatusNoContent)
}

func (h VideoHandler) publish(r *http.Request, ev models.ChangeEvent) {
	if h.Events == nil || ev.OwnerID == "" {
		return
	}
	delivered := h.Events.Publish(ev)
	logging.FromContext(r.Context()).Debug("published change event", "kind", ev.Kind, "key", ev.RecordKey(), "deliveries", delivered)
}

func decodeFields(w http.ResponseWriter, r *http.Request) (fieldsRequest, bool) {
	var req fieldsRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		msg := "invalid JSON payload"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		respondJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: msg})
		return req, false
	}
	return req, true
}
