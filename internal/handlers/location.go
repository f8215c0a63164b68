package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vidfriends/videosync/internal/models"
)

// LocationHandler resolves a video's storage location to a readable URL.
type LocationHandler struct {
	Videos VideoStore
	Signer LocationSigner
}

type locationResponse struct {
	Location string `json:"location"`
	Signed   bool   `json:"signed"`
}

// Get handles GET /api/v1/videos/{key}/location. Absolute URLs are returned
// as stored; bare object keys are presigned.
func (h LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, err := h.Videos.FindByKey(ctx, chi.URLParam(r, "key"))
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}

	raw, _ := record.Fields.Get(models.FieldStorageLocation)
	location, _ := raw.(string)
	location = strings.TrimSpace(location)
	if location == "" {
		respondJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "video has no storage location"})
		return
	}

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") || h.Signer == nil {
		respondJSON(ctx, w, http.StatusOK, locationResponse{Location: location})
		return
	}

	signed, err := h.Signer.Presign(ctx, location)
	if err != nil {
		respondJSON(ctx, w, http.StatusBadGateway, errorResponse{Error: "could not sign storage location"})
		return
	}
	respondJSON(ctx, w, http.StatusOK, locationResponse{Location: signed, Signed: true})
}
