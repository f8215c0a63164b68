package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vidfriends/videosync/internal/changefeed"
	"github.com/vidfriends/videosync/internal/logging"
	"github.com/vidfriends/videosync/internal/models"
)

const (
	changeBuffer       = 64
	changeWriteTimeout = 5 * time.Second
)

// ChangeHandler streams a workspace's change events over a websocket.
type ChangeHandler struct {
	Source changefeed.Subscriber
}

// Stream handles GET /api/v1/workspaces/{ownerID}/videos/changes.
func (h ChangeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := strings.TrimSpace(chi.URLParam(r, "ownerID"))
	if ownerID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "owner id is required"})
		return
	}
	if h.Source == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: "change feed unavailable"})
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logging.FromContext(ctx).Warn("accept change feed websocket", "owner", ownerID, "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients never send; CloseRead handles control frames and cancels on close.
	ctx = conn.CloseRead(ctx)

	events := make(chan models.ChangeEvent, changeBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	sub, err := h.Source.Subscribe(ctx, ownerID, func(ev models.ChangeEvent) {
		select {
		case events <- ev:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	if err != nil {
		logging.FromContext(ctx).Error("subscribe change feed", "owner", ownerID, "error", err)
		conn.Close(websocket.StatusInternalError, "subscription failed")
		return
	}
	defer sub.Close()

	logger := logging.FromContext(ctx).With("owner", ownerID)
	logger.Info("change feed opened")

	for {
		select {
		case <-ctx.Done():
			logger.Info("change feed closed by client")
			return
		case <-sub.Done():
			conn.Close(websocket.StatusGoingAway, "feed ended")
			return
		case <-overflow:
			logger.Warn("change feed client too slow")
			conn.Close(websocket.StatusPolicyViolation, "client too slow")
			return
		case ev := <-events:
			if err := writeEvent(ctx, conn, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Warn("write change event", "error", err)
				}
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev models.ChangeEvent) error {
	ctx, cancel := context.WithTimeout(ctx, changeWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
