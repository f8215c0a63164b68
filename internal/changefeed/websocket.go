package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vidfriends/videosync/internal/models"
)

const maxEventBytes = 1 << 20

// WebSocketSubscriber opens change feeds served by the videosync API over a
// websocket, one connection per subscription.
type WebSocketSubscriber struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebSocketSubscriber targets the API rooted at baseURL (http or https).
func NewWebSocketSubscriber(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *WebSocketSubscriber {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketSubscriber{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		logger:     logger,
	}
}

// FeedURL returns the websocket endpoint for ownerID.
func (s *WebSocketSubscriber) FeedURL(ownerID string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/workspaces/" + url.PathEscape(ownerID) + "/videos/changes"
	return u.String(), nil
}

// Subscribe dials the owner's feed and delivers events to handler from a
// dedicated reader goroutine until the subscription is closed or lost.
func (s *WebSocketSubscriber) Subscribe(ctx context.Context, ownerID string, handler Handler) (Subscription, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	feedURL, err := s.FeedURL(ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubscriptionFailed, err)
	}

	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, _, err := websocket.Dial(ctx, feedURL, &websocket.DialOptions{
		HTTPClient: s.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrSubscriptionFailed, feedURL, err)
	}
	conn.SetReadLimit(maxEventBytes)

	readCtx, cancel := context.WithCancel(context.Background())
	sub := &wsSubscription{
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.read(readCtx, ownerID, handler, s.logger)
	return sub, nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *wsSubscription) read(ctx context.Context, ownerID string, handler Handler, logger *slog.Logger) {
	defer close(s.done)
	for {
		var ev models.ChangeEvent
		if err := wsjson.Read(ctx, s.conn, &ev); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return
			}
			logger.Warn("change feed read failed", "ownerId", ownerID, "error", err)
			return
		}
		if ev.OwnerID != "" && ev.OwnerID != ownerID {
			logger.Warn("dropping change event for foreign owner", "ownerId", ownerID, "eventOwnerId", ev.OwnerID)
			continue
		}
		if handler != nil {
			handler(ev)
		}
	}
}

// Close stops the reader and closes the connection. Cancelling the read
// already tears the connection down, so the close handshake result is not
// reported.
func (s *wsSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		_ = s.conn.Close(websocket.StatusNormalClosure, "unsubscribe")
	})
	return nil
}

func (s *wsSubscription) Done() <-chan struct{} {
	return s.done
}
