package changefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vidfriends/videosync/internal/models"
)

func TestWebSocketSubscriber_FeedURL(t *testing.T) {
	sub := NewWebSocketSubscriber("https://api.example.com/base/", "", nil, nil)
	got, err := sub.FeedURL("owner 1")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/base/api/v1/workspaces/owner%201/videos/changes", got)

	_, err = NewWebSocketSubscriber("ftp://example.com", "", nil, nil).FeedURL("o")
	assert.Error(t, err)
}

func TestWebSocketSubscriber_DeliversOwnerEvents(t *testing.T) {
	gotAuth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "")

		ctx := r.Context()
		_ = wsjson.Write(ctx, conn, models.ChangeEvent{Kind: models.EventInserted, OwnerID: "owner-1", Record: &models.Record{Key: "a"}})
		_ = wsjson.Write(ctx, conn, models.ChangeEvent{Kind: models.EventInserted, OwnerID: "owner-2", Record: &models.Record{Key: "x"}})
		_ = wsjson.Write(ctx, conn, models.ChangeEvent{Kind: models.EventDeleted, OwnerID: "owner-1", Key: "a"})

		// Hold the connection until the client goes away.
		_, _, _ = conn.Read(ctx)
	}))
	defer srv.Close()

	events := make(chan models.ChangeEvent, 4)
	subscriber := NewWebSocketSubscriber(srv.URL, "secret", srv.Client(), nil)
	sub, err := subscriber.Subscribe(context.Background(), "owner-1", func(ev models.ChangeEvent) { events <- ev })
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", <-gotAuth)

	var got []string
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, string(ev.Kind)+":"+ev.RecordKey())
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}
	assert.Equal(t, []string{"inserted:a", "deleted:a"}, got)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	select {
	case <-sub.Done():
	default:
		t.Fatal("expected done after close")
	}
}

func TestWebSocketSubscriber_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewWebSocketSubscriber(srv.URL, "", srv.Client(), nil).Subscribe(context.Background(), "owner-1", nil)
	assert.ErrorIs(t, err, ErrSubscriptionFailed)
}

func TestWebSocketSubscriber_ServerCloseSignalsDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.Close(websocket.StatusGoingAway, "shutting down")
	}))
	defer srv.Close()

	sub, err := NewWebSocketSubscriber(srv.URL, "", srv.Client(), nil).Subscribe(context.Background(), "owner-1", nil)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected feed loss to close done")
	}
}
