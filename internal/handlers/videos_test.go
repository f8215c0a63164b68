package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vidfriends/videosync/internal/changefeed"
	"github.com/vidfriends/videosync/internal/models"
	"github.com/vidfriends/videosync/internal/repositories"
)

type videoStoreStub struct {
	mu        sync.Mutex
	records   map[string]models.Record
	owners    map[string]string
	order     []string
	mutateErr error
	nextID    int
}

func newVideoStoreStub() *videoStoreStub {
	return &videoStoreStub{records: map[string]models.Record{}, owners: map[string]string{}}
}

func (s *videoStoreStub) seed(owner, key, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = models.Record{Key: key, Fields: models.Fields{{Name: models.FieldTitle, Value: title}}}
	s.owners[key] = owner
	s.order = append(s.order, key)
}

func (s *videoStoreStub) ListByOwner(_ context.Context, ownerID string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Record
	for _, key := range s.order {
		if s.owners[key] == ownerID {
			out = append(out, s.records[key].Clone())
		}
	}
	return out, nil
}

func (s *videoStoreStub) FindByKey(_ context.Context, key string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return models.Record{}, repositories.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *videoStoreStub) OwnerOf(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[key]
	if !ok {
		return "", repositories.ErrNotFound
	}
	return owner, nil
}

func (s *videoStoreStub) Create(_ context.Context, ownerID string, fields models.Fields) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	key := fmt.Sprintf("v%d", s.nextID)
	rec := models.Record{Key: key, Fields: fields.Clone()}
	s.records[key] = rec
	s.owners[key] = ownerID
	s.order = append([]string{key}, s.order...)
	return rec.Clone(), nil
}

func (s *videoStoreStub) ApplyMutation(_ context.Context, key string, updates models.Fields) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return models.Record{}, s.mutateErr
	}
	rec, ok := s.records[key]
	if !ok {
		return models.Record{}, repositories.ErrNotFound
	}
	rec.Fields = rec.Fields.With(updates)
	s.records[key] = rec
	return rec.Clone(), nil
}

func (s *videoStoreStub) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.records, key)
	delete(s.owners, key)
	return nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *publisherStub) Publish(ev models.ChangeEvent) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return 1
}

func newTestRouter(store VideoStore, events ChangePublisher, changes changefeed.Subscriber) http.Handler {
	return NewRouter(Dependencies{Videos: store, Events: events, Changes: changes}, nil)
}

func TestVideoHandlerListWithETag(t *testing.T) {
	store := newVideoStoreStub()
	store.seed("owner-1", "a", "Intro")
	store.seed("owner-2", "b", "Other")
	router := newTestRouter(store, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/owner-1/videos", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Videos) != 1 || resp.Videos[0].Key != "a" {
		t.Fatalf("unexpected videos %+v", resp.Videos)
	}

	etag := rec.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("expected weak etag, got %q", etag)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/owner-1/videos", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("expected status 304 got %d", rec.Code)
	}
}

func TestVideoHandlerListEmptyCollection(t *testing.T) {
	router := newTestRouter(newVideoStoreStub(), nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/nobody/videos", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"videos":[]`) {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestVideoHandlerCreatePublishesInsert(t *testing.T) {
	store := newVideoStoreStub()
	events := &publisherStub{}
	router := newTestRouter(store, events, nil)

	body := bytes.NewBufferString(`{"fields":{"title":"Launch","status":"Idee"}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/owner-1/videos", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(events.events) != 1 || events.events[0].Kind != models.EventInserted || events.events[0].OwnerID != "owner-1" {
		t.Fatalf("unexpected events %+v", events.events)
	}
}

func TestVideoHandlerCreateRequiresTitle(t *testing.T) {
	router := newTestRouter(newVideoStoreStub(), nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/owner-1/videos", bytes.NewBufferString(`{"fields":{"status":"Idee"}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/owner-1/videos", bytes.NewBufferString(`{`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad json got %d", rec.Code)
	}
}

func TestVideoHandlerGet(t *testing.T) {
	store := newVideoStoreStub()
	store.seed("owner-1", "a", "Intro")
	router := newTestRouter(store, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/a", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestVideoHandlerUpdateAppliesPartialFields(t *testing.T) {
	store := newVideoStoreStub()
	store.seed("owner-1", "a", "Intro")
	events := &publisherStub{}
	router := newTestRouter(store, events, nil)

	body := bytes.NewBufferString(`{"fields":{"status":"Schnitt"}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/videos/a", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp videoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, _ := resp.Video.Fields.Get(models.FieldTitle); v != "Intro" {
		t.Fatalf("expected untouched title, got %v", v)
	}
	if v, _ := resp.Video.Fields.Get(models.FieldStatus); v != "Schnitt" {
		t.Fatalf("expected updated status, got %v", v)
	}
	if len(events.events) != 1 || events.events[0].Kind != models.EventUpdated || events.events[0].OwnerID != "owner-1" {
		t.Fatalf("unexpected events %+v", events.events)
	}
}

func TestVideoHandlerUpdateErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "permission", err: repositories.ErrPermissionDenied, status: http.StatusForbidden, code: "permission-denied"},
		{name: "constraint", err: repositories.ErrConstraintViolation, status: http.StatusConflict, code: "constraint-violation"},
		{name: "invalid field", err: fmt.Errorf("%w: duration must be an integer", repositories.ErrInvalidField), status: http.StatusUnprocessableEntity, code: "constraint-violation"},
		{name: "not found", err: repositories.ErrNotFound, status: http.StatusNotFound},
		{name: "internal", err: context.DeadlineExceeded, status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newVideoStoreStub()
			store.seed("owner-1", "a", "Intro")
			store.mutateErr = tc.err
			router := newTestRouter(store, nil, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/videos/a", bytes.NewBufferString(`{"fields":{"status":"x"}}`)))
			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d", tc.status, rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tc.code {
				t.Fatalf("expected code %q got %q", tc.code, resp.Code)
			}
		})
	}
}

func TestVideoHandlerUpdateRequiresFields(t *testing.T) {
	store := newVideoStoreStub()
	store.seed("owner-1", "a", "Intro")
	router := newTestRouter(store, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/videos/a", bytes.NewBufferString(`{"fields":{}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestVideoHandlerDeletePublishesKey(t *testing.T) {
	store := newVideoStoreStub()
	store.seed("owner-1", "a", "Intro")
	events := &publisherStub{}
	router := newTestRouter(store, events, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/videos/a", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if len(events.events) != 1 || events.events[0].Kind != models.EventDeleted || events.events[0].Key != "a" {
		t.Fatalf("unexpected events %+v", events.events)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/videos/a", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestChangeHandlerStreamsOwnerEvents(t *testing.T) {
	hub := changefeed.NewHub()
	server := httptest.NewServer(newTestRouter(newVideoStoreStub(), nil, hub))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/workspaces/owner-1/videos/changes"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("owner-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(models.ChangeEvent{Kind: models.EventDeleted, OwnerID: "owner-2", Key: "other"})
	hub.Publish(models.ChangeEvent{Kind: models.EventDeleted, OwnerID: "owner-1", Key: "a"})

	var ev models.ChangeEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Kind != models.EventDeleted || ev.Key != "a" {
		t.Fatalf("unexpected event %+v", ev)
	}

	conn.Close(websocket.StatusNormalClosure, "")
	deadline = time.Now().Add(2 * time.Second)
	for hub.Subscribers("owner-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after client close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChangeHandlerUnavailableWithoutSource(t *testing.T) {
	router := newTestRouter(newVideoStoreStub(), nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/owner-1/videos/changes", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 got %d", rec.Code)
	}
}
