// Package remote talks to the videosync HTTP API on behalf of a dashboard
// synchronizer.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidfriends/videosync/internal/models"
	"github.com/vidfriends/videosync/internal/optimistic"
)

// HTTPError is a non-success API response.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// ListResponse is the body of the collection endpoint.
type ListResponse struct {
	Videos []models.Record `json:"videos"`
}

// PatchRequest is the body of the mutation endpoint.
type PatchRequest struct {
	Fields models.Fields `json:"fields"`
}

// VideoResponse wraps a single video.
type VideoResponse struct {
	Video models.Record `json:"video"`
}

// ErrorResponse is the API error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Client fetches collections and writes mutations over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewClient targets the API rooted at baseURL.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

// WithRetryPolicy overrides retry attempts and backoff bounds.
func (c *Client) WithRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *Client {
	c.maxRetries = maxRetries
	c.baseDelay = baseDelay
	c.maxDelay = maxDelay
	return c
}

// FetchAll returns ownerID's videos, newest first.
func (c *Client) FetchAll(ctx context.Context, ownerID string) ([]models.Record, error) {
	var resp ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/workspaces/"+url.PathEscape(ownerID)+"/videos", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Videos == nil {
		resp.Videos = []models.Record{}
	}
	return resp.Videos, nil
}

// WriteMutation sends updates for key. Rejections are returned as
// *optimistic.WriteError carrying the failure category.
func (c *Client) WriteMutation(ctx context.Context, key string, updates models.Fields) error {
	err := c.doJSON(ctx, http.MethodPatch, "/api/v1/videos/"+url.PathEscape(key), PatchRequest{Fields: updates}, nil)
	if err == nil {
		return nil
	}
	return &optimistic.WriteError{Reason: reasonFor(err), Message: messageFor(err), Err: err}
}

func reasonFor(err error) optimistic.Reason {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return optimistic.ReasonUnknown
	}
	switch optimistic.Reason(httpErr.Code) {
	case optimistic.ReasonPermissionDenied, optimistic.ReasonConstraintViolation:
		return optimistic.Reason(httpErr.Code)
	}
	switch httpErr.StatusCode {
	case http.StatusForbidden:
		return optimistic.ReasonPermissionDenied
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return optimistic.ReasonConstraintViolation
	default:
		return optimistic.ReasonUnknown
	}
}

func messageFor(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return err.Error()
}

func (c *Client) doJSON(ctx context.Context, method, requestPath string, body any, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("X-Request-Id", uuid.NewString())
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload ErrorResponse
		_ = json.Unmarshal(payload, &errPayload)
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Code:       errPayload.Code,
			Message:    errPayload.Error,
		}
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, maxDelay)
	}
	delay := c.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return min(delay, maxDelay)
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
