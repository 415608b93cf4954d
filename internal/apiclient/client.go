// Package apiclient is the HTTP client for the reelshare collection API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelshare/internal/config"
	"reelshare/internal/models"
	"reelshare/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Client talks to the collection API.
type Client struct {
	BaseURL string
	// RealtimeURL is dialed for websocket subscriptions. Empty means BaseURL.
	RealtimeURL string
	HTTP        *http.Client
}

// New creates a client for baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// NewFromConfig creates a client from API_BASE_URL and CLIENT_TIMEOUT_SECONDS.
func NewFromConfig(cfg *config.Config) *Client {
	return New(cfg.APIBaseURL, cfg.ClientTimeout())
}

// FollowEdge is both users after a transactional follow change.
type FollowEdge struct {
	Actor   models.User `json:"actor"`
	Target  models.User `json:"target"`
	Changed bool        `json:"changed"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// List fetches the documents in collection that match f.
func List[T any](ctx context.Context, c *Client, collection models.Collection, f Filter) ([]T, error) {
	var out []T
	if err := c.do(ctx, http.MethodGet, collection, "", f.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Get fetches one document.
func Get[T any](ctx context.Context, c *Client, collection models.Collection, id string) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, collection, "/"+url.PathEscape(id), "", nil, &out)
	return out, err
}

// Create stores doc and returns the record as the server saved it,
// including its assigned id.
func Create[T any](ctx context.Context, c *Client, collection models.Collection, doc any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, collection, "", "", doc, &out)
	return out, err
}

// Patch shallow-merges fields into a document and returns the result.
func Patch[T any](ctx context.Context, c *Client, collection models.Collection, id string, fields any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPatch, collection, "/"+url.PathEscape(id), "", fields, &out)
	return out, err
}

// Increment atomically adds delta to a counter field. The server clamps at zero.
func Increment[T any](ctx context.Context, c *Client, collection models.Collection, id, field string, delta int) (T, error) {
	var out T
	body := map[string]any{"field": field, "delta": delta}
	err := c.do(ctx, http.MethodPost, collection, "/"+url.PathEscape(id)+"/increment", "", body, &out)
	return out, err
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, collection models.Collection, id string) error {
	return c.do(ctx, http.MethodDelete, collection, "/"+url.PathEscape(id), "", nil, nil)
}

// SetFollow adds or removes the actor -> target edge on both users in one
// server-side transaction.
func (c *Client) SetFollow(ctx context.Context, actorID, targetID string, follow bool) (*FollowEdge, error) {
	method := http.MethodDelete
	if follow {
		method = http.MethodPut
	}
	var edge FollowEdge
	path := "/" + url.PathEscape(actorID) + "/following/" + url.PathEscape(targetID)
	if err := c.do(ctx, method, models.CollectionUsers, path, "", nil, &edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

func (c *Client) do(ctx context.Context, method string, collection models.Collection, path, query string, body, result any) (err error) {
	var bodyReader io.Reader
	if body != nil {
		data, merr := json.Marshal(body)
		if merr != nil {
			return fmt.Errorf("marshal request: %w", merr)
		}
		bodyReader = bytes.NewReader(data)
	}

	target := c.BaseURL + "/api/" + collection.String() + path
	if query != "" {
		target += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if uid, ok := ctx.Value(observability.UserIDKey).(string); ok && uid != "" {
		req.Header.Set(models.UserIDHeader, uid)
	}

	ctx, span := observability.StartClientSpan(ctx, req, collection.String())
	start := time.Now()
	status := 0
	defer func() {
		span.SetAttributes(attribute.Int("http.status_code", status))
		observability.EndSpan(span, err)
		attrs := []any{
			slog.String("method", method),
			slog.String("path", req.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
		}
		if err != nil {
			observability.Logger.WarnContext(ctx, "API request failed", append(attrs, slog.String("error", err.Error()))...)
		} else {
			observability.Logger.DebugContext(ctx, "API request", attrs...)
		}
	}()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			se.Code, se.Message = eb.Code, eb.Error
		}
		if se.Message == "" {
			se.Message = strings.TrimSpace(string(respBody))
		}
		return se
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
