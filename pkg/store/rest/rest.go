// Package rest implements the document store client over the dev server's
// HTTP API. Mutations are plain JSON requests; subscriptions ride a
// server-sent-events stream.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

// User mirrors the server's account representation.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client talks to a sync server. It implements store.Client.
type Client struct {
	baseURL string
	api     *http.Client
	// watch streams stay open indefinitely, so they get a client
	// without a request timeout.
	stream *http.Client
	log    *slog.Logger

	mu    sync.Mutex
	token string
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		api:     &http.Client{Timeout: 10 * time.Second},
		stream:  &http.Client{},
		log:     logger.Get(),
	}
}

// SetToken sets the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Register creates an account on the server.
func (c *Client) Register(ctx context.Context, email, password string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.postJSON(ctx, "/v1/auth/register", map[string]string{
		"email": email, "password": password,
	}, &out)
	return out.User, err
}

// Login authenticates and remembers the returned token for later requests.
func (c *Client) Login(ctx context.Context, email, password string) (string, User, error) {
	var out struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	err := c.postJSON(ctx, "/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, &out)
	if err != nil {
		return "", User{}, err
	}
	c.SetToken(out.Token)
	return out.Token, out.User, nil
}

// Create adds a document to the collection at path.
func (c *Client) Create(ctx context.Context, path string, fields map[string]any) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", apperrors.New(apperrors.KindInvalidInput, "encode document fields", err)
	}

	u := c.baseURL + "/v1/documents?path=" + url.QueryEscape(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Unavailable("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Delete removes a document by id.
func (c *Client) Delete(ctx context.Context, path string, id string) error {
	u := fmt.Sprintf("%s/v1/documents?path=%s&id=%s",
		c.baseURL, url.QueryEscape(path), url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return apperrors.Unavailable("build request", err)
	}
	return c.do(req, nil)
}

// Subscribe opens the watch stream for path. Snapshots and stream faults
// arrive on the returned subscription's channels until Close.
func (c *Client) Subscribe(ctx context.Context, path string, filter store.Filter) (store.Subscription, error) {
	q := url.Values{}
	q.Set("path", path)
	if !filter.IsZero() {
		value, err := json.Marshal(filter.Value)
		if err != nil {
			return nil, apperrors.New(apperrors.KindInvalidInput, "encode filter value", err)
		}
		q.Set("filter_field", filter.Field)
		q.Set("filter_value", string(value))
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet,
		c.baseURL+"/v1/watch?"+q.Encode(), nil)
	if err != nil {
		cancel()
		return nil, apperrors.Unavailable("build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, apperrors.Unavailable("open watch stream", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		defer cancel()
		return nil, decodeError(resp)
	}

	sub := &subscription{
		cancel: cancel,
		body:   resp.Body,
		snaps:  make(chan store.Snapshot, 16),
		errs:   make(chan error, 4),
		done:   make(chan struct{}),
	}
	go sub.read(c.log, path)
	return sub, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.New(apperrors.KindInvalidInput, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.Unavailable("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if token := c.bearer(); token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return apperrors.Unavailable("server unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Unavailable("decode response", err)
	}
	return nil
}

// decodeError maps an error response body back onto the shared taxonomy.
func decodeError(resp *http.Response) error {
	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
		return apperrors.Unavailable(fmt.Sprintf("server returned status %d", resp.StatusCode), nil)
	}
	kind := apperrors.ParseKind(body.Error.Kind)
	if kind == apperrors.KindUnknown {
		kind = apperrors.KindUnavailable
	}
	return apperrors.New(kind, body.Error.Message, nil)
}
