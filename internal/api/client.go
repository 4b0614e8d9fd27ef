package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Authenticator supplies the bearer credential and the refresh operation
// the client falls back to on an authorization failure.
type Authenticator interface {
	// AccessToken returns the current access token, or "" when absent.
	AccessToken(ctx context.Context) string
	// Refresh trades the stored refresh token for a new pair and
	// reports whether a fresh pair is now available.
	Refresh(ctx context.Context) bool
}

// Client wraps outbound calls to the NetWorth backend: it attaches the
// bearer header, performs exactly one transparent refresh-and-retry on
// 401, and normalizes error bodies into a single message shape.
type Client struct {
	baseURL string
	httpc   *http.Client
	auth    Authenticator
}

// NewClient builds a client for the given backend base URL. auth may be
// nil for a purely unauthenticated client; httpc defaults to a 30s-timeout
// client when nil.
func NewClient(baseURL string, auth Authenticator, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
		auth:    auth,
	}
}

// Options shapes a single request.
type Options struct {
	Method string // defaults to GET
	// Body is JSON-encoded unless it is already raw bytes.
	Body   any
	Header http.Header
	// Unauthenticated skips the bearer header and the refresh path.
	Unauthenticated bool
	// SkipRefreshOnFailure treats a 401 as final instead of attempting
	// a refresh. Retried calls carry this implicitly.
	SkipRefreshOnFailure bool
}

// attempt tracks where a call sits in the retry cycle. A retried call
// carries retriedAfterRefresh and structurally cannot refresh again,
// which bounds every original request to at most one retry.
type attempt int

const (
	firstAttempt attempt = iota
	retriedAfterRefresh
)

// Do issues the request and returns the raw JSON body of a 2xx response.
// An empty 2xx body yields an empty object.
func (c *Client) Do(ctx context.Context, endpoint string, opts Options) (json.RawMessage, error) {
	at := firstAttempt
	if opts.SkipRefreshOnFailure {
		at = retriedAfterRefresh
	}
	return c.do(ctx, endpoint, opts, at)
}

func (c *Client) do(ctx context.Context, endpoint string, opts Options, at attempt) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	payload, err := encodeBody(opts.Body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	var reader io.Reader
	if len(payload) > 0 {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if !opts.Unauthenticated && c.auth != nil {
		if tok := c.auth.AccessToken(ctx); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, endpoint, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read response from %s: %w", endpoint, readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized && !opts.Unauthenticated && at == firstAttempt && c.auth != nil {
		if c.auth.Refresh(ctx) {
			return c.do(ctx, endpoint, opts, retriedAfterRefresh)
		}
		// refresh yielded nothing: fall through to normal error
		// handling on the original 401 response
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewError(resp.StatusCode, body)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(body) {
		return nil, &ParseError{Endpoint: endpoint, Err: errors.New("body is not valid JSON")}
	}
	return json.RawMessage(body), nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

// Get issues an authenticated GET.
func (c *Client) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.Do(ctx, endpoint, Options{Method: http.MethodGet})
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.Do(ctx, endpoint, Options{Method: http.MethodPost, Body: body})
}

// Put issues an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.Do(ctx, endpoint, Options{Method: http.MethodPut, Body: body})
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.Do(ctx, endpoint, Options{Method: http.MethodDelete})
}

// Head checks for a resource without retrieving its content.
func (c *Client) Head(ctx context.Context, endpoint string) error {
	_, err := c.Do(ctx, endpoint, Options{Method: http.MethodHead})
	return err
}
