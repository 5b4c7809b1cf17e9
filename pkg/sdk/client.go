// Package sdk provides the client-side library for the crystal-core CRUD
// API. A Client pins a server and requester identity; a Resource pins one
// collection and exposes the five operations.
package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/karimivahid/crystal-core/pkg/crud"
)

// APIError is a structured failure returned by the server.
type APIError struct {
	StatusCode int
	Message    string          `json:"message"`
	Errors     []APIErrorEntry `json:"errors"`
}

// APIErrorEntry is one coded sub-error.
type APIErrorEntry struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Client talks to one crystal-core server as one requester.
type Client struct {
	baseURL   string
	requester crud.Requester
	http      *http.Client
}

// Connect builds a client for the given base URL. Self-signed certificates
// are accepted; the daemon's TLS is transport encryption for internal
// traffic, not identity.
func Connect(baseURL string, requester crud.Requester) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		requester: requester,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}, nil
}

// Resource returns a scoped client that "remembers" its collection.
func (c *Client) Resource(name string) *Resource {
	return &Resource{client: c, name: name}
}

// do sends one request with up to 3 attempts on transport failures. HTTP
// error statuses are final; only failures to reach the server are retried.
func (c *Client) do(method, path string, query url.Values, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			zap.S().Debugw("retrying request", "attempt", attempt+1, "target", target, "error", lastErr)
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequest(method, target, reader)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("x-cid", c.requester.CID)
		req.Header.Set("x-uid", c.requester.UID)
		req.Header.Set("x-username", c.requester.Username)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		return decodeResponse(resp, out)
	}
	return fmt.Errorf("failed after 3 attempts. last error: %w", lastErr)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return json.Unmarshal(envelope.Result, out)
}

// Resource is a scoped client for one collection.
type Resource struct {
	client *Client
	name   string
}

// ListResult is the outcome of List.
type ListResult struct {
	Docs  []map[string]any `json:"docs"`
	Total int              `json:"total"`
}

// List fetches records matching the given query-string parameters
// (filters plus page, limit, fields).
func (r *Resource) List(params url.Values) (ListResult, error) {
	var out ListResult
	err := r.client.do(http.MethodGet, "/api/"+r.name, params, nil, &out)
	return out, err
}

// Get fetches one record by id.
func (r *Resource) Get(id string) (map[string]any, error) {
	var out map[string]any
	err := r.client.do(http.MethodGet, "/api/"+r.name+"/one", url.Values{"id": {id}}, nil, &out)
	return out, err
}

// Create inserts a record and returns its server-assigned id.
func (r *Resource) Create(data map[string]any) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := r.client.do(http.MethodPost, "/api/"+r.name, nil, data, &out)
	return out.ID, err
}

// Update merges data over the record with the given id.
func (r *Resource) Update(id string, data map[string]any) error {
	return r.client.do(http.MethodPut, "/api/"+r.name, url.Values{"id": {id}}, data, nil)
}

// Delete removes the record with the given id.
func (r *Resource) Delete(id string) error {
	return r.client.do(http.MethodDelete, "/api/"+r.name, url.Values{"id": {id}}, nil, nil)
}
