// Package client talks to a running shopd over HTTP.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dreamware/shopstore/internal/collection"
	"github.com/dreamware/shopstore/internal/session"
	"github.com/goccy/go-json"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// StatusError is returned for any response with a status of 300 or above
type StatusError struct {
	URL        string
	StatusCode int
	Message    string // "error" field of the response body, if any
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %s: %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %s: %d", e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a 404 StatusError
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Do sends body as JSON, if not nil, and decodes the response into out, if not nil
func Do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var msg struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Message: msg.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PostJSON posts body and decodes the response into out
func PostJSON(ctx context.Context, url string, body any, out any) error {
	return Do(ctx, http.MethodPost, url, body, out)
}

// GetJSON decodes the response of a GET into out
func GetJSON(ctx context.Context, url string, out any) error {
	return Do(ctx, http.MethodGet, url, nil, out)
}

// Client is a typed wrapper around the shopd API
type Client struct {
	base string
}

// New creates a client for the server at base, e.g. "http://localhost:8080"
func New(base string) *Client {
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{base: strings.TrimRight(base, "/")}
}

func (c *Client) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base + "/" + strings.Join(escaped, "/")
}

// Collections returns a summary of every collection
func (c *Client) Collections(ctx context.Context) ([]collection.Info, error) {
	var out []collection.Info
	err := GetJSON(ctx, c.url("collections"), &out)
	return out, err
}

// Count returns the number of documents in a collection
func (c *Client) Count(ctx context.Context, name string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := GetJSON(ctx, c.url("collections", name, "count"), &out)
	return out.Count, err
}

// Find returns the documents matching pred
func (c *Client) Find(ctx context.Context, name string, pred collection.Predicate) ([]collection.Document, error) {
	if pred == nil {
		pred = collection.Predicate{}
	}
	var out []collection.Document
	err := PostJSON(ctx, c.url("collections", name, "find"), pred, &out)
	return out, err
}

// Get returns one document, or nil if the server has none with the id
func (c *Client) Get(ctx context.Context, name, id string) (collection.Document, error) {
	var out collection.Document
	err := GetJSON(ctx, c.url("collections", name, id), &out)
	if IsNotFound(err) {
		return nil, nil
	}
	return out, err
}

// Create inserts a document and returns it as stored
func (c *Client) Create(ctx context.Context, name string, doc map[string]any) (collection.Document, error) {
	var out collection.Document
	err := PostJSON(ctx, c.url("collections", name), doc, &out)
	return out, err
}

// Sessions returns every stored session, expired ones included
func (c *Client) Sessions(ctx context.Context) (map[string]*session.Entry, error) {
	var out map[string]*session.Entry
	err := GetJSON(ctx, c.url("sessions"), &out)
	return out, err
}

// SweepSessions removes expired sessions and returns how many are left
func (c *Client) SweepSessions(ctx context.Context) (int, error) {
	var out struct {
		Active int `json:"active"`
	}
	err := PostJSON(ctx, c.url("sessions", "sweep"), nil, &out)
	return out.Active, err
}
