// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/bissquit/coursehub/internal/client"
)

// NewClient returns an API client with an in-memory session whose traffic
// is checked against the OpenAPI document when v is not nil.
func NewClient(t *testing.T, baseURL string, v *OpenAPIValidator) *client.Client {
	t.Helper()

	session, err := client.NewSessionCache("")
	if err != nil {
		t.Fatalf("create session cache: %v", err)
	}

	opts := []client.Option{client.WithNotifier(nil)}
	if v != nil {
		opts = append(opts, client.WithTransport(&ValidatingTransport{Validator: v, T: t}))
	}
	return client.New(baseURL, session, opts...)
}

// Do sends a raw JSON request. Use it for malformed or unauthenticated
// calls the typed client cannot express.
func Do(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

// DecodeJSON decodes response body into v.
func DecodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// ReadBody reads and returns response body as string.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}
