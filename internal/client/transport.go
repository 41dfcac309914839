package client

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
)

// maxErrorBody bounds how much of an error response is buffered.
const maxErrorBody = 64 << 10

// Notifier is told about every failed response.
type Notifier func(err *APIError)

// LogNotifier logs failed responses through slog.
func LogNotifier(err *APIError) {
	slog.Warn("request failed", "status", err.Status, "message", err.Message)
}

// Transport attaches the cached token to outgoing requests and reacts to
// failed responses: any 401 or 403 clears the session, and every non-2xx
// response is reported to Notify. The response body stays readable.
type Transport struct {
	Base    http.RoundTripper
	Session *SessionCache
	Notify  Notifier
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if token := t.Session.Token(); token != "" && req.Header.Get("Authorization") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if err := t.Session.Clear(); err != nil {
			slog.Error("failed to clear session", "error", err)
		}
	}

	if t.Notify != nil {
		t.Notify(parseAPIError(resp.StatusCode, body))
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
