// Package client is a Go client for the coursehub API.
//
// It keeps the caller's session (token and profile) in a SessionCache that
// survives restarts, attaches the token to every request through Transport,
// and drops the session as soon as the server rejects it.
package client
