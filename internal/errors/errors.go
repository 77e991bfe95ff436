// Package errors defines domain-level errors used throughout the application.
// These errors represent business logic failures and are mapped to appropriate HTTP status codes at the API boundary.
//
// NOTE: Important for developers
// When adding a new error here, you MUST consider how it should be handled when returned from API endpoints.
//
// Unmapped errors will default to HTTP 500 Internal Server Error.
//
// Don't forget to:
// 1. Add your error to mapError (internal/server/server.go)
// 2. Add a test case to TestMapError (internal/server/server_test.go)
package errors

import (
	"errors"
)

var (
	// ErrBadRequest indicates that the client provided invalid input or made a malformed request.
	// This typically results from validation failures or incorrect request parameters.
	// Recommended to map to HTTP 400 Bad Request.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates that the caller presented missing or invalid credentials,
	// for example a wrong admin bearer token or a webhook signature that failed verification.
	// Recommended to map to HTTP 401 Unauthorized.
	ErrUnauthorized = errors.New("invalid credentials")

	// ErrProviderNotFound indicates that the requested provider does not exist in the registry.
	// This occurs when proxying to, or removing, a provider that hasn't been registered.
	// Recommended to map to HTTP 404 Not Found.
	ErrProviderNotFound = errors.New("unknown provider")

	// ErrAdminDisabled indicates that no admin token is configured, so every admin
	// call is rejected (fail-closed). Deliberately distinct from ErrUnauthorized so
	// callers can tell "admin API off" apart from "wrong token".
	// Recommended to map to HTTP 503 Service Unavailable.
	ErrAdminDisabled = errors.New("admin API disabled: no admin token configured")

	// ErrNotConfigured indicates that a required credential or setting is missing and the
	// component refuses to operate rather than attempting and failing each call.
	// Recommended to map to HTTP 503 Service Unavailable.
	ErrNotConfigured = errors.New("not configured")

	// ErrBridgeNotRunning indicates that the stdio bridge child process is not in the
	// Running state, either because it was never started or because it exited.
	// Dependent calls must fail fast instead of blocking.
	// Recommended to map to HTTP 503 Service Unavailable.
	ErrBridgeNotRunning = errors.New("bridge not running")

	// ErrUpstreamUnreachable indicates a transport-level failure reaching a downstream
	// service (connection refused, timeout, DNS failure). A non-2xx HTTP response from
	// the downstream is NOT this error; only transport failures qualify.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrUpstreamUnreachable = errors.New("upstream request failed")

	// ErrToolCallFailed indicates that the child process answered a tool invocation
	// with a JSON-RPC error object.
	// Recommended to map to HTTP 502 Bad Gateway.
	ErrToolCallFailed = errors.New("tool call failed")

	// ErrRequestTimedOut indicates that a multiplexed JSON-RPC request was not answered
	// within its deadline. The pending slot is released before this error is returned.
	// Recommended to map to HTTP 504 Gateway Timeout.
	ErrRequestTimedOut = errors.New("request timed out")
)
