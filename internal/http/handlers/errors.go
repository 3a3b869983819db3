// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the stable machine-readable error codes used in error
// envelopes. Codes are part of the API contract; messages are not.
package handlers

const (
	// ErrCodeBadRequest flags malformed or invalid request payloads.
	ErrCodeBadRequest = "bad_request"
	// ErrCodeNotFound flags references to records that do not exist.
	ErrCodeNotFound = "not_found"
	// ErrCodeForbidden flags actions suppressed by moderation.
	ErrCodeForbidden = "forbidden"
	// ErrCodeTooBig flags sources over the configured size cap.
	ErrCodeTooBig = "file_too_big"
	// ErrCodeMethodNotAllowed flags unsupported methods on known routes.
	ErrCodeMethodNotAllowed = "method_not_allowed"
	// ErrCodeInternal flags unexpected server-side failures.
	ErrCodeInternal = "internal_error"
)
