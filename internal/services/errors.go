// Package services defines the business logic for conversions, matches, and
// social callbacks. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrMatchNotFound indicates that the referenced match does not exist.
	// Callbacks should only ever carry references rendered from real records,
	// so callers treat this as a likely integrity problem and log it.
	ErrMatchNotFound = errors.New("match not found")

	// ErrDuplicateMatch is returned when an insert loses the race against a
	// concurrent conversion of the same source. The caller must serve the
	// winning record instead of retrying the insert.
	ErrDuplicateMatch = errors.New("match already recorded for this source")

	// ErrMatchForbidden is returned when a social action targets a record
	// that moderation has already suppressed.
	ErrMatchForbidden = errors.New("match is forbidden")

	// ErrTransformFailed is returned when the audio transform produced no
	// output. The requester is notified and no record is written.
	ErrTransformFailed = errors.New("audio transform failed")

	// ErrSourceTooBig is returned when the source file exceeds the configured
	// size cap before any work is queued.
	ErrSourceTooBig = errors.New("source file too big")

	// ErrModerationDelivery is returned when the moderation channel could not
	// be reached. The report is dropped rather than retried.
	ErrModerationDelivery = errors.New("moderation delivery failed")

	// ErrInvalidCallback is returned when an inbound callback token cannot be
	// decoded or references the wrong subject kind for its action.
	ErrInvalidCallback = errors.New("invalid callback payload")
)
