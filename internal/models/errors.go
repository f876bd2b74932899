// Package models defines shared error values for LeadPipe.
package models

import "errors"

// Error taxonomy. The API layer maps these to HTTP status codes; internal
// components wrap them with fmt.Errorf("...: %w", err) for context.
var (
	// ErrNotFound indicates an unknown session, PRD, template, or expert id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument indicates a malformed or missing request field.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIncompleteData indicates a PRD was requested before the minimum
	// qualification facts exist.
	ErrIncompleteData = errors.New("incomplete qualification data")
	// ErrConflict indicates a turn was submitted to a non-active session.
	ErrConflict = errors.New("session is not active")
	// ErrUpstreamFailure indicates a drafting service timeout or error.
	// Always recoverable by retry; no partial state is committed.
	ErrUpstreamFailure = errors.New("drafting service failure")
)

// Validation error variables for better error handling and testability
var (
	ErrEmptyVisitorID       = errors.New("visitor_id cannot be empty")
	ErrEmptyMessage         = errors.New("message content cannot be empty")
	ErrMessageTooLong       = errors.New("message content exceeds maximum length")
	ErrFeedbackTooLong      = errors.New("feedback exceeds maximum length")
	ErrEmptyTemplateContent = errors.New("template content cannot be empty")
	ErrTemplateTooLong      = errors.New("template content exceeds maximum length")
)
