// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates the request failed domain validation. Handlers map
// it to a 400 response with the wrapped message.
var ErrValidation = errors.New("validation")

// ErrAlreadyDecided indicates a decision was attempted on an approval request
// that has already reached a terminal state. Decisions are never overwritten.
var ErrAlreadyDecided = errors.New("approval request already decided")
