package model

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a resource does not exist
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized is returned when the API token is missing or rejected
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidPayload is returned when a payload does not match the requested view
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrCanceled is returned when the operation is canceled by the caller
	ErrCanceled = errors.New("operation canceled")
)

// WrapError converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// It also matches transport errors that only carry the context error text.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
