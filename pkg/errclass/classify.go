// Package errclass implements the error taxonomy from §7: classifying a
// pipeline failure as transient (retry), permanent (fail and notify), or
// unknown (treated as transient).
package errclass

import (
	"context"
	"errors"
	"net"

	"github.com/example/creditor-inbox/pkg/capability"
	"github.com/example/creditor-inbox/pkg/services"
)

// Class is the outcome of classifying a pipeline error.
type Class string

const (
	// Transient covers TransientExternal and PrimaryStoreOperational: retry
	// with backoff, counting against the per-message retry budget.
	Transient Class = "transient"

	// Permanent covers InputInvariant: no retry, mark failed, notify.
	Permanent Class = "permanent"

	// Unknown is retried as Transient per §7.
	Unknown Class = "unknown"
)

// Classify inspects err and returns its retry class.
func Classify(err error) Class {
	if err == nil {
		return Transient
	}

	var rateLimit *capability.RateLimitError
	if errors.As(err, &rateLimit) {
		return Transient
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}

	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return Permanent
	}
	if errors.Is(err, services.ErrInvalidInput) || errors.Is(err, services.ErrNotFound) {
		return Permanent
	}

	return Unknown
}

// Retryable reports whether class should be retried (§7: Transient and
// Unknown both retry; only Permanent stops).
func (c Class) Retryable() bool {
	return c != Permanent
}
