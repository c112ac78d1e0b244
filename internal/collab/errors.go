package collab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured marks a collaborator whose credentials were not supplied.
var ErrNotConfigured = errors.New("not configured")

// Kind classifies a collaborator failure so callers can choose between
// retrying, degrading and surfacing the error.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindTimeout     Kind = "timeout"
	KindCanceled    Kind = "canceled"
	KindRejected    Kind = "rejected"
	KindFailed      Kind = "failed"
)

// Error is a failure at a collaborator boundary.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err. Errors that did not come from a
// collaborator are KindFailed.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var timeout interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &timeout) && timeout.Timeout():
		return KindTimeout
	}
	return KindFailed
}

// Classify wraps err as an *Error for op. Existing *Error values and nil
// pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// KindForStatus maps an HTTP response status from a remote API to a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 400 && status < 500:
		return KindRejected
	default:
		return KindFailed
	}
}

// IsUnavailable reports whether err means the collaborator cannot be used at all.
func IsUnavailable(err error) bool {
	k := KindOf(err)
	return k == KindUnavailable || k == KindAuth
}
