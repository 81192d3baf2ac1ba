package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"calendar-sync/core/errors"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

type Kind string

const (
	KindAuthExpired      Kind = "auth_expired"
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound         Kind = "not_found"
	KindRateLimited      Kind = "rate_limited"
	KindUnavailable      Kind = "unavailable"
	KindValidation       Kind = "validation"
	KindNotConnected     Kind = "not_connected"
	KindUnknown          Kind = "unknown"
)

// Error is a provider failure classified into the sync error taxonomy.
// Err keeps the raw provider error for audit entries.
type Error struct {
	Kind   Kind
	Status int
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("calendar provider %s (%d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("calendar provider %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the sanitized text shown to end users.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindAuthExpired:
		return "Calendar connection expired, please reconnect"
	case KindPermissionDenied:
		return "Calendar permission denied, reconnect required"
	case KindNotFound:
		return "Calendar event not found"
	case KindRateLimited:
		return "Too many requests to the calendar provider, try again later"
	case KindUnavailable:
		return "Calendar provider temporarily unavailable, try again later"
	case KindNotConnected:
		return "No calendar connection, reconnect required"
	default:
		return "Calendar sync failed"
	}
}

func (e *Error) AppCode() errors.ErrorCode {
	switch e.Kind {
	case KindAuthExpired:
		return errors.ErrCalendarAuthExpired
	case KindPermissionDenied:
		return errors.ErrForbidden
	case KindNotFound:
		return errors.ErrNotFound
	case KindRateLimited:
		return errors.ErrCalendarRateLimited
	case KindUnavailable:
		return errors.ErrCalendarUnavailable
	case KindNotConnected:
		return errors.ErrCalendarNotConnected
	default:
		return errors.ErrInternalServer
	}
}

// AppError converts e into the HTTP-facing application error.
func (e *Error) AppError() *errors.AppError {
	return errors.NewAppError(e.AppCode(), e.UserMessage(), e)
}

// Classify maps a raw error from the Google API or OAuth layer onto a Kind.
// It returns nil for a nil error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if stderrors.As(err, &classified) {
		return classified
	}

	var gErr *googleapi.Error
	if stderrors.As(err, &gErr) {
		return classifyStatus(gErr.Code, firstReason(gErr), err)
	}

	var rErr *oauth2.RetrieveError
	if stderrors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		switch {
		case rErr.ErrorCode == "invalid_grant", status == http.StatusBadRequest, status == http.StatusUnauthorized:
			return &Error{Kind: KindAuthExpired, Status: status, Reason: rErr.ErrorCode, Err: err}
		case status >= http.StatusInternalServerError:
			return &Error{Kind: KindUnavailable, Status: status, Reason: rErr.ErrorCode, Err: err}
		default:
			return &Error{Kind: KindUnknown, Status: status, Reason: rErr.ErrorCode, Err: err}
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUnavailable, Err: err}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindUnavailable, Err: err}
	}

	return &Error{Kind: KindUnknown, Err: err}
}

func classifyStatus(status int, reason string, err error) *Error {
	kind := KindUnknown
	switch {
	case status == http.StatusUnauthorized:
		kind = KindAuthExpired
	case status == http.StatusForbidden:
		if reason == "rateLimitExceeded" || reason == "userRateLimitExceeded" {
			kind = KindRateLimited
		} else {
			kind = KindPermissionDenied
		}
	case status == http.StatusNotFound, status == http.StatusGone:
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status >= http.StatusInternalServerError:
		kind = KindUnavailable
	}
	return &Error{Kind: kind, Status: status, Reason: reason, Err: err}
}

func firstReason(e *googleapi.Error) string {
	for _, item := range e.Errors {
		if item.Reason != "" {
			return item.Reason
		}
	}
	return ""
}

func IsNotFound(err error) bool {
	c := Classify(err)
	return c != nil && c.Kind == KindNotFound
}

// NotConnected is returned when a user has no usable credential.
func NotConnected() *Error {
	return &Error{Kind: KindNotConnected, Err: stderrors.New("no active calendar credential")}
}
