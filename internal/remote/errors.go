package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies a failed call to a remote service.
type Kind int

const (
	// KindUnknown is anything not otherwise classified. It is not retried.
	KindUnknown Kind = iota
	// KindTransient is a network-level failure: timeout, reset, refused, DNS.
	// It is the only kind that is retried.
	KindTransient
	// KindAuth is a rejected or missing credential (401/403).
	KindAuth
	// KindRateLimit is a quota or rate-limit rejection (429).
	KindRateLimit
	// KindBadRequest is a malformed or unacceptable request (other 4xx).
	KindBadRequest
	// KindServer is a server-side failure (5xx).
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindBadRequest:
		return "bad_request"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a classified remote-service failure.
type Error struct {
	Kind       Kind
	StatusCode int // 0 for connection-level failures
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// IsTransient reports whether err is a transient connectivity failure.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

// Classify wraps an error returned by http.Client.Do (or while reading the
// response body) in an *Error. Context cancellation is passed through
// untouched so callers still see context.Canceled.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := KindUnknown
	if isNetworkFailure(err) {
		kind = KindTransient
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

func isNetworkFailure(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// FromResponse builds an *Error for a non-2xx HTTP response.
func FromResponse(statusCode int, body []byte) *Error {
	kind := KindUnknown
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		kind = KindAuth
	case statusCode == http.StatusTooManyRequests:
		kind = KindRateLimit
	case statusCode >= 500:
		kind = KindServer
	case statusCode >= 400:
		kind = KindBadRequest
	}
	return &Error{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    responseMessage(body),
	}
}

// responseMessage pulls error.message out of an OpenAI-style error body,
// falling back to the (truncated) raw body.
func responseMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return truncate(strings.TrimSpace(string(body)), 200)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
