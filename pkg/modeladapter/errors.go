package modeladapter

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrInvalidConfig marks adapter failures caused by deployment settings
// that are only checked when a request is about to be sent.
var ErrInvalidConfig = errors.New("invalid backend configuration")

// RateLimitError is returned when the API responds with HTTP 429 (Too Many Requests).
// It carries an optional RetryAfter duration parsed from the Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("rate limited: %s", e.Body)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status indicates a server-side or timeout
// condition that may succeed on retry.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout || e.StatusCode >= 500
}

// ParseRetryAfter parses the Retry-After header value as either seconds (integer)
// or an HTTP-date (RFC 7231). Returns zero if unparseable or if the date is in the past.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
		return 0
	}
	return 0
}

// IsTransient reports whether err is worth retrying: rate limiting, 408/5xx
// responses, attempt timeouts and transport failures. Cancellation is never
// transient, and neither are request errors that would fail the same way
// again (unsupported scheme, certificate verification).
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}

	var te *timeoutError
	if errors.As(err, &te) {
		return true
	}

	// *url.Error satisfies net.Error itself, so classify by its cause.
	var ue *url.Error
	if errors.As(err, &ue) {
		return isTransientTransport(ue.Err)
	}

	return isTransientTransport(err)
}

func isTransientTransport(err error) bool {
	if err == nil {
		return false
	}

	var cve *tls.CertificateVerificationError
	var uae x509.UnknownAuthorityError
	var hne x509.HostnameError
	var cie x509.CertificateInvalidError
	if errors.As(err, &cve) || errors.As(err, &uae) || errors.As(err, &hne) || errors.As(err, &cie) {
		return false
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne)
}
