// Package davclient provides an HTTP client for ownCloud-compatible WebDAV
// servers with redirect tracking, transport-level retry, and error
// classification.
package davclient

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, davclient.ErrNotFound) to check.
var (
	ErrBadRequest          = errors.New("davclient: bad request")
	ErrUnauthorized        = errors.New("davclient: unauthorized")
	ErrForbidden           = errors.New("davclient: forbidden")
	ErrNotFound            = errors.New("davclient: not found")
	ErrMethodNotAllowed    = errors.New("davclient: method not allowed")
	ErrConflict            = errors.New("davclient: conflict")
	ErrPreconditionFailed  = errors.New("davclient: precondition failed")
	ErrUnsupportedMedia    = errors.New("davclient: unsupported media type")
	ErrLocked              = errors.New("davclient: resource locked")
	ErrTooEarly            = errors.New("davclient: too early")
	ErrThrottled           = errors.New("davclient: throttled")
	ErrServerError         = errors.New("davclient: server error")
	ErrServiceUnavailable  = errors.New("davclient: service unavailable")
	ErrInsufficientStorage = errors.New("davclient: insufficient storage")
	ErrUnexpectedStatus    = errors.New("davclient: unexpected status")
)

// maxErrorBody caps how much of an error response body is kept for messages.
const maxErrorBody = 64 * 1024

// StatusError wraps a sentinel error with the HTTP status code, request ID,
// and the server's error message for debugging.
type StatusError struct {
	StatusCode int
	RequestID  string
	Exception  string // Sabre exception class, when the body carries one
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *StatusError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("davclient: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("davclient: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// sabreError is the error document ownCloud (SabreDAV) returns in bodies.
type sabreError struct {
	XMLName   xml.Name `xml:"DAV: error"`
	Exception string   `xml:"http://sabredav.org/ns exception"`
	Message   string   `xml:"http://sabredav.org/ns message"`
}

// NewStatusError reads (and closes) the body of a failed response and
// returns a StatusError describing it.
func NewStatusError(resp *http.Response) *StatusError {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	se := &StatusError{
		StatusCode: resp.StatusCode,
		RequestID:  requestID(resp.Header),
		Err:        classifyStatus(resp.StatusCode),
	}

	if readErr != nil {
		se.Message = "(failed to read response body)"
		return se
	}

	var doc sabreError
	if xml.Unmarshal(body, &doc) == nil && doc.Message != "" {
		se.Exception = doc.Exception
		se.Message = doc.Message

		return se
	}

	se.Message = strings.TrimSpace(string(body))
	if se.Message == "" {
		se.Message = http.StatusText(resp.StatusCode)
	}

	return se
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusMethodNotAllowed:
		return ErrMethodNotAllowed
	case http.StatusConflict:
		return ErrConflict
	case http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	case http.StatusUnsupportedMediaType:
		return ErrUnsupportedMedia
	case http.StatusLocked:
		return ErrLocked
	case http.StatusTooEarly:
		return ErrTooEarly
	case http.StatusTooManyRequests:
		return ErrThrottled
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	case http.StatusInsufficientStorage:
		return ErrInsufficientStorage
	default:
		if code >= http.StatusOK && code < http.StatusMultipleChoices {
			return nil
		}

		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrUnexpectedStatus
	}
}

// isRetryable reports whether the given HTTP status code should be retried
// by the transport. Only transient server-side conditions qualify.
func isRetryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// requestID returns the server-assigned request id, falling back to the one
// we sent. ownCloud echoes X-Request-Id.
func requestID(h http.Header) string {
	if id := h.Get("X-Request-Id"); id != "" {
		return id
	}

	return h.Get("Oc-Request-Id")
}
