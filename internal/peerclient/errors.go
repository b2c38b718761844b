package peerclient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a transport-level error (connection refused, timeout, reset)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates the peer answered with a non-2xx status code
	ErrTypeHTTP
	// ErrTypeParse indicates the response body was not valid JSON
	ErrTypeParse
	// ErrTypeShape indicates valid JSON that lacks a required field or node
	ErrTypeShape
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorHostUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeShape:
		return "Shape Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// PeerError is returned by every fetch of the Client.
type PeerError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	URL            string              // Requested URL
	StatusCode     int                 // HTTP status code (if applicable)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
}

// Error implements the error interface
func (e *PeerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *PeerError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error and returns a PeerError
func ClassifyNetworkError(err error, rawURL string) *PeerError {
	if err == nil {
		return nil
	}

	// url.Error wraps everything http.Client returns
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &PeerError{
				Type:           ErrTypeNetwork,
				Message:        "Request timed out",
				URL:            rawURL,
				Err:            err,
				NetworkSubtype: NetworkErrorTimeout,
			}
		}
	}

	if os.IsTimeout(err) {
		return &PeerError{
			Type:           ErrTypeNetwork,
			Message:        "Request timed out",
			URL:            rawURL,
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return &PeerError{
				Type:           ErrTypeNetwork,
				Message:        "Peer refused connection",
				URL:            rawURL,
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
			}
		}
		if errors.Is(opErr.Err, syscall.EHOSTUNREACH) || errors.Is(opErr.Err, syscall.ENETUNREACH) {
			return &PeerError{
				Type:           ErrTypeNetwork,
				Message:        "Peer unreachable",
				URL:            rawURL,
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
			}
		}
	}

	return &PeerError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		URL:            rawURL,
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
	}
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(rawURL string, statusCode int) *PeerError {
	return &PeerError{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("unexpected status code %d", statusCode),
		URL:        rawURL,
		StatusCode: statusCode,
	}
}

// NewParseError creates a parsing error
func NewParseError(rawURL, message string, err error) *PeerError {
	return &PeerError{
		Type:    ErrTypeParse,
		Message: message,
		URL:     rawURL,
		Err:     err,
	}
}

// NewShapeError creates an error for a document missing required content
func NewShapeError(rawURL, message string, err error) *PeerError {
	return &PeerError{
		Type:    ErrTypeShape,
		Message: message,
		URL:     rawURL,
		Err:     err,
	}
}

func errorType(err error) (ErrorType, bool) {
	var peerErr *PeerError
	if errors.As(err, &peerErr) {
		return peerErr.Type, true
	}
	return 0, false
}

// IsNetworkError checks if an error is a transport-level error
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeNetwork
}

// IsHTTPError checks if an error is an HTTP status error
func IsHTTPError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeHTTP
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeParse
}

// IsShapeError checks if an error is a shape error
func IsShapeError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeShape
}

// IsTransportError reports whether the request itself failed, either on the
// wire or with a non-2xx answer. The orchestrator drops its current peer on
// these.
func IsTransportError(err error) bool {
	return IsNetworkError(err) || IsHTTPError(err)
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var peerErr *PeerError
	if !errors.As(err, &peerErr) {
		return err.Error()
	}

	switch peerErr.Type {
	case ErrTypeNetwork:
		switch peerErr.NetworkSubtype {
		case NetworkErrorTimeout:
			return "Peer not responding (timeout)"
		case NetworkErrorConnectionRefused:
			return "Peer refused connection - is OSCQuery enabled?"
		case NetworkErrorHostUnreachable:
			return "Peer unreachable - check network connection"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		return fmt.Sprintf("Peer error (HTTP %d)", peerErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse peer response"
	case ErrTypeShape:
		return peerErr.Message
	default:
		return peerErr.Message
	}
}
