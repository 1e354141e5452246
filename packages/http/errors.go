package http

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a request did not succeed.
type ErrorKind int

const (
	// KindNone means the request completed with a 2xx status.
	KindNone ErrorKind = iota
	// KindInvalidURL means path or query assembly produced an unusable URL.
	KindInvalidURL
	// KindTransport means the transport failed before a response arrived.
	KindTransport
	// KindNonSuccessStatus means a response arrived with a status outside 2xx.
	KindNonSuccessStatus
	// KindInvalidRequest means the request could not be built (nil URL, unsupported method).
	KindInvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidURL:
		return "invalid_url"
	case KindTransport:
		return "transport"
	case KindNonSuccessStatus:
		return "non_success_status"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrInvalidURL       = errors.New("invalid URL")
	ErrTransport        = errors.New("transport failure")
	ErrNonSuccessStatus = errors.New("non-success status")
	ErrInvalidRequest   = errors.New("invalid request")
)

// Error is the single error type produced by this package. Use errors.Is with
// the Err* sentinels to test the kind.
type Error struct {
	Kind       ErrorKind
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.URL != "" {
		msg += " " + e.URL
	}
	switch {
	case e.Kind == KindNonSuccessStatus:
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	default:
		msg += ": " + e.Kind.String()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel matching e.Kind.
func (e *Error) Is(target error) bool {
	return kindSentinel(e.Kind) == target && target != nil
}

func kindSentinel(k ErrorKind) error {
	switch k {
	case KindInvalidURL:
		return ErrInvalidURL
	case KindTransport:
		return ErrTransport
	case KindNonSuccessStatus:
		return ErrNonSuccessStatus
	case KindInvalidRequest:
		return ErrInvalidRequest
	default:
		return nil
	}
}

// KindOf returns the ErrorKind carried by err, or KindNone when err is not
// an *Error from this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
