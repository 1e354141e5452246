package http

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Outcome is the result delivered for every request, whether it succeeded,
// returned a non-2xx status, or never reached the server.
type Outcome struct {
	// Success is true iff a response arrived with a 2xx status.
	Success bool
	// StatusCode is 0 when no response arrived.
	StatusCode int
	Headers    map[string]string
	// Body may be present on failure, e.g. an error payload from the service.
	Body []byte
	// Err is set when the transport reported a failure or the request could
	// not be built. A non-2xx response alone leaves it nil.
	Err       *Error
	RequestID string
	Method    Method
	URL       string
	Duration  time.Duration
}

// ClassifySuccess reports whether statusCode is in the 2xx range.
func ClassifySuccess(statusCode int) bool {
	return statusCode/100 == 2
}

// Kind reports why the outcome failed, or KindNone when it succeeded.
func (o *Outcome) Kind() ErrorKind {
	if o.Err != nil {
		return o.Err.Kind
	}
	if !o.Success {
		return KindNonSuccessStatus
	}
	return KindNone
}

// Failure returns the failure as a single error value, or nil on success.
// For a non-2xx response this is a KindNonSuccessStatus *Error.
func (o *Outcome) Failure() error {
	if o.Err != nil {
		return o.Err
	}
	if !o.Success {
		return &Error{
			Kind:       KindNonSuccessStatus,
			Op:         string(o.Method),
			URL:        o.URL,
			StatusCode: o.StatusCode,
		}
	}
	return nil
}

func (o *Outcome) BodyString() string {
	return string(o.Body)
}

// JSON looks up a gjson path in the body. The result does not exist when the
// body is not JSON or the path does not match.
func (o *Outcome) JSON(path string) gjson.Result {
	if !gjson.ValidBytes(o.Body) {
		return gjson.Result{}
	}
	if path == "" {
		return gjson.ParseBytes(o.Body)
	}
	return gjson.GetBytes(o.Body, path)
}

func (o *Outcome) Header(key string) string {
	for k, v := range o.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (o *Outcome) ContentType() string {
	return o.Header("Content-Type")
}

func (o *Outcome) IsJSON() bool {
	return strings.Contains(o.ContentType(), "application/json")
}

func (o *Outcome) IsRedirect() bool {
	return o.StatusCode >= 300 && o.StatusCode < 400
}

func (o *Outcome) IsClientError() bool {
	return o.StatusCode >= 400 && o.StatusCode < 500
}

func (o *Outcome) IsServerError() bool {
	return o.StatusCode >= 500
}

func (o *Outcome) DurationMs() int64 {
	return o.Duration.Milliseconds()
}
