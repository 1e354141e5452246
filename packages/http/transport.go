package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
)

// TransportResult is what a transport reports for one request. StatusCode is
// 0 when no response arrived, in which case Err should be set.
type TransportResult struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Err        error
}

// Transport performs the network exchange for a Request. Implementations
// must call done exactly once, from any goroutine, possibly before RoundTrip
// returns.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request, done func(TransportResult))
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request, done func(TransportResult))

func (f TransportFunc) RoundTrip(ctx context.Context, req *Request, done func(TransportResult)) {
	f(ctx, req, done)
}

// Doer abstracts a blocking HTTP client. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NetTransport runs each request through a Doer on its own goroutine.
type NetTransport struct {
	doer           Doer
	followRedirect bool
	maxRedirects   int
}

type NetTransportOption func(*NetTransport)

// WithFollowRedirects controls whether 3xx responses are followed (default true).
func WithFollowRedirects(follow bool) NetTransportOption {
	return func(t *NetTransport) {
		t.followRedirect = follow
	}
}

// WithMaxRedirects caps the redirect chain (default 10).
func WithMaxRedirects(max int) NetTransportOption {
	return func(t *NetTransport) {
		t.maxRedirects = max
	}
}

// WithDoer replaces the *http.Client built by NewNetTransport. Redirect
// options are ignored when a Doer is supplied.
func WithDoer(d Doer) NetTransportOption {
	return func(t *NetTransport) {
		t.doer = d
	}
}

// NewNetTransport builds a transport backed by net/http. Connection reuse,
// TLS and DNS are left to http.DefaultTransport.
func NewNetTransport(opts ...NetTransportOption) *NetTransport {
	t := &NetTransport{
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.doer == nil {
		t.doer = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if !t.followRedirect {
					return http.ErrUseLastResponse
				}
				if len(via) >= t.maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	return t
}

func (t *NetTransport) RoundTrip(ctx context.Context, req *Request, done func(TransportResult)) {
	go func() {
		done(t.do(ctx, req))
	}()
}

func (t *NetTransport) do(ctx context.Context, req *Request) TransportResult {
	var body io.Reader
	if req.Body() != nil {
		body = bytes.NewReader(req.Body())
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method()), req.URL().String(), body)
	if err != nil {
		return TransportResult{Err: err}
	}
	for _, k := range sortedKeys(req.headers) {
		httpReq.Header.Set(k, req.headers[k])
	}

	httpResp, err := t.doer.Do(httpReq)
	if err != nil {
		return TransportResult{Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)

	headers := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	// A truncated body still carries the status; report both.
	return TransportResult{
		StatusCode: httpResp.StatusCode,
		Headers:    headers,
		Body:       respBody,
		Err:        err,
	}
}

// timeoutTransport bounds every request with a deadline.
type timeoutTransport struct {
	next    Transport
	timeout time.Duration
}

func (t *timeoutTransport) RoundTrip(ctx context.Context, req *Request, done func(TransportResult)) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	t.next.RoundTrip(ctx, req, func(res TransportResult) {
		cancel()
		done(res)
	})
}
