package http

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/perchrh/ackhttp/packages/logger"
	"github.com/rs/zerolog"
)

// Callback receives the outcome of an asynchronous request.
type Callback func(Outcome)

type Client struct {
	transport       Transport
	logger          zerolog.Logger
	timeout         time.Duration
	defaultHeaders  map[string]string
	requestIDHeader string
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		logger:         *logger.Get(),
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewNetTransport()
	}
	if c.timeout > 0 {
		c.transport = &timeoutTransport{next: c.transport, timeout: c.timeout}
	}

	return c
}

// WithTransport sets the transport used for every request (default NetTransport).
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithLogger sets the logger for failure diagnostics (default logger.Get()).
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTimeout bounds each request with a deadline (default 0: none).
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithRequestIDHeader sends each request's ID under the given header name
// (default "": not sent).
func WithRequestIDHeader(name string) ClientOption {
	return func(c *Client) {
		c.requestIDHeader = name
	}
}

// RequestAsync issues the request without blocking and calls cb exactly once
// when it completes. cb runs on a goroutine owned by the transport, or on the
// caller's goroutine when the request cannot be built. A nil ctx is treated
// as context.Background().
func (c *Client) RequestAsync(ctx context.Context, target *url.URL, method Method, opts RequestOptions, cb Callback) {
	var once sync.Once
	deliver := func(o Outcome) {
		delivered := false
		once.Do(func() {
			delivered = true
			c.logOutcome(o)
			cb(o)
		})
		if !delivered {
			c.logger.Debug().Str("request_id", o.RequestID).Msg("dropping duplicate completion")
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if target == nil {
		deliver(invalidRequest(method, "", "nil URL"))
		return
	}
	if !method.Valid() {
		deliver(invalidRequest(method, target.String(), "unsupported method "+strconv.Quote(string(method))))
		return
	}

	req := newRequest(method, target, c.defaultHeaders, opts)
	if c.requestIDHeader != "" {
		req.headers[canonicalHeaderKey(c.requestIDHeader)] = req.id
	}

	start := time.Now()
	c.transport.RoundTrip(ctx, req, func(res TransportResult) {
		deliver(buildOutcome(req, res, time.Since(start)))
	})
}

// RequestSync issues the request and blocks until it completes. It waits as
// long as the transport takes; use WithTimeout to bound it.
func (c *Client) RequestSync(ctx context.Context, target *url.URL, method Method, opts RequestOptions) Outcome {
	// Capacity one lets a transport that completes before we reach the
	// receive hand off without blocking.
	done := make(chan Outcome, 1)
	c.RequestAsync(ctx, target, method, opts, func(o Outcome) {
		done <- o
	})
	return <-done
}

func (c *Client) GetAsync(ctx context.Context, target *url.URL, opts RequestOptions, cb Callback) {
	c.RequestAsync(ctx, target, MethodGet, opts, cb)
}

func (c *Client) PostAsync(ctx context.Context, target *url.URL, opts RequestOptions, cb Callback) {
	c.RequestAsync(ctx, target, MethodPost, opts, cb)
}

func (c *Client) PutAsync(ctx context.Context, target *url.URL, opts RequestOptions, cb Callback) {
	c.RequestAsync(ctx, target, MethodPut, opts, cb)
}

func (c *Client) GetSync(ctx context.Context, target *url.URL, opts RequestOptions) Outcome {
	return c.RequestSync(ctx, target, MethodGet, opts)
}

func (c *Client) PostSync(ctx context.Context, target *url.URL, opts RequestOptions) Outcome {
	return c.RequestSync(ctx, target, MethodPost, opts)
}

func (c *Client) PutSync(ctx context.Context, target *url.URL, opts RequestOptions) Outcome {
	return c.RequestSync(ctx, target, MethodPut, opts)
}

// PostFormAsync posts fields as a form-encoded body.
func (c *Client) PostFormAsync(ctx context.Context, target *url.URL, fields map[string]string, headers map[string]string, cb Callback) {
	c.RequestAsync(ctx, target, MethodPost, formOptions(fields, headers), cb)
}

// PostFormSync posts fields as a form-encoded body and waits for the outcome.
func (c *Client) PostFormSync(ctx context.Context, target *url.URL, fields map[string]string, headers map[string]string) Outcome {
	return c.RequestSync(ctx, target, MethodPost, formOptions(fields, headers))
}

func formOptions(fields, headers map[string]string) RequestOptions {
	return RequestOptions{
		Body:        BuildFormBody(fields),
		Headers:     headers,
		ContentType: ContentTypeForm,
	}
}

func buildOutcome(req *Request, res TransportResult, d time.Duration) Outcome {
	o := Outcome{
		Success:    ClassifySuccess(res.StatusCode),
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Body:       res.Body,
		RequestID:  req.id,
		Method:     req.method,
		URL:        req.url.String(),
		Duration:   d,
	}
	if res.Err != nil {
		o.Success = false
		o.Err = &Error{
			Kind:       KindTransport,
			Op:         string(req.method),
			URL:        o.URL,
			StatusCode: res.StatusCode,
			Err:        res.Err,
		}
	}
	return o
}

func invalidRequest(method Method, rawURL, reason string) Outcome {
	return Outcome{
		Method: method,
		URL:    rawURL,
		Err: &Error{
			Kind: KindInvalidRequest,
			Op:   string(method),
			URL:  rawURL,
			Err:  errors.New(reason),
		},
	}
}

func (c *Client) logOutcome(o Outcome) {
	if o.Success {
		return
	}

	status := "unknown"
	if o.StatusCode != 0 {
		status = strconv.Itoa(o.StatusCode)
	}

	event := c.logger.Warn().
		Str("request_id", o.RequestID).
		Str("method", string(o.Method)).
		Str("url", o.URL).
		Str("status", status).
		Str("kind", o.Kind().String())
	if o.Err != nil {
		event = event.Err(o.Err.Err)
	}
	if len(o.Body) > 0 && utf8.Valid(o.Body) {
		event = event.Str("body", string(o.Body))
	}
	event.Msg("http request failed")
}
