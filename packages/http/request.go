package http

import (
	"fmt"
	"net/textproto"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Method is one of the HTTP methods this client issues.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
	MethodPut  Method = "PUT"
)

// Valid reports whether m is GET, POST or PUT.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut:
		return true
	}
	return false
}

// ContentTypeForm is the media type of bodies produced by BuildFormBody.
const ContentTypeForm = "application/x-www-form-urlencoded"

// RequestOptions holds the optional parts of a request.
type RequestOptions struct {
	// Body is sent as the request body. Default nil: no body.
	Body []byte
	// Headers are applied after the client's default headers, so a name
	// present in both takes this value. Names match case-insensitively.
	// Default nil.
	Headers map[string]string
	// ContentType, when set, is sent as the Content-Type header and wins
	// over any Content-Type in Headers. Default "": not set.
	ContentType string
}

// Request describes a single HTTP exchange. It is built by the Client for
// each call and never modified afterwards.
type Request struct {
	id      string
	method  Method
	url     *url.URL
	body    []byte
	headers map[string]string
}

func newRequest(method Method, target *url.URL, defaults map[string]string, opts RequestOptions) *Request {
	headers := make(map[string]string, len(defaults)+len(opts.Headers)+1)
	for _, k := range sortedKeys(defaults) {
		headers[canonicalHeaderKey(k)] = defaults[k]
	}
	for _, k := range sortedKeys(opts.Headers) {
		headers[canonicalHeaderKey(k)] = opts.Headers[k]
	}
	if opts.ContentType != "" {
		headers["Content-Type"] = opts.ContentType
	}

	u := *target
	var body []byte
	if opts.Body != nil {
		body = append([]byte(nil), opts.Body...)
	}

	return &Request{
		id:      uuid.NewString(),
		method:  method,
		url:     &u,
		body:    body,
		headers: headers,
	}
}

// ID returns the request identifier used in logs.
func (r *Request) ID() string { return r.id }

func (r *Request) Method() Method { return r.method }

// URL returns a copy of the target URL.
func (r *Request) URL() *url.URL {
	u := *r.url
	return &u
}

// Body returns the request body, or nil when none was given.
func (r *Request) Body() []byte { return r.body }

// Headers returns a copy of the header map.
func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// Header returns the value of the named header, matched case-insensitively.
func (r *Request) Header(name string) string {
	return r.headers[canonicalHeaderKey(name)]
}

// canonicalHeaderKey folds header names so that "user-agent" and
// "User-Agent" share one entry.
func canonicalHeaderKey(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}

// BuildURL appends each path component to base, escaping every segment, and
// attaches queryParams as the query string. Every component except the last
// is treated as a directory. Empty components are skipped. Query parameters
// are merged over any query already present on base; nothing is attached
// when queryParams is empty.
func BuildURL(base string, pathComponents []string, queryParams map[string]string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, Op: "build url", URL: base, Err: err}
	}

	segments := make([]string, 0, len(pathComponents))
	for _, p := range pathComponents {
		if p != "" {
			segments = append(segments, p)
		}
	}

	if len(segments) > 0 {
		escaped := u.EscapedPath()
		last := len(segments) - 1
		for i, seg := range segments {
			if !strings.HasSuffix(escaped, "/") {
				escaped += "/"
			}
			escaped += url.PathEscape(seg)
			if i != last {
				escaped += "/"
			}
		}

		path, err := url.PathUnescape(escaped)
		if err != nil {
			return nil, &Error{Kind: KindInvalidURL, Op: "build url", URL: base, Err: err}
		}
		u.Path = path
		u.RawPath = escaped
	}

	if len(queryParams) > 0 {
		q := u.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	if err := ValidateURL(u.String()); err != nil {
		return nil, &Error{Kind: KindInvalidURL, Op: "build url", URL: u.String(), Err: err}
	}

	return u, nil
}

// ValidateURL checks that a URL parses and is absolute.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme == "" {
		return fmt.Errorf("URL must have a scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// BuildFormBody encodes fields as an application/x-www-form-urlencoded body.
// Keys are emitted in sorted order.
func BuildFormBody(fields map[string]string) []byte {
	if len(fields) == 0 {
		return []byte{}
	}
	values := make(url.Values, len(fields))
	for k, v := range fields {
		values.Set(k, v)
	}
	return []byte(values.Encode())
}

// ParseFormBody decodes a form-encoded body back into a map. Pairs without
// '=' or with a malformed escape are ignored.
func ParseFormBody(body string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(body, "&") {
		rawKey, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		result[key] = value
	}
	return result
}

// ParseKeyValues parses "key=value" strings, as given on a command line,
// into a map. Later entries overwrite earlier ones.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}

// ParseHeaders parses "Name: value" strings into a header map.
func ParseHeaders(lines []string) (map[string]string, error) {
	out := make(map[string]string, len(lines))
	for _, l := range lines {
		k, v, ok := strings.Cut(l, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected \"Name: value\", got %q", l)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
