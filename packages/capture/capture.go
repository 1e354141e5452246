package capture

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/perchrh/ackhttp/packages/http"
	"github.com/tidwall/gjson"
)

type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

// Capture is a parsed extraction expression.
type Capture struct {
	Source Source
	Path   string
}

// Parse reads an extraction expression.
func Parse(expr string) (*Capture, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
		return nil, fmt.Errorf("empty capture expression")
	case expr == "status":
		return &Capture{Source: SourceStatus}, nil
	case expr == "duration":
		return &Capture{Source: SourceDuration}, nil
	case strings.HasPrefix(expr, "header:"):
		name := strings.TrimSpace(strings.TrimPrefix(expr, "header:"))
		if name == "" {
			return nil, fmt.Errorf("capture %q: missing header name", expr)
		}
		return &Capture{Source: SourceHeader, Path: name}, nil
	case expr == "body":
		return &Capture{Source: SourceBody}, nil
	}

	path := expr
	for _, prefix := range []string{"body.", "$."} {
		path = strings.TrimPrefix(path, prefix)
	}
	return &Capture{Source: SourceBody, Path: path}, nil
}

type Extractor struct {
	outcome  *http.Outcome
	bodyJSON gjson.Result
}

func NewExtractor(o *http.Outcome) *Extractor {
	return &Extractor{
		outcome:  o,
		bodyJSON: o.JSON(""),
	}
}

// Extract returns the captured value and whether it was present.
func (e *Extractor) Extract(c *Capture) (any, bool) {
	switch c.Source {
	case SourceBody:
		return e.extractFromBody(c.Path)
	case SourceHeader:
		return e.extractFromHeader(c.Path)
	case SourceStatus:
		if e.outcome.StatusCode == 0 {
			return nil, false
		}
		return e.outcome.StatusCode, true
	case SourceDuration:
		return e.outcome.DurationMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" && len(e.outcome.Body) > 0 {
			return e.outcome.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.outcome.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractString evaluates expr against o and renders the value as text.
// Objects and arrays keep their JSON form.
func ExtractString(o *http.Outcome, expr string) (string, bool, error) {
	c, err := Parse(expr)
	if err != nil {
		return "", false, err
	}

	e := NewExtractor(o)
	if c.Source == SourceBody && e.bodyJSON.Exists() {
		result := e.bodyJSON
		if c.Path != "" {
			result = result.Get(c.Path)
		}
		if !result.Exists() {
			return "", false, nil
		}
		if result.IsObject() || result.IsArray() {
			return result.Raw, true, nil
		}
		return result.String(), true, nil
	}

	v, ok := e.Extract(c)
	if !ok {
		return "", false, nil
	}
	switch v := v.(type) {
	case int:
		return strconv.Itoa(v), true, nil
	case int64:
		return strconv.FormatInt(v, 10), true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}
