package output

import (
	"encoding/json"
	"io"
	"os"
	"unicode/utf8"

	"github.com/perchrh/ackhttp/packages/bench"
	"github.com/perchrh/ackhttp/packages/http"
)

// JSONOutcome is the machine-readable form of an http.Outcome.
type JSONOutcome struct {
	RequestID  string            `json:"requestId,omitempty"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Success    bool              `json:"success"`
	StatusCode int               `json:"statusCode,omitempty"`
	Kind       string            `json:"kind"`
	Error      string            `json:"error,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	BodyText   string            `json:"bodyText,omitempty"`
	Duration   float64           `json:"duration"` // milliseconds
}

// JSONSummary is the machine-readable form of a bench.Summary.
type JSONSummary struct {
	Total           int64           `json:"total"`
	Success         int64           `json:"success"`
	NonSuccess      int64           `json:"nonSuccess"`
	TransportErrors int64           `json:"transportErrors"`
	StatusCounts    map[int]int64   `json:"statusCounts,omitempty"`
	RPS             float64         `json:"rps"`
	SuccessRate     float64         `json:"successRate"`
	Duration        float64         `json:"duration"` // milliseconds
	Latency         JSONLatencyInMs `json:"latency"`
}

type JSONLatencyInMs struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

// JSONFormatter writes one indented JSON document per call.
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func WithJSONWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// NewJSONOutcome converts an outcome. A JSON body is embedded as-is, other
// UTF-8 bodies go to bodyText, and binary bodies are dropped.
func NewJSONOutcome(o *http.Outcome) JSONOutcome {
	out := JSONOutcome{
		RequestID:  o.RequestID,
		Method:     string(o.Method),
		URL:        o.URL,
		Success:    o.Success,
		StatusCode: o.StatusCode,
		Kind:       o.Kind().String(),
		Headers:    o.Headers,
		Duration:   float64(o.Duration.Microseconds()) / 1000,
	}
	if err := o.Failure(); err != nil {
		out.Error = err.Error()
	}
	switch {
	case len(o.Body) == 0:
	case json.Valid(o.Body):
		out.Body = json.RawMessage(o.Body)
	case utf8.Valid(o.Body):
		out.BodyText = string(o.Body)
	}
	return out
}

func NewJSONSummary(s *bench.Summary) JSONSummary {
	ms := func(d interface{ Microseconds() int64 }) float64 {
		return float64(d.Microseconds()) / 1000
	}
	return JSONSummary{
		Total:           s.Total,
		Success:         s.Success,
		NonSuccess:      s.NonSuccess,
		TransportErrors: s.TransportErrors,
		StatusCounts:    s.StatusCounts,
		RPS:             s.RPS,
		SuccessRate:     s.SuccessRate,
		Duration:        ms(s.Duration),
		Latency: JSONLatencyInMs{
			Min:  ms(s.Min),
			Mean: ms(s.Mean),
			P50:  ms(s.P50),
			P95:  ms(s.P95),
			P99:  ms(s.P99),
			Max:  ms(s.Max),
		},
	}
}

func (f *JSONFormatter) FormatOutcome(o *http.Outcome) error {
	return f.write(NewJSONOutcome(o))
}

func (f *JSONFormatter) FormatSummary(s *bench.Summary) error {
	return f.write(NewJSONSummary(s))
}

func (f *JSONFormatter) write(v any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
