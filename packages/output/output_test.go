package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/perchrh/ackhttp/packages/bench"
	"github.com/perchrh/ackhttp/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestConsoleFormatOutcome_Success(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatOutcome(&http.Outcome{
		Success:    true,
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"ok":true}`),
		Method:     http.MethodGet,
		URL:        "https://x.test/a",
	})

	assert.Equal(t, "200 OK\n{\"ok\":true}\n", buf.String())
}

func TestConsoleFormatOutcome_Verbose(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithVerbose(true), WithNoColor(true))

	f.FormatOutcome(&http.Outcome{
		StatusCode: 404,
		Headers:    map[string]string{"X-B": "2", "X-A": "1"},
		Body:       []byte("missing\n"),
		Method:     http.MethodPost,
		URL:        "https://x.test/b",
		Duration:   12 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "POST https://x.test/b (12ms)")
	assert.Contains(t, out, "404 Not Found")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("X-A: 1")), bytes.Index(buf.Bytes(), []byte("X-B: 2")))
	assert.Contains(t, out, "missing\n")
}

func TestConsoleFormatOutcome_TransportError(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatOutcome(&http.Outcome{
		Method: http.MethodGet,
		URL:    "https://x.test/",
		Err: &http.Error{
			Kind: http.KindTransport,
			Op:   "GET",
			URL:  "https://x.test/",
			Err:  errors.New("connection refused"),
		},
	})

	assert.Contains(t, buf.String(), "Error:")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestConsoleFormatBody_Binary(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatBody([]byte{0xff, 0xfe, 0x00})
	assert.Equal(t, "[binary body, 3 bytes: ff fe 00]\n", buf.String())
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "201 Created", statusText(201))
	assert.Equal(t, "599", statusText(599))
}

func TestConsoleFormatSummary(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatSummary(&bench.Summary{
		Duration:        2 * time.Second,
		Total:           10,
		Success:         7,
		NonSuccess:      2,
		TransportErrors: 1,
		StatusCounts:    map[int]int64{200: 7, 503: 2},
		RPS:             5,
		P50:             3 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "10 total")
	assert.Contains(t, out, "7 succeeded")
	assert.Contains(t, out, "2 non-2xx")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "200×7")
	assert.Contains(t, out, "503×2")
	assert.Contains(t, out, "5.0 req/s")
}

func TestJSONFormatOutcome(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(WithJSONWriter(&buf))

	require.NoError(t, f.FormatOutcome(&http.Outcome{
		StatusCode: 422,
		Body:       []byte(`{"error":"bad"}`),
		RequestID:  "r1",
		Method:     http.MethodPut,
		URL:        "https://x.test/c",
		Duration:   1500 * time.Microsecond,
	}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "r1", got["requestId"])
	assert.Equal(t, "PUT", got["method"])
	assert.Equal(t, false, got["success"])
	assert.Equal(t, float64(422), got["statusCode"])
	assert.Equal(t, "non_success_status", got["kind"])
	assert.NotEmpty(t, got["error"])
	assert.Equal(t, map[string]any{"error": "bad"}, got["body"])
	assert.Equal(t, 1.5, got["duration"])
}

func TestNewJSONOutcome_Bodies(t *testing.T) {
	text := NewJSONOutcome(&http.Outcome{Success: true, StatusCode: 200, Body: []byte("hello")})
	assert.Nil(t, text.Body)
	assert.Equal(t, "hello", text.BodyText)
	assert.Equal(t, "none", text.Kind)
	assert.Empty(t, text.Error)

	binary := NewJSONOutcome(&http.Outcome{Success: true, StatusCode: 200, Body: []byte{0xff}})
	assert.Nil(t, binary.Body)
	assert.Empty(t, binary.BodyText)
}

func TestJSONFormatSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(WithJSONWriter(&buf)).FormatSummary(&bench.Summary{
		Total:        4,
		Success:      4,
		StatusCounts: map[int]int64{200: 4},
		SuccessRate:  1,
		P99:          2 * time.Millisecond,
	}))

	var got JSONSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, int64(4), got.Total)
	assert.Equal(t, map[int]int64{200: 4}, got.StatusCounts)
	assert.Equal(t, 2.0, got.Latency.P99)
}
