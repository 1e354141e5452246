package output

import (
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/perchrh/ackhttp/packages/bench"
	"github.com/perchrh/ackhttp/packages/http"
)

// maxBodyPreview caps how much of a non-text body is described.
const maxBodyPreview = 64

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose adds the request line, response headers and timing.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatOutcome prints the status line followed by the body. In verbose mode
// the request line and response headers come first.
func (f *ConsoleFormatter) FormatOutcome(o *http.Outcome) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	if f.verbose {
		fmt.Fprintf(f.writer, "%s %s %s\n", bold(string(o.Method)), o.URL, cyan(fmt.Sprintf("(%dms)", o.DurationMs())))
	}

	switch o.Kind() {
	case http.KindTransport, http.KindInvalidRequest:
		f.FormatError(o.Err)
		return
	}

	fmt.Fprintf(f.writer, "%s\n", statusColor(o.StatusCode)(statusText(o.StatusCode)))

	if f.verbose {
		for _, k := range sortedKeys(o.Headers) {
			fmt.Fprintf(f.writer, "%s: %s\n", cyan(k), o.Headers[k])
		}
		fmt.Fprintf(f.writer, "\n")
	}

	f.FormatBody(o.Body)
}

// FormatBody prints body as text, or a one-line description when it is not
// valid UTF-8.
func (f *ConsoleFormatter) FormatBody(body []byte) {
	if len(body) == 0 {
		return
	}
	if !utf8.Valid(body) {
		preview := body
		if len(preview) > maxBodyPreview {
			preview = preview[:maxBodyPreview]
		}
		fmt.Fprintf(f.writer, "[binary body, %d bytes: % x]\n", len(body), preview)
		return
	}
	text := string(body)
	fmt.Fprint(f.writer, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintf(f.writer, "\n")
	}
}

// FormatValue prints a single extracted value.
func (f *ConsoleFormatter) FormatValue(v string) {
	fmt.Fprintln(f.writer, v)
}

func (f *ConsoleFormatter) FormatSummary(s *bench.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Bench results"))
	fmt.Fprintf(f.writer, "  Requests:   %d total, ", s.Total)
	fmt.Fprintf(f.writer, "%s", green(fmt.Sprintf("%d succeeded", s.Success)))
	if s.NonSuccess > 0 {
		fmt.Fprintf(f.writer, ", %s", yellow(fmt.Sprintf("%d non-2xx", s.NonSuccess)))
	}
	if s.TransportErrors > 0 {
		fmt.Fprintf(f.writer, ", %s", red(fmt.Sprintf("%d failed", s.TransportErrors)))
	}
	fmt.Fprintf(f.writer, "\n")

	codes := make([]int, 0, len(s.StatusCounts))
	for c := range s.StatusCounts {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	if len(codes) > 0 {
		fmt.Fprintf(f.writer, "  Status:    ")
		for _, c := range codes {
			fmt.Fprintf(f.writer, " %s×%d", statusColor(c)(fmt.Sprint(c)), s.StatusCounts[c])
		}
		fmt.Fprintf(f.writer, "\n")
	}

	fmt.Fprintf(f.writer, "  Duration:   %s (%.1f req/s)\n", s.Duration.Round(time.Millisecond), s.RPS)
	fmt.Fprintf(f.writer, "  Latency:    min %s  mean %s  p50 %s  p95 %s  p99 %s  max %s\n",
		s.Min, s.Mean.Round(time.Microsecond), s.P50, s.P95, s.P99, s.Max)
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func statusText(code int) string {
	if text := nethttp.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}
	return fmt.Sprintf("%d", code)
}

func statusColor(code int) func(a ...interface{}) string {
	switch {
	case http.ClassifySuccess(code):
		return color.New(color.FgGreen).SprintFunc()
	case code >= 300 && code < 400:
		return color.New(color.FgCyan).SprintFunc()
	case code >= 400 && code < 500:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
