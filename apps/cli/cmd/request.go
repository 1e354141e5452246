package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/perchrh/ackhttp/packages/capture"
	"github.com/perchrh/ackhttp/packages/core/config"
	"github.com/perchrh/ackhttp/packages/core/env"
	"github.com/perchrh/ackhttp/packages/http"
	"github.com/perchrh/ackhttp/packages/output"
	"github.com/perchrh/ackhttp/packages/schema"
	"github.com/spf13/cobra"
)

// requestFlags are the flags shared by get, post, put and bench.
type requestFlags struct {
	query   []string
	headers []string
	vars    []string
	data    string
	form    []string
	async   bool
	extract string
	schema  string
	json    bool
	watch   bool
}

func addRequestFlags(cmd *cobra.Command, f *requestFlags) {
	cmd.Flags().StringArrayVarP(&f.query, "query", "q", nil, "Query parameter key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "Request header \"Name: value\" (repeatable)")
	cmd.Flags().StringArrayVarP(&f.vars, "var", "V", nil, "Template variable name=value for {{name}} in arguments, headers and body (repeatable)")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the outcome as JSON")
}

func addBodyFlags(cmd *cobra.Command, f *requestFlags) {
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "Request body; @file reads it from a file, @- from stdin")
	cmd.Flags().StringArrayVarP(&f.form, "form", "f", nil, "Form field key=value, sent form-encoded (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("data", "form")
}

func addOutcomeFlags(cmd *cobra.Command, f *requestFlags) {
	cmd.Flags().BoolVar(&f.async, "async", false, "Dispatch through the callback API and wait for the callback")
	cmd.Flags().StringVar(&f.extract, "extract", "", "Print one value: a gjson body path, header:<Name>, status or duration")
	cmd.Flags().StringVar(&f.schema, "schema", "", "Validate the response body against a JSON schema file")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Resend whenever the config, body or schema file changes")
}

func newMethodCmd(method http.Method, withBody bool) *cobra.Command {
	name := strings.ToLower(string(method))
	c := &cobra.Command{
		Use:   name + " <base-url> [path-segment...]",
		Short: fmt.Sprintf("Send a %s request", method),
		Long: fmt.Sprintf(`Send a %[1]s request to base-url with each path segment appended
(escaped) and print the outcome.

Examples:
  ackhttp %[2]s https://api.example.com users 42
  ackhttp %[2]s https://api.example.com search -q term=go -q page=2
  ackhttp %[2]s https://api.example.com users 42 --extract data.name
  ackhttp %[2]s https://api.example.com users --extract header:Location
  ackhttp %[2]s https://api.example.com users {{id}} -V id=42 -H "X-Request: {{uuid()}}"`, method, name),
		Args: cobra.MinimumNArgs(1),
	}
	f := &requestFlags{}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return requestCommand(cmd, method, args, f)
	}
	addRequestFlags(c, f)
	if withBody {
		addBodyFlags(c, f)
	}
	addOutcomeFlags(c, f)
	return c
}

var (
	getCmd  = newMethodCmd(http.MethodGet, false)
	postCmd = newMethodCmd(http.MethodPost, true)
	putCmd  = newMethodCmd(http.MethodPut, true)
)

func requestCommand(cmd *cobra.Command, method http.Method, args []string, f *requestFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := sendOnce(ctx, cmd, method, args, f)
	if f.watch {
		if err != nil {
			output.NewConsoleFormatter(output.WithWriter(cmd.ErrOrStderr())).FormatError(err)
		}
		return watchAndResend(ctx, cmd, f.watchPaths(), func() {
			if _, err := sendOnce(ctx, cmd, method, args, f); err != nil {
				output.NewConsoleFormatter(output.WithWriter(cmd.ErrOrStderr())).FormatError(err)
			}
		})
	}
	if err != nil {
		return err
	}
	if code != ExitSuccess {
		return withExitCode(code, nil)
	}
	return nil
}

// sendOnce resolves settings, sends one request and prints its outcome.
func sendOnce(ctx context.Context, cmd *cobra.Command, method http.Method, args []string, f *requestFlags) (int, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return 0, err
	}

	target, opts, err := f.build(args, cmd.InOrStdin(), cfg.Variables)
	if err != nil {
		return 0, err
	}

	var schemaData []byte
	if f.schema != "" {
		if schemaData, err = os.ReadFile(f.schema); err != nil {
			return 0, withExitCode(ExitConfigError, fmt.Errorf("read schema: %w", err))
		}
	}

	client := newClient(cfg)
	if err := authorize(ctx, cfg, client, &opts); err != nil {
		return 0, err
	}
	o := perform(ctx, client, target, method, opts, f.async)
	recordOutcome(ctx, cfg, &o)

	return render(cmd.OutOrStdout(), cmd.ErrOrStderr(), &o, cfg, f, schemaData)
}

// build turns the positional arguments and flags into a target URL and
// request options. {{...}} references in arguments, query, header and form
// values and the body are resolved against vars, overlaid by --var.
func (f *requestFlags) build(args []string, stdin io.Reader, vars map[string]string) (*url.URL, http.RequestOptions, error) {
	var opts http.RequestOptions

	resolver, err := f.resolver(vars)
	if err != nil {
		return nil, opts, err
	}
	usage := func(flag string, err error) error {
		return withExitCode(ExitUsageError, fmt.Errorf("%s: %w", flag, err))
	}

	resolvedArgs := make([]string, len(args))
	for i, a := range args {
		if resolvedArgs[i], err = resolver.Resolve(a); err != nil {
			return nil, opts, usage("arguments", err)
		}
	}

	query, err := http.ParseKeyValues(f.query)
	if err != nil {
		return nil, opts, usage("--query", err)
	}
	if query, err = resolver.ResolveAll(query); err != nil {
		return nil, opts, usage("--query", err)
	}
	u, err := http.BuildURL(resolvedArgs[0], resolvedArgs[1:], query)
	if err != nil {
		return nil, opts, withExitCode(ExitInvalidURL, err)
	}

	headers, err := http.ParseHeaders(f.headers)
	if err != nil {
		return nil, opts, usage("--header", err)
	}
	if opts.Headers, err = resolver.ResolveAll(headers); err != nil {
		return nil, opts, usage("--header", err)
	}

	switch {
	case len(f.form) > 0:
		fields, err := http.ParseKeyValues(f.form)
		if err != nil {
			return nil, opts, usage("--form", err)
		}
		if fields, err = resolver.ResolveAll(fields); err != nil {
			return nil, opts, usage("--form", err)
		}
		opts.Body = http.BuildFormBody(fields)
		opts.ContentType = http.ContentTypeForm
	case f.data != "":
		body, err := readData(f.data, stdin)
		if err != nil {
			return nil, opts, usage("--data", err)
		}
		resolved, err := resolver.Resolve(string(body))
		if err != nil {
			return nil, opts, usage("--data", err)
		}
		opts.Body = []byte(resolved)
	}

	return u, opts, nil
}

func (f *requestFlags) resolver(vars map[string]string) (*env.Resolver, error) {
	flagVars, err := http.ParseKeyValues(f.vars)
	if err != nil {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("--var: %w", err))
	}
	r := env.NewResolver()
	r.SetVariables(vars)
	r.SetVariables(flagVars)
	return r, nil
}

// readData resolves a --data argument: a literal, @path, or @- for stdin.
func readData(data string, stdin io.Reader) ([]byte, error) {
	if !strings.HasPrefix(data, "@") {
		return []byte(data), nil
	}
	path := data[1:]
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// perform sends the request through the synchronous API, or through the
// callback API when async is set.
func perform(ctx context.Context, client *http.Client, target *url.URL, method http.Method, opts http.RequestOptions, async bool) http.Outcome {
	if !async {
		return client.RequestSync(ctx, target, method, opts)
	}
	done := make(chan http.Outcome, 1)
	client.RequestAsync(ctx, target, method, opts, func(o http.Outcome) {
		done <- o
	})
	return <-done
}

// render prints the outcome and returns the exit code it maps to. A body
// that fails schemaData, when given, turns a success into ExitRequestFailure.
func render(w, errW io.Writer, o *http.Outcome, cfg *config.Config, f *requestFlags, schemaData []byte) (int, error) {
	code := outcomeExitCode(o)

	var schemaErr error
	if schemaData != nil && o.Kind() == http.KindNone {
		schemaErr = schema.Validate(o.Body, schemaData)
	}

	switch {
	case f.json:
		if err := output.NewJSONFormatter(output.WithJSONWriter(w)).FormatOutcome(o); err != nil {
			return 0, err
		}
	case f.extract != "" && o.StatusCode != 0:
		value, ok, err := capture.ExtractString(o, f.extract)
		if err != nil {
			return 0, withExitCode(ExitUsageError, fmt.Errorf("--extract: %w", err))
		}
		if !ok {
			fmt.Fprintf(errW, "no value at %q\n", f.extract)
			return ExitRequestFailure, nil
		}
		output.NewConsoleFormatter(output.WithWriter(w)).FormatValue(value)
	default:
		output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(cfg.GetVerbose()),
			output.WithNoColor(cfg.GetNoColor()),
		).FormatOutcome(o)
	}

	if schemaErr != nil {
		output.NewConsoleFormatter(output.WithWriter(errW), output.WithNoColor(cfg.GetNoColor())).FormatError(schemaErr)
		return ExitRequestFailure, nil
	}
	return code, nil
}
