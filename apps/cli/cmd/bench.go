package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/perchrh/ackhttp/packages/bench"
	"github.com/perchrh/ackhttp/packages/http"
	"github.com/perchrh/ackhttp/packages/output"
	"github.com/spf13/cobra"
)

var benchCmd = &cobra.Command{
	Use:   "bench <base-url> [path-segment...]",
	Short: "Send many copies of a request and summarise latency",
	Long: `Send the same request many times through the callback API and report
status counts, throughput and latency percentiles. Template references such
as {{uuid()}} are resolved once, so every request of a run is identical.

Examples:
  # 1000 requests, 50 in flight
  ackhttp bench https://api.example.com health -n 1000 -c 50

  # Paced at 20 requests per second
  ackhttp bench https://api.example.com users -n 200 -r 20

  # POST with a body, results as JSON for CI
  ackhttp bench https://api.example.com items -X POST -d '{"a":1}' --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: benchCommand,
}

var (
	benchRequestsFlag    int
	benchConcurrencyFlag int
	benchRateFlag        float64
	benchMethodFlag      string
	benchFlags           requestFlags
)

func init() {
	defaults := bench.DefaultConfig()
	benchCmd.Flags().IntVarP(&benchRequestsFlag, "requests", "n", defaults.Requests, "Total requests to send")
	benchCmd.Flags().IntVarP(&benchConcurrencyFlag, "concurrency", "c", defaults.Concurrency, "Maximum requests in flight")
	benchCmd.Flags().Float64VarP(&benchRateFlag, "rate", "r", defaults.Rate, "Requests per second (0 = unlimited)")
	benchCmd.Flags().StringVarP(&benchMethodFlag, "method", "X", string(http.MethodGet), "Request method: GET, POST or PUT")
	addRequestFlags(benchCmd, &benchFlags)
	addBodyFlags(benchCmd, &benchFlags)
}

func benchCommand(cmd *cobra.Command, args []string) error {
	method := http.Method(strings.ToUpper(benchMethodFlag))
	if !method.Valid() {
		return withExitCode(ExitUsageError, fmt.Errorf("unsupported method %q", benchMethodFlag))
	}

	benchConfig := &bench.Config{
		Requests:    benchRequestsFlag,
		Concurrency: benchConcurrencyFlag,
		Rate:        benchRateFlag,
	}
	if err := benchConfig.Validate(); err != nil {
		return withExitCode(ExitUsageError, err)
	}

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	target, opts, err := benchFlags.build(args, cmd.InOrStdin(), cfg.Variables)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newClient(cfg)
	if err := authorize(ctx, cfg, client, &opts); err != nil {
		return err
	}

	runner := bench.NewRunner(benchConfig, client)
	summary, runErr := runner.Run(ctx, target, method, opts)
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	if benchFlags.json {
		if err := output.NewJSONFormatter(output.WithJSONWriter(cmd.OutOrStdout())).FormatSummary(summary); err != nil {
			return err
		}
	} else {
		output.NewConsoleFormatter(
			output.WithWriter(cmd.OutOrStdout()),
			output.WithNoColor(cfg.GetNoColor()),
		).FormatSummary(summary)
	}

	switch {
	case runErr != nil:
		return withExitCode(ExitRequestFailure, fmt.Errorf("interrupted after %d requests: %w", summary.Total, runErr))
	case summary.Total > 0 && summary.TransportErrors == summary.Total:
		return withExitCode(ExitNetworkError, nil)
	case summary.Failed():
		return withExitCode(ExitRequestFailure, nil)
	}
	return nil
}
