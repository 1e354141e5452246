package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/perchrh/ackhttp/packages/core/config"
	"github.com/perchrh/ackhttp/packages/core/env"
	"github.com/perchrh/ackhttp/packages/history"
	"github.com/perchrh/ackhttp/packages/http"
	"github.com/perchrh/ackhttp/packages/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	timeoutFlag  string
	noColorFlag  bool
	verboseFlag  bool
	logLevelFlag string
	historyFlag  string
)

// defaultCLILogLevel keeps the client's failure warnings off stderr unless
// asked for; the outcome itself is always printed.
const defaultCLILogLevel = "error"

var rootCmd = &cobra.Command{
	Use:   "ackhttp",
	Short: "Send HTTP requests and see what came back.",
	Long: `ackhttp builds a URL from a base and path segments, sends one GET, POST
or PUT request and prints the outcome. Every request ends in exactly one
outcome: success (2xx), a non-2xx status, or a transport failure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := env.LoadDefault(); err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("load %s: %w", env.DefaultDotEnvFile, err))
		}
		return nil
	},
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, "Error:", msg)
		}
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (env: ACKHTTP_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&timeoutFlag, "timeout", "", "Request timeout, e.g. 5s or 500ms (env: ACKHTTP_TIMEOUT)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output (env: ACKHTTP_NO_COLOR, NO_COLOR)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show the request line, response headers and timing")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level for diagnostics on stderr (env: ACKHTTP_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&historyFlag, "history", "", "Record outcomes in a SQLite history database (env: ACKHTTP_HISTORY)")
	rootCmd.PersistentFlags().Lookup("history").NoOptDefVal = history.DefaultConnection

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// Environment variable helpers. They are read at run time so that values
// from .env are visible.
func getEnvString(key, defaultVal string) string {
	return env.GetOrDefault(key, defaultVal)
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := env.Get(key); ok && val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// loadSettings resolves the effective configuration: defaults, then the
// config file, then environment, then flags that were set explicitly.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	path := configFlag
	if !cmd.Flags().Changed("config") {
		path = getEnvString("ACKHTTP_CONFIG", "")
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}

	overrides := &config.Config{}

	timeout := getEnvString("ACKHTTP_TIMEOUT", "")
	if cmd.Flags().Changed("timeout") {
		timeout = timeoutFlag
	}
	if timeout != "" {
		ms, err := parseTimeout(timeout)
		if err != nil {
			return nil, withExitCode(ExitUsageError, err)
		}
		overrides.Timeout = ms
	}

	if cmd.Flags().Changed("no-color") {
		overrides.NoColor = config.BoolPtr(noColorFlag)
	} else if getEnvBool("ACKHTTP_NO_COLOR", false) || getEnvString("NO_COLOR", "") != "" {
		overrides.NoColor = config.BoolPtr(true)
	}
	if cmd.Flags().Changed("verbose") {
		overrides.Verbose = config.BoolPtr(verboseFlag)
	}

	overrides.LogLevel = getEnvString("ACKHTTP_LOG_LEVEL", "")
	if cmd.Flags().Changed("log-level") {
		overrides.LogLevel = logLevelFlag
	}

	overrides.History = getEnvString("ACKHTTP_HISTORY", "")
	if cmd.Flags().Changed("history") {
		overrides.History = historyFlag
	}

	return cfg.Merge(overrides), nil
}

// parseTimeout accepts a Go duration or a bare number of milliseconds.
func parseTimeout(s string) (int, error) {
	if ms, err := strconv.Atoi(s); err == nil && ms >= 0 {
		return ms, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", s)
	}
	return int(d / time.Millisecond), nil
}

func cliLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if level == "" {
		level = defaultCLILogLevel
	}
	return logger.New(os.Stderr, level)
}

// newClient builds the client every request command shares.
func newClient(cfg *config.Config) *http.Client {
	opts := append(cfg.ClientOptions(), http.WithLogger(cliLogger(cfg)))
	return http.NewClient(opts...)
}
