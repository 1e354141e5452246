package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/perchrh/ackhttp/packages/core/config"
	"github.com/perchrh/ackhttp/packages/history"
	"github.com/perchrh/ackhttp/packages/http"
	"github.com/spf13/cobra"
)

var (
	historyLimitFlag int
	historyJSONFlag  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently recorded outcomes",
	Long: `List outcomes recorded by get, post and put when history is enabled with
--history, ACKHTTP_HISTORY or "history" in the config file.

Examples:
  ackhttp get https://api.example.com health --history
  ackhttp history -n 5`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().BoolVar(&historyJSONFlag, "json", false, "Print entries as JSON")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	conn := cfg.History
	if conn == "" {
		conn = history.DefaultConnection
	}

	store, err := history.Open(cmd.Context(), conn)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer store.Close()

	entries, err := store.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	if historyJSONFlag {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if cfg.GetNoColor() {
		color.NoColor = true
	}
	printHistory(cmd.OutOrStdout(), entries)
	return nil
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No recorded outcomes.")
		return
	}
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	for _, e := range entries {
		status := "---"
		if e.StatusCode != 0 {
			status = fmt.Sprint(e.StatusCode)
		}
		mark := green("✓")
		if !e.Success {
			mark = red("✗")
		}
		fmt.Fprintf(w, "%s %s %s %-4s %s %s (%s)\n",
			mark, e.CreatedAt.Format(time.DateTime), status, e.Method, e.URL,
			e.Kind, e.Duration.Round(time.Millisecond))
	}
}

// recordOutcome appends o to the configured history. Failures are logged
// and never change the command's result.
func recordOutcome(ctx context.Context, cfg *config.Config, o *http.Outcome) {
	if cfg.History == "" {
		return
	}
	log := cliLogger(cfg)
	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		log.Error().Err(err).Str("history", cfg.History).Msg("history unavailable")
		return
	}
	defer store.Close()

	if err := store.Record(ctx, o); err != nil {
		log.Error().Err(err).Str("request_id", o.RequestID).Msg("failed to record outcome")
	}
}
