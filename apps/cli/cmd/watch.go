package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/perchrh/ackhttp/packages/core/config"
	"github.com/perchrh/ackhttp/packages/output"
	"github.com/spf13/cobra"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

// watchPaths lists the files whose changes alter the request.
func (f *requestFlags) watchPaths() []string {
	var paths []string
	switch {
	case configFlag != "":
		paths = append(paths, configFlag)
	case getEnvString("ACKHTTP_CONFIG", "") != "":
		paths = append(paths, getEnvString("ACKHTTP_CONFIG", ""))
	default:
		if p, ok := config.FindConfigFile("."); ok {
			paths = append(paths, p)
		} else {
			paths = append(paths, config.ConfigFilenames...)
		}
	}
	if strings.HasPrefix(f.data, "@") && f.data != "@-" {
		paths = append(paths, f.data[1:])
	}
	if f.schema != "" {
		paths = append(paths, f.schema)
	}
	return paths
}

// watchAndResend calls resend after any of paths is written, created or
// renamed, until ctx is done. The parent directories are watched so that
// editors that replace files are seen.
func watchAndResend(ctx context.Context, cmd *cobra.Command, paths []string, resend func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("failed to create file watcher: %w", err))
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(paths))
	watchedDirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return withExitCode(ExitConfigError, fmt.Errorf("failed to watch %s: %w", dir, err))
			}
			watchedDirs[dir] = true
		}
	}

	errorf := output.NewConsoleFormatter(output.WithWriter(cmd.ErrOrStderr())).FormatError
	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

	var (
		debounce *time.Timer
		fire     <-chan time.Time
		changed  string
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, watched) {
				continue
			}
			changed = event.Name
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(WatchDebounceDelay)
			fire = debounce.C

		case <-fire:
			fire = nil
			fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\n\n", changed)
			resend()
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			errorf(fmt.Errorf("watcher error: %w", err))
		}
	}
}

func relevant(event fsnotify.Event, watched map[string]bool) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return watched[abs]
}
