// Command huelink locates a Hue bridge on the local network, links
// with it and keeps an authenticated session available.
//
// Usage:
//
//	huelink [flags]
//
// Flags:
//
//	-prefs string       Preferences file path (default ~/.huelink/preferences.yaml)
//	-state-dir string   Directory for the persisted bridge configuration
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-interactive        Enable the interactive command shell
//	-reset              Clear the persisted bridge configuration before starting
//
// Examples:
//
//	# Run with the interactive shell
//	huelink -interactive
//
//	# Use a fixed state directory and verbose logging
//	huelink -state-dir /var/lib/huelink -log-level debug
//
//	# Forget the linked bridge and start over
//	huelink -reset
//
// Interactive Commands:
//
//	status  - Show the current lifecycle state
//	retry   - Retry the failed stage
//	link    - Confirm the bridge's link button has been pressed
//	unlink  - Forget the bridge and its credential
//	watch   - Toggle live state change output
//	events  - Print captured lifecycle events from the log file
//	quit    - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/huelink/huelink-go/cmd/huelink/interactive"
	"github.com/huelink/huelink-go/pkg/discovery"
	"github.com/huelink/huelink-go/pkg/lifecycle"
	"github.com/huelink/huelink-go/pkg/linking"
	"github.com/huelink/huelink-go/pkg/log"
	"github.com/huelink/huelink-go/pkg/prefs"
	"github.com/huelink/huelink-go/pkg/session"
	"github.com/huelink/huelink-go/pkg/store"
)

type cliConfig struct {
	PrefsPath   string
	StateDir    string
	LogLevel    string
	Interactive bool
	Reset       bool
}

var config cliConfig

func init() {
	flag.StringVar(&config.PrefsPath, "prefs", prefs.DefaultPath(), "Preferences file path")
	flag.StringVar(&config.StateDir, "state-dir", "", "Directory for the persisted bridge configuration")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable the interactive command shell")
	flag.BoolVar(&config.Reset, "reset", false, "Clear the persisted bridge configuration before starting")
}

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(config.LogLevel),
	}))

	// Preferences are loaded once here for paths; the lifecycle loads
	// them again itself so a malformed file surfaces as its terminal
	// preference-failure state rather than a crash.
	p, prefsErr := prefs.Load(config.PrefsPath)
	if prefsErr != nil {
		logger.Warn("preferences unreadable", "err", prefsErr)
		p = &prefs.Preferences{}
	}

	stateDir := config.StateDir
	if stateDir == "" {
		stateDir = p.StateDir
	}
	if stateDir == "" {
		stateDir = "."
	}

	st := store.New(stateDir)
	if config.Reset {
		logger.Info("clearing persisted bridge configuration")
		if err := st.Clear(); err != nil {
			logger.Warn("reset failed", "err", err)
		}
	}

	eventLogger, closeLog := buildEventLogger(logger, p.LogFile)
	defer closeLog()

	lc := lifecycle.New(lifecycle.Config{
		Preferences: func() (*prefs.Preferences, error) { return prefs.Load(config.PrefsPath) },
		Store:       st,
		Registry:    discovery.NewRegistryDiscoverer(discovery.RegistryConfig{}),
		Local:       discovery.NewLocalDiscoverer(discovery.LocalConfig{}),
		Linker:      linking.New(linking.Config{}),
		Sessions:    session.NewManager(session.Config{Logger: eventLogger}),
		Logger:      eventLogger,
	})

	if !config.Interactive {
		lc.OnChange(func(s lifecycle.Snapshot) {
			if s.Err != nil {
				logger.Warn("lifecycle", "state", s.State.String(), "err", s.Err)
				return
			}
			logger.Info("lifecycle", "state", s.State.String(), "bridge", s.BridgeID)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lc.Start(ctx)

	if config.Interactive {
		shell, err := interactive.New(lc, p.LogFile)
		if err != nil {
			logger.Error("failed to create shell", "err", err)
			os.Exit(1)
		}
		go shell.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	lc.Stop()
}

// buildEventLogger combines the console adapter with the optional CBOR
// capture file.
func buildEventLogger(logger *slog.Logger, logFile string) (log.Logger, func()) {
	console := log.NewSlogAdapter(logger)
	if logFile == "" {
		return console, func() {}
	}

	fl, err := log.NewFileLogger(logFile)
	if err != nil {
		logger.Warn("event capture disabled", "err", err)
		return console, func() {}
	}
	return log.NewMultiLogger(console, fl), func() {
		if err := fl.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "closing event log:", err)
		}
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
