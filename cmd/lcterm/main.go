package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"lcterm/internal/app"
	"lcterm/internal/config"
	"lcterm/internal/devtools"
	"lcterm/internal/telemetry"
	"lcterm/internal/ui"
)

type flags struct {
	configPath string
	logFile    string
	debug      bool
	demo       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "lcterm",
		Short:         "Browse, scaffold and submit judge problems from the terminal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, f)
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", "", "config file (default: user config dir)")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "write structured logs to this file (default: <data dir>/lcterm.log)")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "verbose logging and a size readout in the header")
	cmd.Flags().BoolVar(&f.demo, "demo", false, "run against a built-in offline judge")
	return cmd
}

func run(ctx context.Context, f flags) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	path := f.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("locate config: %w", err)
		}
		path = p
	}
	loaded, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrCorrupt) {
			return fmt.Errorf("%w (fix or remove it to run setup again)", err)
		}
		return err
	}
	cfg := loaded.Config

	logPath := f.logFile
	if logPath == "" {
		logPath = filepath.Join(cfg.DataDir, "lcterm.log")
	}
	logger, err := telemetry.New(logPath, f.debug)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logger.Close()

	opts := app.Options{
		Config:      cfg,
		ConfigPath:  path,
		Configured:  loaded.Configured(),
		SetupReason: loaded.SetupReason,
		Logger:      logger,
	}
	if f.demo {
		if err := startDemo(ctx, &opts); err != nil {
			return err
		}
		defer os.RemoveAll(opts.Config.DataDir)
	}

	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	root := ui.New(ui.Options{
		Machine:     a.Machine(),
		Theme:       cfg.UI.Theme,
		MotionLevel: cfg.UI.MotionLevel,
		ASCIIOnly:   cfg.UI.ASCIIOnly,
		Debug:       f.debug,
		Logger:      logger,
	})
	runErr := root.Run(ctx)

	last := a.Machine().LastDir()
	if last == "" && !f.demo {
		last = a.LastScaffoldDir(context.Background())
	}
	a.Close()
	if runErr != nil {
		return runErr
	}
	if last != "" {
		fmt.Println(last)
	}
	return nil
}

// startDemo points the session at a local judge serving the built-in
// catalog. Nothing is written back to the real config or state.
func startDemo(ctx context.Context, opts *app.Options) error {
	cat, err := devtools.BuiltinCatalog()
	if err != nil {
		return err
	}
	j := devtools.New(devtools.Options{Catalog: cat, PendingPolls: 2, Logger: opts.Logger})
	url, err := devtools.Serve(ctx, "127.0.0.1:0", j)
	if err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "lcterm-demo-")
	if err != nil {
		return fmt.Errorf("demo data dir: %w", err)
	}
	cfg := opts.Config
	cfg.BaseURL = url
	cfg.DataDir = dir
	if cfg.SessionToken == "" || cfg.CSRFToken == "" {
		cfg.SessionToken, cfg.CSRFToken = "demo", "demo"
	}
	opts.Config = cfg
	opts.ConfigPath = ""
	opts.Configured = true
	opts.SetupReason = ""
	opts.Notice = "Demo mode: problems come from a built-in offline judge"
	return nil
}
