// Package main provides the entry point for the Sigil Overlay application.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sigil-overlay/internal/app"
	"sigil-overlay/internal/assets"
	"sigil-overlay/internal/config"
	"sigil-overlay/internal/detect/cascade"
	"sigil-overlay/internal/logging"
	"sigil-overlay/internal/render"
	"sigil-overlay/internal/version"
	"sigil-overlay/ui/mainwindow"

	fyneapp "fyne.io/fyne/v2/app"
)

const appID = "io.github.sigil-overlay"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sigil-overlay: %v\n", err)
		os.Exit(1)
	}
}

// run starts the application and blocks until the window closes. Every
// resource it opens is released before it returns.
func run(args []string) error {
	flags := flag.NewFlagSet("sigil-overlay", flag.ContinueOnError)
	configDir := flags.String("config", ".", "Directory holding sigil-overlay.{yaml,json,toml}")
	logPath := flags.String("log-file", "", "Also write logs to this file")
	showVersion := flags.Bool("version", false, "Print version and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Println(version.String())
		return nil
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var logFile io.Writer
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logFile = f
	}
	log := logging.New(cfg.LogLevel, logFile)
	log.Info("starting", "version", version.String(), "config", config.ConfigFile())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openAssets(ctx, cfg.Assets, log.With("component", "assets"))
	if err != nil {
		return fmt.Errorf("sigil store unavailable: %w", err)
	}
	defer closeStore()
	if sweeper, ok := store.(assets.Sweeper); ok {
		go assets.RunSweeper(ctx, sweeper, sweepInterval(cfg.Assets.TTL), log.With("component", "sweeper"))
	}

	opts := []app.Option{
		app.WithLogger(log.With("component", "session")),
		app.WithAssets(store),
		app.WithRenderer(render.NewRenderer(render.ParseInterpolation(cfg.Render.Interpolation), log.With("component", "render"))),
		app.WithParams(cfg.Render.SizePercent, cfg.Render.OpacityPercent),
		app.WithViewportWidth(cfg.Viewport.Width),
	}
	det, err := cascade.New(cfg.Detect.FaceCascade, cfg.Detect.EyeCascade, log.With("component", "detect"))
	if err != nil {
		log.Warn("eye detection disabled", "error", err)
	} else {
		defer det.Close()
		opts = append(opts, app.WithDetector(det))
	}

	state := app.NewState(opts...)
	defer state.Close()

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.SigilTheme{})

	win := mainwindow.New(fyneApp, state, log)
	state.ListSigils()
	if cfg.Assets.DefaultSigil != "" {
		state.SelectSigil(cfg.Assets.DefaultSigil)
	}

	if flags.NArg() > 0 {
		win.OpenImage(flags.Arg(0))
	}

	go func() {
		<-ctx.Done()
		fyneApp.Quit()
	}()

	win.ShowAndRun()
	log.Info("exiting")
	return nil
}

// openAssets builds the configured sigil store. The returned close function
// is always safe to call.
func openAssets(ctx context.Context, cfg config.AssetsConfig, log *slog.Logger) (assets.Store, func(), error) {
	opts := assets.Options{MaxBytes: cfg.MaxBytes, TTL: cfg.TTL}

	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := assets.OpenSQLStore(cfg.SQLitePath, opts, log)
		if err != nil {
			return nil, nil, err
		}
		n, err := s.SeedDir(ctx, cfg.DefaultDir)
		if err != nil {
			log.Warn("seeding built-in sigils", "dir", cfg.DefaultDir, "error", err)
		}
		log.Info("seeded built-in sigils", "count", n, "dir", cfg.DefaultDir)
		return s, func() { _ = s.Close() }, nil
	default:
		return assets.NewDirStore(cfg.DefaultDir, cfg.CustomDir, opts, log), func() {}, nil
	}
}

// sweepInterval checks for expired uploads a few times per TTL.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Hour
	}
	return max(ttl/4, time.Minute)
}
