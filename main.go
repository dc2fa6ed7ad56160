// Package main provides the entry point for the QA station.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	fyneapp "fyne.io/fyne/v2/app"

	"qa-station/internal/app"
	"qa-station/internal/config"
	"qa-station/internal/logging"
	"qa-station/internal/rig"
	"qa-station/internal/version"
	"qa-station/ui/prefs"
	"qa-station/ui/station"
)

const appID = "com.warehouse.qastation"

func main() {
	cfgPath := flag.String("config", "configs/station.yaml", "Station configuration")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration %s:\n%v\n", *cfgPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.Infow("starting", "version", version.String(), "config", *cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := rig.Build(cfg, logger.SugaredLogger)
	if err != nil {
		logger.Errorw("station setup failed", "error", err)
		logger.Close()
		os.Exit(1)
	}
	defer func() {
		if err := r.Close(); err != nil {
			logger.Warnw("release resources", "error", err)
		}
	}()

	st := app.NewStation(r.Driver, r.Provider, app.Options{
		LookupTimeout: cfg.WMS.Timeout,
		Logger:        logger.Named("station"),
	})

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&station.StationTheme{})
	appPrefs := prefs.Load()
	win := station.New(ctx, fyneApp, st, appPrefs)

	watchConfig(st, *cfgPath, logger)

	go func() {
		if err := st.Run(ctx); err != nil {
			logger.Warnw("station stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		fyneApp.Quit()
	}()

	win.ShowAndRun()
	stop()

	if err := win.SavePreferences(); err != nil {
		logger.Warnw("save preferences", "error", err)
	}
	logger.Info("shut down")
}

// watchConfig tells the operator when the configuration file changes on disk.
func watchConfig(st *app.Station, path string, logger *logging.Logger) {
	w := app.NewFileWatcher(path, 2*time.Second)
	if w == nil {
		logger.Warnw("config watch disabled", "path", path)
		return
	}
	w.OnChange(func(p string) {
		logger.Infow("configuration modified", "path", p)
		st.Emit(app.EventConfigChanged, p)
	})
	w.Start()
}
