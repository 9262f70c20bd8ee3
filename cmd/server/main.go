package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gowvp/argus/internal/app"
	"github.com/gowvp/argus/internal/conf"
	"github.com/ixugo/goddd/pkg/system"
)

var buildVersion = "dev"

func main() {
	configPath := flag.String("c", filepath.Join(system.Getwd(), "configs", "config.toml"), "config file path")
	flag.Parse()

	bc, err := conf.SetupConfig(*configPath)
	if err != nil {
		slog.Error("setup config failed", "err", err)
		os.Exit(1)
	}
	bc.BuildVersion = buildVersion

	level := slog.LevelInfo
	if bc.Server.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	slog.Info("starting argus",
		"version", buildVersion,
		"config", *configPath,
		"port", bc.Server.HTTP.Port,
	)

	svr, cleanup, err := app.NewHTTPServer(bc, log)
	if err != nil {
		slog.Error("build server failed", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("server failed", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := svr.Shutdown(ctx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	cleanup()
	slog.Info("argus stopped")
}
