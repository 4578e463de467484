package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/app"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/config"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/logutils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize configuration")
	}

	logutils.InitLogger(cfg.LogLevel)
	logutils.Log.WithFields(map[string]any{
		"version":    Version,
		"build_time": BuildTime,
		"addr":       cfg.ListenAddr,
	}).Info("Starting YouTube Downloader API")

	a, err := app.New(cfg)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logutils.Log.Info("Received shutdown signal, starting graceful shutdown...")
		cancel()
	}()

	if err := a.Run(ctx); err != nil {
		logutils.Log.WithError(err).Fatal("Server terminated with an error")
	}

	logutils.Log.Info("YouTube Downloader API shutdown complete")
}
