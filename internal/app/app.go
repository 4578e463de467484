// Package app wires configuration, the task registry, the extractor and the
// HTTP server together and runs them until the context is canceled.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/api"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/config"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor/youtube"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor/ytdlp"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/logutils"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/manager"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/task"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/utils"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Config    *config.Config
	Registry  *task.Registry
	Extractor extractor.Extractor
}

func New(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.DownloadPath, 0o755); err != nil {
		return nil, utils.WrapError(err, "failed to create download directory", map[string]any{
			"path": cfg.DownloadPath,
		})
	}
	return &App{
		Config:    cfg,
		Registry:  task.NewRegistry(),
		Extractor: selectExtractor(cfg),
	}, nil
}

// selectExtractor prefers the yt-dlp binary and falls back to the native
// YouTube client when it is not installed.
func selectExtractor(cfg *config.Config) extractor.Extractor {
	if path, err := exec.LookPath(cfg.YTDLPPath); err == nil {
		logutils.Log.WithField("binary", path).Info("Using yt-dlp extractor")
		return ytdlp.New(path, cfg.Proxy)
	}
	logutils.Log.WithField("binary", cfg.YTDLPPath).Warn("yt-dlp not found, using native YouTube extractor")
	return youtube.New(cfg.FFmpegPath)
}

// Run blocks until ctx is canceled, then shuts the server down and fails
// any downloads still in flight.
func (a *App) Run(ctx context.Context) error {
	mgr := manager.New(ctx, a.Config, a.Registry, a.Extractor)
	srv := api.NewServer(a.Config, a.Registry, mgr, a.Extractor)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return mgr.Janitor(gctx)
	})

	return g.Wait()
}
