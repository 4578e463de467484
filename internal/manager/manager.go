// Package manager dispatches download tasks and runs their workers.
// Dispatch registers the task before returning, so a client polling
// immediately afterwards always finds it; the download itself runs on its
// own goroutine and reports into the task registry through a progress
// callback.
package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/config"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/logutils"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/task"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/utils"
)

const (
	// shortIDLen is how much of the task id goes into the directory prefix.
	shortIDLen       = 8
	minSweepInterval = 10 * time.Second
)

type Manager struct {
	cfg       *config.Config
	registry  *task.Registry
	extractor extractor.Extractor
	ctx       context.Context
	semaphore chan struct{}

	mu   sync.Mutex
	dirs map[string]string
}

// New creates a manager whose workers live until ctx is canceled.
func New(ctx context.Context, cfg *config.Config, registry *task.Registry, ex extractor.Extractor) *Manager {
	return &Manager{
		cfg:       cfg,
		registry:  registry,
		extractor: ex,
		ctx:       ctx,
		semaphore: make(chan struct{}, cfg.DownloadSettings.MaxConcurrentDownloads),
		dirs:      make(map[string]string),
	}
}

// Dispatch registers a new pending task and schedules its download.
// It returns the task id immediately and never blocks on the download:
// when all worker slots are busy the task simply stays pending until one
// frees up.
func (m *Manager) Dispatch(rawURL, formatID string) (string, error) {
	if !utils.IsValidLink(rawURL) {
		return "", utils.WrapError(utils.ErrInvalidURL, "url must be a valid http(s) link", map[string]any{
			"url": rawURL,
		})
	}
	if formatID == "" {
		formatID = extractor.FormatBest
	}

	id := uuid.NewString()
	if err := m.registry.Create(id, rawURL); err != nil {
		return "", err
	}

	logutils.Log.WithFields(map[string]any{
		"task_id":   id,
		"url":       rawURL,
		"format_id": formatID,
	}).Info("Dispatching download")

	go m.run(id, rawURL, formatID)

	return id, nil
}

func (m *Manager) run(id, rawURL, formatID string) {
	// A panicking collaborator must fail the task, never the process.
	defer func() {
		if r := recover(); r != nil {
			logutils.Log.WithField("task_id", id).Errorf("Download worker panicked: %v", r)
			m.registry.Fail(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	select {
	case m.semaphore <- struct{}{}:
	case <-m.ctx.Done():
		m.registry.Fail(id, "download canceled")
		return
	}
	defer func() { <-m.semaphore }()

	dir, err := os.MkdirTemp(m.cfg.DownloadPath, "task-"+shortID(id)+"-")
	if err != nil {
		logutils.Log.WithError(err).WithField("task_id", id).Error("Failed to create task directory")
		m.registry.Fail(id, "failed to create download directory")
		return
	}
	m.rememberDir(id, dir)

	m.registry.SetRunning(id)

	ctx := m.ctx
	if m.cfg.DownloadSettings.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.DownloadSettings.DownloadTimeout)
		defer cancel()
	}

	startTime := time.Now()
	path, err := m.extractor.Download(ctx, extractor.Request{
		URL:       rawURL,
		FormatID:  formatID,
		OutputDir: dir,
		Progress:  m.progressFunc(id),
	})
	if err != nil {
		cause := utils.ErrorMessage(err)
		if m.ctx.Err() != nil {
			cause = "download canceled"
		} else if ctx.Err() == context.DeadlineExceeded {
			cause = "download timed out"
		}
		logutils.Log.WithError(err).WithFields(map[string]any{
			"task_id": id,
			"url":     rawURL,
		}).Error("Download failed")
		m.registry.Fail(id, cause)
		return
	}

	m.registry.SetTitle(id, titleFromPath(path))
	m.registry.Complete(id, path)
	logutils.Log.WithFields(map[string]any{
		"task_id":  id,
		"path":     path,
		"duration": time.Since(startTime),
	}).Info("Download completed successfully")
}

// progressFunc converts byte-level collaborator events into registry percent
// updates. An unknown total uses the sentinel denominator of 1, so percent
// tracks raw bytes until a real total arrives; the registry clamps running
// progress to 99 either way.
func (m *Manager) progressFunc(id string) extractor.ProgressFunc {
	return func(event extractor.ProgressEvent) {
		total := event.BytesTotal
		if total <= 0 {
			total = 1
		}
		percent := int(event.BytesDone * 100 / total)
		m.registry.UpdateProgress(id, percent)
	}
}

// Janitor periodically evicts expired terminal tasks and removes their
// private download directories. Blocks until ctx is canceled.
func (m *Manager) Janitor(ctx context.Context) error {
	ttl := m.cfg.DownloadSettings.TaskTTL
	interval := ttl / 10
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sweep(ttl)
		}
	}
}

func (m *Manager) sweep(ttl time.Duration) {
	for _, expired := range m.registry.SweepExpired(ttl) {
		dir := m.forgetDir(expired.ID)
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logutils.Log.WithError(err).WithField("task_id", expired.ID).Warn("Failed to remove task directory")
			continue
		}
		logutils.Log.WithFields(map[string]any{
			"task_id": expired.ID,
			"dir":     dir,
		}).Debug("Evicted expired task")
	}
}

func (m *Manager) rememberDir(id, dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[id] = dir
}

func (m *Manager) forgetDir(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir := m.dirs[id]
	delete(m.dirs, id)
	return dir
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
