// Package testutils provides shared fixtures for package tests: a test
// configuration, a scriptable mock extractor, and polling helpers.
package testutils

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/config"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/task"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/utils"
)

const pollInterval = 5 * time.Millisecond

// TestConfig creates a configuration suitable for testing.
func TestConfig(tempDir string) *config.Config {
	return &config.Config{
		ListenAddr:   "127.0.0.1:0",
		DownloadPath: tempDir,
		LogLevel:     "error",
		YTDLPPath:    "yt-dlp",
		FFmpegPath:   "ffmpeg",

		DownloadSettings: config.DownloadConfig{
			MaxConcurrentDownloads: 2,
			FormatsTimeout:         5 * time.Second,
			DownloadTimeout:        0,
			TaskTTL:                time.Hour,
		},

		APISettings: config.APIConfig{
			RateLimit: 0, // disabled unless a test opts in
			RateBurst: config.DefaultRateBurst,
		},
	}
}

// MockExtractor is a scriptable extraction collaborator. Download replays
// Events through the progress callback, then either fails with DownloadErr
// or writes FileContents into the private output directory and returns the
// resulting path. When BlockUntil is set, Download waits on it first so
// tests can hold workers in the running state.
type MockExtractor struct {
	Formats    []extractor.Format
	FormatsErr error

	Events       []extractor.ProgressEvent
	DownloadErr  error
	FileName     string
	FileContents []byte
	BlockUntil   chan struct{}

	mu        sync.Mutex
	downloads []extractor.Request
}

var _ extractor.Extractor = (*MockExtractor)(nil)

func (m *MockExtractor) ListFormats(_ context.Context, _ string) ([]extractor.Format, error) {
	if m.FormatsErr != nil {
		return nil, m.FormatsErr
	}
	if m.Formats != nil {
		return m.Formats, nil
	}
	return extractor.PrependAuto(nil), nil
}

func (m *MockExtractor) Download(ctx context.Context, req extractor.Request) (string, error) {
	m.mu.Lock()
	m.downloads = append(m.downloads, req)
	m.mu.Unlock()

	if m.BlockUntil != nil {
		select {
		case <-ctx.Done():
			return "", utils.WrapError(utils.ErrDownloadFailed, "download canceled", nil)
		case <-m.BlockUntil:
		}
	}

	for _, event := range m.Events {
		if req.Progress != nil {
			req.Progress(event)
		}
	}

	if m.DownloadErr != nil {
		return "", m.DownloadErr
	}

	name := m.FileName
	if name == "" {
		name = "video.mp4"
	}
	contents := m.FileContents
	if contents == nil {
		contents = []byte("fake video data")
	}
	path := filepath.Join(req.OutputDir, name)
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		return "", utils.WrapError(utils.ErrDownloadFailed, err.Error(), nil)
	}
	return path, nil
}

// DownloadRequests returns a copy of all Download invocations seen so far.
func (m *MockExtractor) DownloadRequests() []extractor.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	requests := make([]extractor.Request, len(m.downloads))
	copy(requests, m.downloads)
	return requests
}

// WaitForStatus polls the registry until the task reaches the wanted status
// or the timeout expires.
func WaitForStatus(t *testing.T, registry *task.Registry, id string, status task.Status, timeout time.Duration) task.Task {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		got, ok := registry.Get(id)
		if ok && got.Status == status {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %s did not reach status %v within %v (current: %+v)", id, status, timeout, got)
		}
		time.Sleep(pollInterval)
	}
}

// WaitForProgress polls the registry until the task's progress reaches at
// least want or the timeout expires.
func WaitForProgress(t *testing.T, registry *task.Registry, id string, want int, timeout time.Duration) task.Task {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		got, ok := registry.Get(id)
		if ok && got.Progress >= want {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %s did not reach progress %d within %v (current: %+v)", id, want, timeout, got)
		}
		time.Sleep(pollInterval)
	}
}
