package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/logutils"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/task"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/utils"
)

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	// ServeMux routes every unmatched path here.
	if r.URL.Path != indexPath {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "index page not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// formatsHandler handles GET /formats?url=...
func (s *Server) formatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !utils.IsValidLink(rawURL) {
		writeError(w, http.StatusBadRequest, "url must be a valid http(s) link")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.DownloadSettings.FormatsTimeout)
	defer cancel()
	formats, err := s.extractor.ListFormats(ctx, rawURL)
	if err != nil {
		logutils.Log.WithError(err).WithFields(map[string]any{
			"url":        rawURL,
			"request_id": RequestIDFromContext(r.Context()),
		}).Error("Format listing failed")
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to list formats: %s", utils.ErrorMessage(err)))
		return
	}

	items := make([]FormatDescriptor, 0, len(formats))
	for _, f := range formats {
		items = append(items, FormatDescriptor{
			FormatID:   f.ID,
			Resolution: f.Resolution,
			Ext:        f.Ext,
			Filesize:   f.Filesize,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// startDownloadHandler handles GET /start_download?url=...&format_id=...
func (s *Server) startDownloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	formatID := strings.TrimSpace(r.URL.Query().Get("format_id"))
	if formatID == "" {
		formatID = extractor.FormatBest
	}

	id, err := s.dispatcher.Dispatch(rawURL, formatID)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, "url must be a valid http(s) link")
			return
		}
		logutils.Log.WithError(err).WithField("request_id", RequestIDFromContext(r.Context())).Error("Dispatch failed")
		writeError(w, http.StatusInternalServerError, "failed to start download")
		return
	}
	writeJSON(w, http.StatusOK, StartDownloadResponse{TaskID: id})
}

// progressHandler handles GET /progress?task_id=...
//
// An unknown task id is not an error: the poller may race task creation or
// ask after the janitor swept the task, so it gets progress 0 and the
// "unknown" state instead of a 404.
func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.URL.Query().Get("task_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	t, ok := s.tasks.Get(id)
	if !ok {
		writeJSON(w, http.StatusOK, ProgressResponse{Progress: 0, State: "unknown"})
		return
	}
	resp := ProgressResponse{Progress: t.Progress, State: t.Status.String()}
	if t.Status == task.StatusFailed {
		resp.Error = t.Err
	}
	writeJSON(w, http.StatusOK, resp)
}

// fileHandler handles GET /file?task_id=...
func (s *Server) fileHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.URL.Query().Get("task_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	t, ok := s.tasks.Get(id)
	if !ok || t.Status != task.StatusCompleted || t.ResultPath == "" {
		writeError(w, http.StatusNotFound, "File not found!")
		return
	}
	f, err := os.Open(t.ResultPath)
	if err != nil {
		logutils.Log.WithError(err).WithFields(map[string]any{
			"task_id": id,
			"path":    t.ResultPath,
		}).Error("Result file unreadable")
		writeError(w, http.StatusNotFound, "File not found!")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found!")
		return
	}

	name := filepath.Base(t.ResultPath)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Tasks: s.tasks.Len()})
}
