package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/config"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/logutils"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/task"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/testutils"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/utils"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

const testURL = "https://example.com/watch?v=abc123"

// mockStore implements TaskStore for API tests.
type mockStore struct {
	tasks map[string]task.Task
}

func (m *mockStore) Get(id string) (task.Task, bool) {
	t, ok := m.tasks[id]
	return t, ok
}

func (m *mockStore) Len() int { return len(m.tasks) }

// mockDispatcher implements Dispatcher and records the last request.
type mockDispatcher struct {
	id  string
	err error

	gotURL    string
	gotFormat string
}

func (m *mockDispatcher) Dispatch(rawURL, formatID string) (string, error) {
	m.gotURL = rawURL
	m.gotFormat = formatID
	if m.err != nil {
		return "", m.err
	}
	if m.id == "" {
		return "task-1", nil
	}
	return m.id, nil
}

func newTestServer(t *testing.T, store *mockStore, dispatcher *mockDispatcher, ex extractor.Extractor) *Server {
	t.Helper()
	if store == nil {
		store = &mockStore{tasks: map[string]task.Task{}}
	}
	if dispatcher == nil {
		dispatcher = &mockDispatcher{}
	}
	if ex == nil {
		ex = &testutils.MockExtractor{}
	}
	return NewServer(testutils.TestConfig(t.TempDir()), store, dispatcher, ex)
}

func do(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Index_200(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	rec := do(srv, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("index: got status %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("index: Content-Type %q, want text/html; charset=utf-8", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "start_download") {
		t.Error("index: page should reference the download endpoint")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestAPI_UnknownPath_404(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	if rec := do(srv, http.MethodGet, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: got status %d, want 404", rec.Code)
	}
}

func TestAPI_Formats_400MissingURL(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	if rec := do(srv, http.MethodGet, "/formats"); rec.Code != http.StatusBadRequest {
		t.Errorf("formats without url: got status %d, want 400", rec.Code)
	}
}

func TestAPI_Formats_400InvalidURL(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	if rec := do(srv, http.MethodGet, "/formats?url=not-a-url"); rec.Code != http.StatusBadRequest {
		t.Errorf("formats with bad url: got status %d, want 400", rec.Code)
	}
}

func TestAPI_Formats_200(t *testing.T) {
	ex := &testutils.MockExtractor{Formats: []extractor.Format{
		{ID: "best", Resolution: "Auto", Ext: "auto"},
		{ID: "22", Resolution: "720p", Ext: "mp4", Filesize: 12345678},
	}}
	srv := newTestServer(t, nil, nil, ex)

	rec := do(srv, http.MethodGet, "/formats?url="+testURL)
	if rec.Code != http.StatusOK {
		t.Fatalf("formats: got status %d, want 200", rec.Code)
	}
	var items []FormatDescriptor
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(items))
	}
	if items[0].FormatID != "best" || items[0].Resolution != "Auto" {
		t.Errorf("unexpected first format: %+v", items[0])
	}
	if items[1].Filesize != 12345678 {
		t.Errorf("second format filesize = %d, want 12345678", items[1].Filesize)
	}
}

func TestAPI_Formats_502OnExtractionFailure(t *testing.T) {
	ex := &testutils.MockExtractor{
		FormatsErr: utils.WrapError(utils.ErrExtractionFailed, "video unavailable", nil),
	}
	srv := newTestServer(t, nil, nil, ex)

	rec := do(srv, http.MethodGet, "/formats?url="+testURL)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("formats with failing extractor: got status %d, want 502", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "video unavailable") {
		t.Errorf("error body should carry the cause, got %s", body)
	}
}

func TestAPI_StartDownload_400MissingURL(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	if rec := do(srv, http.MethodGet, "/start_download"); rec.Code != http.StatusBadRequest {
		t.Errorf("start_download without url: got status %d, want 400", rec.Code)
	}
}

func TestAPI_StartDownload_400InvalidURL(t *testing.T) {
	dispatcher := &mockDispatcher{err: utils.WrapError(utils.ErrInvalidURL, "bad url", nil)}
	srv := newTestServer(t, nil, dispatcher, nil)

	rec := do(srv, http.MethodGet, "/start_download?url=not-a-url")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("start_download with bad url: got status %d, want 400", rec.Code)
	}
}

func TestAPI_StartDownload_200(t *testing.T) {
	dispatcher := &mockDispatcher{id: "abc-123"}
	srv := newTestServer(t, nil, dispatcher, nil)

	rec := do(srv, http.MethodGet, "/start_download?url="+testURL+"&format_id=22")
	if rec.Code != http.StatusOK {
		t.Fatalf("start_download: got status %d, want 200", rec.Code)
	}
	var resp StartDownloadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TaskID != "abc-123" {
		t.Errorf("task_id = %q, want %q", resp.TaskID, "abc-123")
	}
	if dispatcher.gotFormat != "22" {
		t.Errorf("dispatched format = %q, want %q", dispatcher.gotFormat, "22")
	}
}

func TestAPI_StartDownload_DefaultsFormat(t *testing.T) {
	dispatcher := &mockDispatcher{}
	srv := newTestServer(t, nil, dispatcher, nil)

	if rec := do(srv, http.MethodGet, "/start_download?url="+testURL); rec.Code != http.StatusOK {
		t.Fatalf("start_download: got status %d, want 200", rec.Code)
	}
	if dispatcher.gotFormat != extractor.FormatBest {
		t.Errorf("dispatched format = %q, want %q", dispatcher.gotFormat, extractor.FormatBest)
	}
}

func TestAPI_Progress_400MissingTaskID(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	if rec := do(srv, http.MethodGet, "/progress"); rec.Code != http.StatusBadRequest {
		t.Errorf("progress without task_id: got status %d, want 400", rec.Code)
	}
}

func TestAPI_Progress_UnknownTask(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	rec := do(srv, http.MethodGet, "/progress?task_id=nope")
	if rec.Code != http.StatusOK {
		t.Fatalf("progress for unknown task: got status %d, want 200", rec.Code)
	}
	var resp ProgressResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Progress != 0 || resp.State != "unknown" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestAPI_Progress_RunningTask(t *testing.T) {
	store := &mockStore{tasks: map[string]task.Task{
		"t1": {ID: "t1", Status: task.StatusRunning, Progress: 42},
	}}
	srv := newTestServer(t, store, nil, nil)

	rec := do(srv, http.MethodGet, "/progress?task_id=t1")
	var resp ProgressResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Progress != 42 || resp.State != "running" || resp.Error != "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestAPI_Progress_FailedTaskCarriesCause(t *testing.T) {
	store := &mockStore{tasks: map[string]task.Task{
		"t1": {ID: "t1", Status: task.StatusFailed, Progress: 73, Err: "connection reset"},
	}}
	srv := newTestServer(t, store, nil, nil)

	rec := do(srv, http.MethodGet, "/progress?task_id=t1")
	var resp ProgressResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != "failed" || resp.Progress != 73 || resp.Error != "connection reset" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestAPI_File_404UnknownTask(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	rec := do(srv, http.MethodGet, "/file?task_id=nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("file for unknown task: got status %d, want 404", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "File not found!") {
		t.Errorf("unexpected 404 body: %s", body)
	}
}

func TestAPI_File_404BeforeCompletion(t *testing.T) {
	store := &mockStore{tasks: map[string]task.Task{
		"running": {ID: "running", Status: task.StatusRunning, Progress: 50},
		"failed":  {ID: "failed", Status: task.StatusFailed, Progress: 73, Err: "connection reset"},
	}}
	srv := newTestServer(t, store, nil, nil)

	for _, id := range []string{"running", "failed"} {
		if rec := do(srv, http.MethodGet, "/file?task_id="+id); rec.Code != http.StatusNotFound {
			t.Errorf("file for %s task: got status %d, want 404", id, rec.Code)
		}
	}
}

func TestAPI_File_200Completed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "My Video.mp4")
	if err := os.WriteFile(path, []byte("fake video data"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := &mockStore{tasks: map[string]task.Task{
		"t1": {ID: "t1", Status: task.StatusCompleted, Progress: 100, ResultPath: path},
	}}
	srv := newTestServer(t, store, nil, nil)

	rec := do(srv, http.MethodGet, "/file?task_id=t1")
	if rec.Code != http.StatusOK {
		t.Fatalf("file: got status %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "My Video.mp4") {
		t.Errorf("Content-Disposition = %q, want attachment with file name", cd)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "fake video data" {
		t.Errorf("unexpected file body: %q", body)
	}
}

func TestAPI_File_404WhenResultMissing(t *testing.T) {
	store := &mockStore{tasks: map[string]task.Task{
		"t1": {ID: "t1", Status: task.StatusCompleted, Progress: 100, ResultPath: "/nonexistent/video.mp4"},
	}}
	srv := newTestServer(t, store, nil, nil)

	if rec := do(srv, http.MethodGet, "/file?task_id=t1"); rec.Code != http.StatusNotFound {
		t.Errorf("file with missing result: got status %d, want 404", rec.Code)
	}
}

func TestAPI_Health_200(t *testing.T) {
	store := &mockStore{tasks: map[string]task.Task{
		"t1": {ID: "t1"},
		"t2": {ID: "t2"},
	}}
	srv := newTestServer(t, store, nil, nil)

	rec := do(srv, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: got status %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Tasks != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	for _, target := range []string{"/formats", "/start_download", "/progress", "/file", "/healthz"} {
		if rec := do(srv, http.MethodPost, target); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got status %d, want 405", target, rec.Code)
		}
	}
}

func TestAPI_RateLimit_429(t *testing.T) {
	cfg := testutils.TestConfig(t.TempDir())
	cfg.APISettings = config.APIConfig{RateLimit: 1, RateBurst: 1}
	store := &mockStore{tasks: map[string]task.Task{}}
	srv := NewServer(cfg, store, &mockDispatcher{}, &testutils.MockExtractor{})

	first := do(srv, http.MethodGet, "/healthz")
	if first.Code != http.StatusOK {
		t.Fatalf("first request: got status %d, want 200", first.Code)
	}
	second := do(srv, http.MethodGet, "/healthz")
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request: got status %d, want 429", second.Code)
	}
}
