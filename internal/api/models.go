package api

// FormatDescriptor is one entry in GET /formats.
type FormatDescriptor struct {
	FormatID   string `json:"format_id"`
	Resolution string `json:"resolution"`
	Ext        string `json:"ext"`
	Filesize   int64  `json:"filesize"`
}

// StartDownloadResponse is returned on success by GET /start_download.
type StartDownloadResponse struct {
	TaskID string `json:"task_id"`
}

// ProgressResponse is returned by GET /progress. State is one of pending,
// running, completed, failed or unknown.
type ProgressResponse struct {
	Progress int    `json:"progress"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Tasks  int    `json:"tasks"`
}
