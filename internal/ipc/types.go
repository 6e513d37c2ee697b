package ipc

import "time"

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon to quit.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DedupStats mirrors the deduplicator counters.
type DedupStats struct {
	Strategy     string    `json:"strategy"`
	Accepted     int64     `json:"accepted"`
	Skipped      int64     `json:"skipped"`
	Collisions   int64     `json:"collisions"`
	LastAccepted time.Time `json:"last_accepted"`
	LastPath     string    `json:"last_path"`
}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StatusResponse represents daemon status information.
type StatusResponse struct {
	Running          bool               `json:"running"`
	PID              int                `json:"pid"`
	StartedAt        time.Time          `json:"started_at"`
	LockPath         string             `json:"lock_path"`
	LogPath          string             `json:"log_path"`
	ManifestPath     string             `json:"manifest_path"`
	ScreenshotsDir   string             `json:"screenshots_dir"`
	TimelapsesDir    string             `json:"timelapses_dir"`
	Today            string             `json:"today"`
	TodayFrames      int                `json:"today_frames"`
	Dedup            DedupStats         `json:"dedup"`
	Hotkey           string             `json:"hotkey"`
	LastCaptureError string             `json:"last_capture_error"`
	LastBacklog      *BacklogResponse   `json:"last_backlog,omitempty"`
	Dependencies     []DependencyStatus `json:"dependencies"`
}

// CaptureRequest takes a screenshot immediately.
type CaptureRequest struct{}

// CaptureResponse reports the dedup decision for the capture.
type CaptureResponse struct {
	Outcome string    `json:"outcome"`
	Path    string    `json:"path"`
	At      time.Time `json:"at"`
}

// AssembleRequest builds one day's timelapse. An empty Date means today.
type AssembleRequest struct {
	Date  string `json:"date"`
	Force bool   `json:"force"`
}

// AssembleResponse describes the written artifact.
type AssembleResponse struct {
	Date          string `json:"date"`
	Path          string `json:"path"`
	Frames        int    `json:"frames"`
	Skipped       int    `json:"skipped"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Bytes         int64  `json:"bytes"`
	CorrelationID string `json:"correlation_id"`
	ElapsedMillis int64  `json:"elapsed_ms"`
}

// BacklogRequest runs the bucket scan.
type BacklogRequest struct {
	IncludeToday bool `json:"include_today"`
}

// BacklogBucket is the scan outcome for one date.
type BacklogBucket struct {
	Date    string `json:"date"`
	Status  string `json:"status"`
	Frames  int    `json:"frames"`
	Skipped int    `json:"skipped"`
	Path    string `json:"path"`
	Error   string `json:"error,omitempty"`
}

// BacklogResponse lists bucket outcomes oldest first.
type BacklogResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Buckets       []BacklogBucket `json:"buckets"`
}

// ListRequest fetches every bucket.
type ListRequest struct{}

// Bucket describes one date on disk, joined with its manifest record.
type Bucket struct {
	Date          string     `json:"date"`
	Frames        int        `json:"frames"`
	Artifact      bool       `json:"artifact"`
	ArtifactPath  string     `json:"artifact_path"`
	ArtifactBytes int64      `json:"artifact_bytes"`
	AssembledAt   *time.Time `json:"assembled_at,omitempty"`
	SkippedFrames int        `json:"skipped_frames"`
}

// ListResponse contains buckets oldest first.
type ListResponse struct {
	Buckets []Bucket `json:"buckets"`
}

// OpenTodayRequest resolves today's screenshot folder.
type OpenTodayRequest struct{}

// OpenTodayResponse carries the folder path; the CLI opens it locally.
type OpenTodayResponse struct {
	Path string `json:"path"`
}
