package chatdev

import (
	"strings"
	"time"
)

const serverTimestampLayout = "2006-01-02 15:04:05"

// TaskStatus is the lifecycle state of a generation task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusRunning   TaskStatus = "RUNNING"
	StatusCompleted TaskStatus = "COMPLETED"
	StatusFailed    TaskStatus = "FAILED"
	StatusCancelled TaskStatus = "CANCELLED"
)

// Statuses lists every task status in lifecycle order.
func Statuses() []TaskStatus {
	return []TaskStatus{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can happen from s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Cancellable reports whether the server accepts a cancel request in s.
func (s TaskStatus) Cancellable() bool {
	return s == StatusPending || s == StatusRunning
}

// APKBuildStatus tracks the optional APK packaging step of a completed task.
type APKBuildStatus string

const (
	APKBuilding    APKBuildStatus = "BUILDING"
	APKBuilt       APKBuildStatus = "BUILDED"
	APKBuildFailed APKBuildStatus = "BUILDFAILED"
)

// InProgress reports whether an APK build is still running.
func (s APKBuildStatus) InProgress() bool {
	return s == APKBuilding
}

// Task is the client-side projection of a server task record.
type Task struct {
	TaskID         int64          `json:"task_id"`
	Status         TaskStatus     `json:"status"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
	ResultPath     string         `json:"result_path"`
	APKBuildStatus APKBuildStatus `json:"apk_build_status"`
	APKPath        string         `json:"apk_path"`
	ErrorMessage   string         `json:"error_message"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (t Task) ParsedCreatedAt() time.Time {
	return parseTime(t.CreatedAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (t Task) ParsedUpdatedAt() time.Time {
	return parseTime(t.UpdatedAt)
}

// Settled reports whether neither the task nor its APK build can change any more.
func (t Task) Settled() bool {
	return t.Status.Terminal() && !t.APKBuildStatus.InProgress()
}

// Project extracts the project reference encoded in ResultPath.
func (t Task) Project() (ProjectRef, bool) {
	return ParseResultPath(t.ResultPath)
}

// CanBuildAPK reports whether an APK build may be requested for the task.
func (t Task) CanBuildAPK() bool {
	if t.Status != StatusCompleted {
		return false
	}
	if _, ok := t.Project(); !ok {
		return false
	}
	return t.APKBuildStatus == "" || t.APKBuildStatus == APKBuildFailed
}

// APKReady reports whether a built APK is available for download.
func (t Task) APKReady() bool {
	return t.Status == StatusCompleted && t.APKBuildStatus == APKBuilt && t.APKPath != ""
}

// Models lists the model identifiers the service accepts.
func Models() []string {
	return []string{"CLAUDE_3_5_SONNET", "GPT_3_5_TURBO", "GPT_4", "GPT_4_TURBO", "GPT_4O", "GPT_4O_MINI", "DEEPSEEK_R1"}
}

// Configs lists the named generation configurations.
func Configs() []string {
	return []string{"Default", "Art", "Human", "Flet"}
}

// GenerateRequest describes a new generation task.
type GenerateRequest struct {
	Task     string
	Name     string
	Config   string
	Org      string
	Model    string
	Path     string
	BuildAPK bool
	// BaseURL is forwarded to the model provider, e.g. for proxies.
	BaseURL string
}

type generatePayload struct {
	APIKey   string `json:"api_key"`
	Task     string `json:"task"`
	Name     string `json:"name"`
	Config   string `json:"config"`
	Org      string `json:"org"`
	Model    string `json:"model"`
	Path     string `json:"path"`
	BuildAPK bool   `json:"build_apk"`
	BaseURL  string `json:"base_url,omitempty"`
}

// GenerateResponse mirrors POST /generate.
type GenerateResponse struct {
	TaskID    int64      `json:"task_id"`
	Status    TaskStatus `json:"status"`
	CreatedAt string     `json:"created_at"`
}

// ListQuery configures GET /tasks requests.
type ListQuery struct {
	Status TaskStatus
	Limit  int
	Offset int
}

// TaskList mirrors GET /tasks.
type TaskList struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

// DeleteResponse mirrors DELETE /task/{id}.
type DeleteResponse struct {
	Message string `json:"message"`
}

// Deleted reports whether the server confirmed the deletion.
func (d DeleteResponse) Deleted() bool {
	return strings.Contains(d.Message, "deleted successfully")
}

type authPayload struct {
	APIKey string `json:"api_key"`
}

// BuildRequest identifies the project to package as an APK.
type BuildRequest struct {
	ProjectName  string
	Organization string
	Timestamp    string
}

type buildPayload struct {
	APIKey       string `json:"api_key"`
	ProjectName  string `json:"project_name"`
	Organization string `json:"organization,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// BuildResponse mirrors POST /build-apk.
type BuildResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	APKPath string `json:"apk_path"`
}

// Health mirrors the health endpoints.
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// ProjectRef is the project identity encoded in a task's result path.
type ProjectRef struct {
	Name         string
	Organization string
	Timestamp    string
}

// BuildRequest returns the request that packages this project.
func (p ProjectRef) BuildRequest() BuildRequest {
	return BuildRequest{ProjectName: p.Name, Organization: p.Organization, Timestamp: p.Timestamp}
}

// ParseResultPath decodes "WareHouse/<Name>_<Org>_<Timestamp>". The convention
// is best-effort; anything that does not fit yields ok=false.
func ParseResultPath(path string) (ProjectRef, bool) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) < 2 {
		return ProjectRef{}, false
	}
	fields := strings.Split(parts[len(parts)-1], "_")
	if len(fields) < 3 || fields[0] == "" {
		return ProjectRef{}, false
	}
	return ProjectRef{Name: fields[0], Organization: fields[1], Timestamp: fields[2]}, true
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(serverTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
