package history

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a capture job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusFitting    Status = "fitting"
	StatusRecording  Status = "recording"
	StatusRecorded   Status = "recorded"
	StatusConverting Status = "converting"
	StatusConverted  Status = "converted"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusFitting,
	StatusRecording,
	StatusRecorded,
	StatusConverting,
	StatusConverted,
	StatusDelivering,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Job is one capture request persisted in SQLite.
type Job struct {
	ID              int64
	RequestID       string
	URL             string
	Format          string
	FrameRate       int
	DurationMs      int
	FitRequested    bool
	FitStrategy     string
	SurfaceWidth    int
	SurfaceHeight   int
	Status          Status
	OutputPath      string
	FallbackPath    string
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a job has finished, successfully or not.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job as failed with the given message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressStage = "Failed"
	j.ProgressMessage = message
	j.ProgressPercent = 0
}
