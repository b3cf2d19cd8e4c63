package model

import "time"

// JobKind tags where a Job stands relative to the server.
type JobKind string

const (
	JobKindProvisional JobKind = "provisional" // submitted locally, no server id yet
	JobKindTracked     JobKind = "tracked"     // server id known; polled every tick
	JobKindLocalError  JobKind = "local_error" // submit failed; never reached the server
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions can happen after s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the server-reported statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Progress is display-only; nothing in the tracker branches on it.
type Progress struct {
	Percent   *float64 `json:"percent,omitempty"`    // 0..100
	Rate      string   `json:"rate,omitempty"`       // e.g. "1.23MiB/s"
	ETA       string   `json:"eta,omitempty"`        // e.g. "00:45"
	TotalSize string   `json:"total_size,omitempty"` // e.g. "123.45MiB"
}

// ClampPercent bounds p to [0,100].
func ClampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Clone returns a copy that does not share Percent with p.
func (p Progress) Clone() Progress {
	if p.Percent != nil {
		v := *p.Percent
		p.Percent = &v
	}
	return p
}

// Job is one unit of server-side download work as seen by the client.
type Job struct {
	TrackingKey     string    `json:"tracking_key"`
	Kind            JobKind   `json:"kind"`
	SourceRef       string    `json:"source_ref"`
	Status          JobStatus `json:"status"`
	CurrentStep     string    `json:"current_step,omitempty"`
	Progress        Progress  `json:"progress"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	ServerEntityRef string    `json:"server_entity_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Clone returns a deep copy so snapshots never share pointers with registry state.
func (j Job) Clone() Job {
	j.Progress = j.Progress.Clone()
	return j
}

// JobSnapshot is what the server reports for a job at one point in time.
type JobSnapshot struct {
	JobID           string
	Status          JobStatus
	CurrentStep     string
	Progress        Progress
	ErrorMessage    string
	ServerEntityRef string
	SourceRef       string // only set by listings that echo the source URL
}

// SubmitResult is the server's answer to an accepted submission.
type SubmitResult struct {
	JobID           string
	InitialStatus   JobStatus
	ServerEntityRef string
	Message         string
}

// NewTrackedJob builds a tracked Job from a server snapshot.
func NewTrackedJob(snap JobSnapshot, sourceRef string, now time.Time) Job {
	status := snap.Status
	if !status.Valid() {
		status = JobStatusPending
	}
	if sourceRef == "" {
		sourceRef = snap.SourceRef
	}
	errMsg := ""
	if status == JobStatusFailed {
		errMsg = snap.ErrorMessage
	}
	return Job{
		TrackingKey:     snap.JobID,
		Kind:            JobKindTracked,
		SourceRef:       sourceRef,
		Status:          status,
		CurrentStep:     snap.CurrentStep,
		Progress:        snap.Progress.Clone(),
		ErrorMessage:    errMsg,
		ServerEntityRef: snap.ServerEntityRef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ApplySnapshot folds a non-terminal server snapshot into j in place and
// reports whether anything visible changed. Identity fields (key, kind,
// source) never change, and UpdatedAt only moves when something else did.
func (j *Job) ApplySnapshot(snap JobSnapshot, now time.Time) bool {
	before := j.Clone()
	if snap.Status.Valid() {
		j.Status = snap.Status
	}
	if snap.CurrentStep != "" {
		j.CurrentStep = snap.CurrentStep
	}
	j.Progress = snap.Progress.Clone()
	if snap.ServerEntityRef != "" {
		j.ServerEntityRef = snap.ServerEntityRef
	}
	if j.sameAs(before) {
		return false
	}
	j.UpdatedAt = now
	return true
}

func (j *Job) sameAs(o Job) bool {
	return j.Status == o.Status &&
		j.CurrentStep == o.CurrentStep &&
		j.ServerEntityRef == o.ServerEntityRef &&
		j.Progress.equal(o.Progress)
}

func (p Progress) equal(o Progress) bool {
	if (p.Percent == nil) != (o.Percent == nil) {
		return false
	}
	if p.Percent != nil && *p.Percent != *o.Percent {
		return false
	}
	return p.Rate == o.Rate && p.ETA == o.ETA && p.TotalSize == o.TotalSize
}
