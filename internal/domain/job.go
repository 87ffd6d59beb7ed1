package domain

import "time"

// JobStatus is the lifecycle state of an UploadJob.
type JobStatus string

const (
	JobUploading  JobStatus = "uploading"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// CanTransition reports whether moving from s to next is a legal single step.
// Error is reachable from any non-terminal state; everything else moves
// strictly forward one state at a time.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == JobError {
		return true
	}
	switch s {
	case JobUploading:
		return next == JobProcessing
	case JobProcessing:
		return next == JobCompleted
	}
	return false
}

// FileMeta describes a file offered to the job pipeline.
type FileMeta struct {
	Filename  string `json:"filename" validate:"required"`
	SizeBytes int64  `json:"size_bytes" validate:"gte=0"`
	MimeType  string `json:"mime_type" validate:"required"`
	// ClientRef lets a caller resubmit the same file without creating a
	// second job.
	ClientRef string `json:"client_ref,omitempty"`
}

// UploadJob tracks one file's analysis.
type UploadJob struct {
	ID        string            `json:"id"`
	Filename  string            `json:"filename"`
	SizeBytes int64             `json:"size_bytes"`
	MimeType  string            `json:"mime_type"`
	ClientRef string            `json:"client_ref,omitempty"`
	Status    JobStatus         `json:"status"`
	Result    *DocumentAnalysis `json:"result,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// DocumentAnalysis is the outcome of a completed job.
type DocumentAnalysis struct {
	Summary     string           `json:"summary"`
	KeyTerms    []string         `json:"key_terms"`
	Metadata    DocumentMetadata `json:"metadata"`
	KeyPoints   []string         `json:"key_points,omitempty"`
	LegalIssues []string         `json:"legal_issues,omitempty"`
	Citations   []string         `json:"citations,omitempty"`
	Confidence  float64          `json:"confidence,omitempty"`
}

type DocumentMetadata struct {
	Court        string `json:"court,omitempty"`
	Date         string `json:"date,omitempty"`
	CaseNumber   string `json:"case_number,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}
