package models

// JobStatus represents the server-side state of an async job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job type identifiers accepted by the submission endpoint.
const (
	JobTypeIngestion  = "ingestion"
	JobTypeExtraction = "extraction"
)

// JobInput is the submission payload for a new async job.
type JobInput struct {
	Type         string   `json:"type"`
	DiscussionID string   `json:"discussionId,omitempty"`
	DirPath      string   `json:"dirPath,omitempty"`
	Files        []string `json:"files,omitempty"`
}

// JobSnapshot is one status-query response for a job. Results and Error are
// only populated once the server has something to report.
type JobSnapshot struct {
	JobID          string         `json:"jobId"`
	Status         JobStatus      `json:"status"`
	Progress       int            `json:"progress"`
	FilesProcessed int            `json:"filesProcessed"`
	TotalFiles     int            `json:"totalFiles"`
	ExtractedItems int            `json:"extractedItems"`
	Results        map[string]any `json:"results,omitempty"`
	Error          *string        `json:"error,omitempty"`
}
