// Package api is a client for the PDF-to-audio backend: it submits PDF files
// as conversion jobs and reports their progress.
package api

// TaskState is the job status reported by the backend.
type TaskState string

// Job states the backend reports.
const (
	StatePending TaskState = "PENDING"
	StateStarted TaskState = "STARTED"
	StateSuccess TaskState = "SUCCESS"
	StateFailure TaskState = "FAILURE"
	StateRetry   TaskState = "RETRY"
	StateRevoked TaskState = "REVOKED"
)

// InProgress reports whether the job is still queued or running.
func (s TaskState) InProgress() bool {
	switch s {
	case StatePending, StateStarted, StateRetry:
		return true
	default:
		return false
	}
}

// SubmitResponse is returned when the backend accepts a file.
type SubmitResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// TaskStatusResponse describes a job's progress.
type TaskStatusResponse struct {
	TaskID    string    `json:"task_id"`
	Status    TaskState `json:"status"`
	Result    string    `json:"result,omitempty"`
	ErrorInfo string    `json:"error_info,omitempty"`
}

// errorResponse is the body of a non-2xx reply.
type errorResponse struct {
	Detail string `json:"detail"`
}
