// Package tasks tracks submitted PDF files through the backend conversion
// lifecycle: upload, processing, and a terminal success or error.
package tasks

import (
	"fmt"
	"time"
)

// Status is the local processing status of a file.
type Status string

const (
	// StatusIdle indicates the file is selected but not submitted.
	StatusIdle Status = "idle"
	// StatusUploading indicates the file is being sent to the backend.
	StatusUploading Status = "uploading"
	// StatusProcessing indicates the backend accepted the file and is converting it.
	StatusProcessing Status = "processing"
	// StatusSuccess indicates audio is ready.
	StatusSuccess Status = "success"
	// StatusError indicates submission or processing failed.
	StatusError Status = "error"
)

// IsTerminal reports whether no further transitions happen from s.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

// IsActive reports whether the file has work in flight.
func (s Status) IsActive() bool {
	return s == StatusUploading || s == StatusProcessing
}

func (s Status) String() string {
	return string(s)
}

// File is a PDF the user selected.
type File struct {
	Name string
	Path string
	Size int64
}

// Key returns the identity of the file within a selection.
func (f File) Key() string {
	return FileKey(f.Name, f.Size)
}

// FileKey derives a selection identity from a filename and size.
func FileKey(name string, size int64) string {
	return fmt.Sprintf("%s:%d", name, size)
}

// FileTask is the tracked state of one file.
type FileTask struct {
	Key          string
	Status       Status
	TaskID       string
	AudioURL     string
	ErrorMessage string
	UpdatedAt    time.Time
}

// Option merges part of a FileTask into a store entry.
type Option func(*FileTask)

// WithStatus sets the status.
func WithStatus(s Status) Option {
	return func(t *FileTask) { t.Status = s }
}

// WithTaskID sets the backend task id. An empty id clears it.
func WithTaskID(id string) Option {
	return func(t *FileTask) { t.TaskID = id }
}

// WithAudioURL sets the resolved audio URL. An empty URL clears it.
func WithAudioURL(u string) Option {
	return func(t *FileTask) { t.AudioURL = u }
}

// WithErrorMessage sets the failure description. An empty message clears it.
func WithErrorMessage(msg string) Option {
	return func(t *FileTask) { t.ErrorMessage = msg }
}
