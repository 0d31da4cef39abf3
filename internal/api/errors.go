package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyTaskID is returned when the backend accepts a file without
	// naming the job it created.
	ErrEmptyTaskID = errors.New("backend returned an empty task id")
	// ErrInvalidBaseURL is returned for a base URL that is not absolute http(s).
	ErrInvalidBaseURL = errors.New("invalid backend URL")
	// ErrAudioTooLarge is returned when a produced audio file exceeds the
	// download limit.
	ErrAudioTooLarge = errors.New("audio file too large")
)

// Error is a non-2xx reply from the backend.
type Error struct {
	Op         string // "submit", "status" or "fetch"
	StatusCode int
	Detail     string // detail field of the reply, if any
}

// Error returns the backend's detail when present, so it can be shown to the
// user as-is.
func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s request failed: %s", e.Op, statusText(e.StatusCode))
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return fmt.Sprintf("%d %s", code, t)
	}
	return fmt.Sprintf("%d", code)
}
