package devstore

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrMissingParam is returned when a required parameter is empty.
	ErrMissingParam = errors.New("missing parameter")

	// ErrNoSuchPath is returned when an upload source does not exist.
	ErrNoSuchPath = errors.New("file or folder does not exist")

	// ErrNoNotification is returned when the service has no
	// notification for the product, or the latest one was already shown.
	ErrNoNotification = errors.New("no notification to show")
)

// ParamError reports a missing or malformed input parameter.
type ParamError struct {
	Name   string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s %s parameter", e.Reason, e.Name)
}

func (e *ParamError) Unwrap() error {
	return ErrMissingParam
}

func missingParam(name string) *ParamError {
	return &ParamError{Name: name, Reason: "Missing"}
}

func invalidParam(name string) *ParamError {
	return &ParamError{Name: name, Reason: "Invalid"}
}

// RequestError represents a transport-level failure reaching the
// devstore API.
type RequestError struct {
	Op  string
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("devstore %s: request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ServerError represents a non-success response from the devstore API.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("devstore %s: server returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("devstore %s: %s", e.Op, e.Message)
}

// ArchiveError represents a failure packing or extracting save data.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}
