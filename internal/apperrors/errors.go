package apperrors

import "fmt"

// ErrInvalidRequest is returned when a fetch request is missing its URL or target directory.
type ErrInvalidRequest struct {
	Field string
}

// Error implements the error interface.
func (e *ErrInvalidRequest) Error() string {
	return fmt.Sprintf("invalid fetch request: %s is required", e.Field)
}

// Is allows for error checking with errors.Is().
func (e *ErrInvalidRequest) Is(target error) bool {
	_, ok := target.(*ErrInvalidRequest)
	return ok
}

// ErrUnexpectedStatus is returned when the archive URL answers with a non-success status.
type ErrUnexpectedStatus struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *ErrUnexpectedStatus) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Is matches any ErrUnexpectedStatus, and ErrResourceNotFound when the status is 404.
func (e *ErrUnexpectedStatus) Is(target error) bool {
	switch target.(type) {
	case *ErrUnexpectedStatus:
		return true
	case *ErrResourceNotFound:
		return e.StatusCode == 404
	}
	return false
}

// ErrResourceNotFound is the sentinel form of a 404 from the archive URL.
type ErrResourceNotFound struct {
	URL string
}

// Error implements the error interface.
func (e *ErrResourceNotFound) Error() string {
	return fmt.Sprintf("archive not found at URL: %s", e.URL)
}

// Is allows for error checking with errors.Is().
func (e *ErrResourceNotFound) Is(target error) bool {
	_, ok := target.(*ErrResourceNotFound)
	return ok
}

// ErrInvalidArchive is returned when the downloaded bytes are not a readable ZIP archive.
type ErrInvalidArchive struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ErrInvalidArchive) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid ZIP archive: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid ZIP archive: %s", e.Reason)
}

// Unwrap returns the underlying reader error.
func (e *ErrInvalidArchive) Unwrap() error {
	return e.Err
}

// Is allows for error checking with errors.Is().
func (e *ErrInvalidArchive) Is(target error) bool {
	_, ok := target.(*ErrInvalidArchive)
	return ok
}

// ErrUnsafeEntryPath is returned when an archive entry would be written outside the target directory.
type ErrUnsafeEntryPath struct {
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *ErrUnsafeEntryPath) Error() string {
	return fmt.Sprintf("unsafe archive entry %q: %s", e.Name, e.Reason)
}

// Is allows for error checking with errors.Is().
func (e *ErrUnsafeEntryPath) Is(target error) bool {
	_, ok := target.(*ErrUnsafeEntryPath)
	return ok
}

// ErrLimitExceeded is returned when a download or an archive goes over a configured limit.
type ErrLimitExceeded struct {
	Limit  string
	Max    int64
	Actual int64
}

// Error implements the error interface.
func (e *ErrLimitExceeded) Error() string {
	if e.Actual > 0 {
		return fmt.Sprintf("%s limit exceeded: %d > %d", e.Limit, e.Actual, e.Max)
	}
	return fmt.Sprintf("%s limit exceeded: more than %d", e.Limit, e.Max)
}

// Is allows for error checking with errors.Is().
func (e *ErrLimitExceeded) Is(target error) bool {
	_, ok := target.(*ErrLimitExceeded)
	return ok
}

// NewUnexpectedStatusError creates a new ErrUnexpectedStatus.
func NewUnexpectedStatusError(url string, statusCode int) *ErrUnexpectedStatus {
	return &ErrUnexpectedStatus{URL: url, StatusCode: statusCode}
}

// NewUnsafeEntryPathError creates a new ErrUnsafeEntryPath.
func NewUnsafeEntryPathError(name, reason string) *ErrUnsafeEntryPath {
	return &ErrUnsafeEntryPath{Name: name, Reason: reason}
}
