package models

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound is matched by errors.Is for every *FileNotFoundError
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidState is matched by errors.Is for every *InvalidStateError
	ErrInvalidState = errors.New("invalid state number")
)

// FileNotFoundError reports a missing accident file
type FileNotFoundError struct {
	Filename string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file '%s' does not exist", e.Filename)
}

func (e *FileNotFoundError) Is(target error) bool {
	return target == ErrFileNotFound
}

// IsTransient returns false; the file will not appear by retrying
func (e *FileNotFoundError) IsTransient() bool {
	return false
}

// InvalidStateError reports a state code absent from a year's STATE column
type InvalidStateError struct {
	State int
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid STATE number: %d", e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// IsTransient returns false as the state domain is fixed by the file
func (e *InvalidStateError) IsTransient() bool {
	return false
}

// ParseError wraps a failure to decode an accident file
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsTransient returns false, a corrupt file stays corrupt
func (e *ParseError) IsTransient() bool {
	return false
}

// ValidationError represents an invalid caller-supplied parameter
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
