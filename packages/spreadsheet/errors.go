package spreadsheet

import (
	"errors"
	"fmt"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates the caller specified an invalid argument,
	// such as a malformed reference or alias name.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., grid or alias) was not
	// found.
	NotFound AppErrorCode = 5

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates operation was rejected because the
	// project is not in a state required for the operation's execution,
	// e.g. writing to a spilled cell.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means operation was attempted past the valid range.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

func (c AppErrorCode) String() string {
	switch c {
	case OK:
		return "ok"
	case InvalidArgument:
		return "invalid argument"
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	case FailedPrecondition:
		return "failed precondition"
	case OutOfRange:
		return "out of range"
	case Internal:
		return "internal"
	}
	return "unknown"
}

var (
	// ErrReadonlyCell is returned when editing a cell covered by another
	// cell's spill.
	ErrReadonlyCell = errors.New("cell is covered by a spill")
	// ErrSpillSplit is returned when an insert or delete would cut through a
	// spill footprint.
	ErrSpillSplit = errors.New("operation would split a spilled range")
	// ErrLastBand is returned when deleting every row or column of a grid.
	ErrLastBand = errors.New("cannot delete every row or column")
	// ErrLastGrid is returned when removing the only grid of a project.
	ErrLastGrid = errors.New("cannot remove the last grid")
)

// AppError represents errors at the application level (not formula errors,
// which are cell values).
type AppError struct {
	Code    AppErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func appErrorf(code AppErrorCode, cause error, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// ErrorCode extracts the AppErrorCode from err, or Unknown.
func ErrorCode(err error) AppErrorCode {
	if err == nil {
		return OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}
