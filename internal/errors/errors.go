package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeValidation         ErrorType = "VALIDATION"
	ErrorTypeInternal           ErrorType = "INTERNAL"
	ErrorTypeObjectNotFound     ErrorType = "OBJECT_NOT_FOUND"
	ErrorTypePathNeverTracked   ErrorType = "PATH_NEVER_TRACKED"
	ErrorTypeUnsupportedEntry   ErrorType = "UNSUPPORTED_ENTRY_KIND"
	ErrorTypeNothingToCommit    ErrorType = "NOTHING_TO_COMMIT"
	ErrorTypeBranchExists       ErrorType = "BRANCH_EXISTS"
	ErrorTypeBranchNotFound     ErrorType = "BRANCH_NOT_FOUND"
	ErrorTypeMergeInProgress    ErrorType = "MERGE_IN_PROGRESS"
	ErrorTypeCorruptMetadata    ErrorType = "CORRUPT_METADATA"
	ErrorTypeNotARepository     ErrorType = "NOT_A_REPOSITORY"
	ErrorTypeAlreadyInitialized ErrorType = "ALREADY_INITIALIZED"
	ErrorTypeDetachedHead       ErrorType = "DETACHED_HEAD"
	ErrorTypeLocked             ErrorType = "LOCKED"
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Type so callers can test with a zero-message sentinel,
// e.g. errors.Is(err, gerrors.NothingToCommit("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// TypeOf returns the ErrorType of the first *Error in err's chain, or "".
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

// HasType reports whether err carries an *Error of type t.
func HasType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// StatusCode maps err to an HTTP status, defaulting to 500.
func StatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) && e.Code != 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}

func newError(t ErrorType, code int, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Type: t, Message: msg, Code: code}
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func Internal(format string, args ...any) *Error {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, format, args...)
}

func ObjectNotFound(oid, kind string) *Error {
	e := newError(ErrorTypeObjectNotFound, http.StatusNotFound, "object %s.%s not found", oid, kind)
	if oid == "" && kind == "" {
		e.Message = "object not found"
	}
	return e
}

func PathNeverTracked(path string) *Error {
	return newError(ErrorTypePathNeverTracked, http.StatusNotFound, "path %q was never tracked", path)
}

func UnsupportedEntryKind(format string, args ...any) *Error {
	return newError(ErrorTypeUnsupportedEntry, http.StatusUnprocessableEntity, format, args...)
}

func NothingToCommit(message string) *Error {
	if message == "" {
		message = "nothing to commit"
	}
	return newError(ErrorTypeNothingToCommit, http.StatusConflict, message)
}

func BranchExists(name string) *Error {
	return newError(ErrorTypeBranchExists, http.StatusConflict, "branch %q already exists", name)
}

func BranchNotFound(name string) *Error {
	return newError(ErrorTypeBranchNotFound, http.StatusNotFound, "branch %q does not exist", name)
}

func MergeInProgress(message string) *Error {
	if message == "" {
		message = "a merge is in progress; resolve conflicts and commit"
	}
	return newError(ErrorTypeMergeInProgress, http.StatusConflict, message)
}

func CorruptMetadata(format string, args ...any) *Error {
	return newError(ErrorTypeCorruptMetadata, http.StatusUnprocessableEntity, format, args...)
}

func NotARepository(path string) *Error {
	return newError(ErrorTypeNotARepository, http.StatusNotFound, "not a gible repository: %s", path)
}

func AlreadyInitialized(path string) *Error {
	return newError(ErrorTypeAlreadyInitialized, http.StatusConflict, "repository already initialized at %s", path)
}

func DetachedHead(message string) *Error {
	if message == "" {
		message = "HEAD is detached"
	}
	return newError(ErrorTypeDetachedHead, http.StatusConflict, message)
}

func Locked(message string) *Error {
	if message == "" {
		message = "repository is locked by another process"
	}
	return newError(ErrorTypeLocked, http.StatusLocked, message)
}
