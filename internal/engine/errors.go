package engine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dyluth/bbs/pkg/bbs"
)

// Status is the outcome of a request.
type Status string

const (
	StatusOK           Status = "OK"
	StatusCreated      Status = "Created"
	StatusBadRequest   Status = "BadRequest"
	StatusUnauthorized Status = "Unauthorized"
	StatusNotFound     Status = "NotFound"
	StatusConflict     Status = "Conflict"
	StatusInternal     Status = "Internal"
)

// HTTPStatus maps a Status onto an HTTP response code.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusOK:
		return http.StatusOK
	case StatusCreated:
		return http.StatusCreated
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// OpError is a failed operation. Message is safe to show to the actor.
type OpError struct {
	Status  Status
	Message string
	Err     error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...interface{}) *OpError {
	return &OpError{Status: StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(format string, args ...interface{}) *OpError {
	return &OpError{Status: StatusUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) *OpError {
	return &OpError{Status: StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...interface{}) *OpError {
	return &OpError{Status: StatusConflict, Message: fmt.Sprintf(format, args...)}
}

var entityLabels = map[string]string{
	"collection": "Board Collection",
	"board":      "Board",
}

// translate turns any handler error into an OpError.
func translate(err error) *OpError {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr
	}

	var conflictErr *bbs.ConflictError
	if errors.As(err, &conflictErr) {
		label := entityLabels[conflictErr.Entity]
		if label == "" {
			label = conflictErr.Entity
		}
		return &OpError{
			Status:  StatusConflict,
			Message: fmt.Sprintf("%s %s '%s' is already in use.", label, conflictErr.Field, conflictErr.Value),
			Err:     err,
		}
	}
	if bbs.IsNotFound(err) {
		return &OpError{Status: StatusNotFound, Message: "Not found.", Err: err}
	}
	return &OpError{Status: StatusInternal, Message: "internal error", Err: err}
}

// StatusOf returns the status carried by err, StatusOK for nil.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	return translate(err).Status
}

// IsBadRequest returns true if err carries StatusBadRequest.
func IsBadRequest(err error) bool { return err != nil && StatusOf(err) == StatusBadRequest }

// IsUnauthorized returns true if err carries StatusUnauthorized.
func IsUnauthorized(err error) bool { return err != nil && StatusOf(err) == StatusUnauthorized }

// IsNotFound returns true if err carries StatusNotFound.
func IsNotFound(err error) bool { return err != nil && StatusOf(err) == StatusNotFound }

// IsConflict returns true if err carries StatusConflict.
func IsConflict(err error) bool { return err != nil && StatusOf(err) == StatusConflict }
