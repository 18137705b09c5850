package server

import (
	"errors"

	"github.com/tim-schneider/nexsync/faults"
)

// ListPayloadShapeError marks list responses whose shape could not be
// resolved into an item array. The driver treats it as a failed remote
// fetch for that resource type (fail-fast, never diffed).
type ListPayloadShapeError struct {
	err error
}

func (e *ListPayloadShapeError) Error() string {
	if e == nil || e.err == nil {
		return "<nil>"
	}
	return e.err.Error()
}

func (e *ListPayloadShapeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func NewListPayloadShapeError(message string, cause error) error {
	return &ListPayloadShapeError{
		err: faults.NewTypedError(faults.ValidationError, message, cause),
	}
}

func IsListPayloadShapeError(err error) bool {
	var target *ListPayloadShapeError
	return errors.As(err, &target)
}
