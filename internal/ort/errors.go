package ort

import (
	"errors"
	"fmt"
)

// ErrUnsupportedAPIVersion is returned by Load when the runtime has no
// dispatch table for the requested API version.
var ErrUnsupportedAPIVersion = errors.New("onnx runtime does not support the requested API version")

// Error is a failed OrtStatus. The status itself is released as soon as its
// code and message have been copied.
type Error struct {
	Op      string
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed (code %d)", e.Op, e.Code)
	}

	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// statusError converts a non-zero OrtStatus into an *Error and releases it.
func (a *API) statusError(op string, status uintptr) error {
	if status == 0 {
		return nil
	}

	err := &Error{
		Op:      op,
		Code:    ErrorCode(a.getErrorCode(status)),
		Message: cStringToGo(a.getErrorMessage(status)),
	}
	a.releaseStatus(status)

	return err
}
