package utils

import (
	"errors"
)

var (
	ErrInvalidURL         = errors.New("invalid URL provided")
	ErrExtractionFailed   = errors.New("format extraction failed")
	ErrDownloadFailed     = errors.New("download failed")
	ErrTaskNotFound       = errors.New("task not found")
	ErrDuplicateTask      = errors.New("duplicate task id")
	ErrConfigurationError = errors.New("configuration error")
)

type WrappedError struct {
	Err     error
	Message string
	Context map[string]any
}

func (w *WrappedError) Error() string {
	if w.Message != "" {
		return w.Message + ": " + w.Err.Error()
	}
	return w.Err.Error()
}

func (w *WrappedError) Unwrap() error {
	return w.Err
}

func WrapError(err error, message string, ctx map[string]any) error {
	return &WrappedError{
		Err:     err,
		Message: message,
		Context: ctx,
	}
}

// RootError returns the innermost error in the chain (for user-facing messages without wrapper text).
func RootError(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		err = e
	}
	return err
}

// ErrorMessage returns a human-readable message for an error. The root cause
// is used so the stored text does not carry internal wrapper prefixes.
// Use from both the API responses and the task registry so the same message
// shape is shown everywhere.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return RootError(err).Error()
}
