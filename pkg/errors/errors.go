package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions. Components wrap these with
// fmt.Errorf("...: %w", ...) or OpError so callers can match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupported       = errors.New("unsupported format")
	ErrCorrupt           = errors.New("corrupt media")
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrDeviceLost        = errors.New("audio device lost")
	ErrSeekUnsupported   = errors.New("seek unsupported")
	ErrOutOfRange        = errors.New("out of range")
	ErrStoreUnavailable  = errors.New("library store unavailable")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid transport state")
	ErrInvalidVolume     = errors.New("volume must be between 0.0 and 1.0")
)

// OpError wraps an error with the operation that failed and the path or
// entity it failed on.
type OpError struct {
	Op   string // operation that failed, e.g. "open", "seek"
	Path string // file path or entity name, if applicable
	Err  error  // underlying error
}

func (e *OpError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// E builds an OpError.
func E(op, path string, err error) *OpError {
	return &OpError{Op: op, Path: path, Err: err}
}

// ScanError represents an error while probing one file during a scan.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
