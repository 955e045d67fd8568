package errors

import "errors"

// Process exit codes. Each externally distinguishable failure class gets
// its own code so shell callers can branch without parsing messages.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitNotFound          = 2
	ExitUnsupported       = 3
	ExitCorrupt           = 4
	ExitDeviceUnavailable = 5
	ExitStoreUnavailable  = 6
	ExitConflict          = 7
	ExitOutOfRange        = 8
	ExitSeekUnsupported   = 9
)

// ExitCode maps an error to the process exit code for the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrUnsupported):
		return ExitUnsupported
	case errors.Is(err, ErrCorrupt):
		return ExitCorrupt
	case errors.Is(err, ErrDeviceUnavailable), errors.Is(err, ErrDeviceLost):
		return ExitDeviceUnavailable
	case errors.Is(err, ErrStoreUnavailable):
		return ExitStoreUnavailable
	case errors.Is(err, ErrConflict):
		return ExitConflict
	case errors.Is(err, ErrOutOfRange):
		return ExitOutOfRange
	case errors.Is(err, ErrSeekUnsupported):
		return ExitSeekUnsupported
	default:
		return ExitFailure
	}
}
