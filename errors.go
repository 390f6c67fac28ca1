package commport

import "errors"

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial device")

	// ErrPortUnavailable means another process holds the device exclusively.
	// Open reports it as a false result rather than an error.
	ErrPortUnavailable = errors.New("serial device held by another process")
	ErrPortOpen        = errors.New("port open failure")
	ErrBadSettings     = errors.New("device rejected settings")
	ErrIO              = errors.New("unexpected I/O failure")
	ErrSendTimeout     = errors.New("send timeout")
	ErrDevice          = errors.New("com port error")
	ErrOffline         = errors.New("serial connection offline")
	ErrInvalidConfig   = errors.New("invalid serial configuration")

	// ErrPending is returned by a Device when a request was left outstanding.
	ErrPending = errors.New("I/O request pending")

	ErrUnsupportedPlatform = errors.New("serial devices not supported on this platform")
)

// DeviceError is a hardware fault reported by the device. All conditions
// that were set at the time of the query are carried in Flags.
type DeviceError struct {
	Flags CommErrors
}

func (e *DeviceError) Error() string {
	return "com port error: " + e.Flags.String()
}

// Is reports ErrDevice so callers can match without a type assertion.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDevice
}
