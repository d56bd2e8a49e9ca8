package solenoid

import "fmt"

// Code identifies the failure class of a driver operation.
type Code uint8

const (
	CodeOK Code = iota
	CodeNotInitialized
	CodeInvalidChannel
	CodeInvalidBoard
	CodeCommunication
	CodeSafetyTimeout
	CodeSafetyCooldown
	CodeDutyCycleExceeded
	CodeBusy
	CodeUnknown
)

// String returns a short human-readable description of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeNotInitialized:
		return "not initialized"
	case CodeInvalidChannel:
		return "invalid channel"
	case CodeInvalidBoard:
		return "invalid board"
	case CodeCommunication:
		return "communication error"
	case CodeSafetyTimeout:
		return "safety timeout"
	case CodeSafetyCooldown:
		return "safety cooldown"
	case CodeDutyCycleExceeded:
		return "duty cycle exceeded"
	case CodeBusy:
		return "busy"
	default:
		return "unknown error"
	}
}

// NoChannel is the channel value reported with driver-wide errors that are
// not tied to a single channel.
const NoChannel uint8 = 255

// Error is the error type returned by all Driver operations. Channel is
// NoChannel for driver-wide failures.
type Error struct {
	Code    Code
	Channel uint8
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Channel == NoChannel {
		return e.Code.String()
	}
	return fmt.Sprintf("%s (channel %d)", e.Code, e.Channel)
}

// Is reports whether target is an *Error with the same code, so callers can
// match with errors.Is against the package sentinels regardless of channel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinel errors for matching with errors.Is. The errors returned by Driver
// methods carry the affected channel; these carry NoChannel.
var (
	ErrNotInitialized    = &Error{Code: CodeNotInitialized, Channel: NoChannel}
	ErrInvalidChannel    = &Error{Code: CodeInvalidChannel, Channel: NoChannel}
	ErrInvalidBoard      = &Error{Code: CodeInvalidBoard, Channel: NoChannel}
	ErrCommunication     = &Error{Code: CodeCommunication, Channel: NoChannel}
	ErrSafetyTimeout     = &Error{Code: CodeSafetyTimeout, Channel: NoChannel}
	ErrSafetyCooldown    = &Error{Code: CodeSafetyCooldown, Channel: NoChannel}
	ErrDutyCycleExceeded = &Error{Code: CodeDutyCycleExceeded, Channel: NoChannel}
	ErrBusy              = &Error{Code: CodeBusy, Channel: NoChannel}
)

// ErrorCallback receives every error the driver reports, including
// auto-shutoffs raised from Update. Channel is NoChannel for driver-wide
// errors. Callbacks run synchronously on the calling goroutine and must
// return promptly.
type ErrorCallback func(code Code, channel uint8)
