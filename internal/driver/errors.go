package driver

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a BMC failure. Fatal kinds indicate the failure
// cannot be cured by trying again (bad credentials, missing tool,
// broken configuration), so retry loops abort on them immediately.
type ErrorKind int

const (
	// KindAction is a failure of the power operation itself.
	KindAction ErrorKind = iota
	// KindConnection is a failure to reach the BMC.
	KindConnection
	// KindAuth means the BMC rejected the supplied credentials. Fatal.
	KindAuth
	// KindSetting means a required power parameter is missing or
	// malformed. Fatal.
	KindSetting
	// KindTool means the vendor tool needed by the driver is not
	// usable. Fatal.
	KindTool
)

// Error is a classified driver failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether retrying the operation is pointless.
func (e *Error) Fatal() bool {
	return e.Kind == KindAuth || e.Kind == KindSetting || e.Kind == KindTool
}

// NewError builds a classified driver error.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err carries a fatal driver error kind.
func IsFatal(err error) bool {
	var derr *Error
	return errors.As(err, &derr) && derr.Fatal()
}

// ErrorMessage renders err as the operator-facing message recorded in
// the fleet event log.
func ErrorMessage(err error) string {
	var derr *Error
	if !errors.As(err, &derr) {
		return fmt.Sprintf("Failed talking to node's BMC: %s", err)
	}
	switch derr.Kind {
	case KindAuth:
		return fmt.Sprintf("Could not authenticate to node's BMC: %s", derr.Err)
	case KindConnection:
		return fmt.Sprintf("Could not contact node's BMC: %s", derr.Err)
	case KindSetting:
		return fmt.Sprintf("Missing or invalid power setting: %s", derr.Err)
	case KindTool:
		return fmt.Sprintf("Missing power tool: %s", derr.Err)
	case KindAction:
		return fmt.Sprintf("Failed to complete power action: %s", derr.Err)
	default:
		return fmt.Sprintf("Failed talking to node's BMC: %s", derr.Err)
	}
}

// UnknownPowerTypeError is returned when a power type does not resolve
// to any registered driver. This is a configuration error and is never
// retried.
type UnknownPowerTypeError struct {
	PowerType string
}

func (e *UnknownPowerTypeError) Error() string {
	return fmt.Sprintf("unknown power_type '%s'", e.PowerType)
}
