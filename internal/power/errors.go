package power

import (
	"fmt"

	"RackPower/internal/driver"
)

// ActionFailError is a power action that failed for a reason the
// operator can act on: missing host packages, a driver that gave up,
// or a BMC reporting a state that makes no sense.
type ActionFailError struct {
	Reason string
}

func (e *ActionFailError) Error() string { return e.Reason }

func ActionFailf(format string, args ...any) *ActionFailError {
	return &ActionFailError{Reason: fmt.Sprintf(format, args...)}
}

// ActionInProgressError is returned when a node already has a
// different power change in flight. The caller gets it synchronously
// and no work is done.
type ActionInProgressError struct {
	SystemID  string
	Current   driver.Change
	Requested driver.Change
}

func (e *ActionInProgressError) Error() string {
	return fmt.Sprintf(
		"unable to change power state to '%s' for node %s: another action is already in progress for that node",
		e.Requested, e.SystemID)
}
