package region

import "RackPower/internal/driver"

// Fleet event types recorded against a node's event log.
const (
	EventPowerOnStarting    = "NODE_POWER_ON_STARTING"
	EventPowerOffStarting   = "NODE_POWER_OFF_STARTING"
	EventPowerCycleStarting = "NODE_POWER_CYCLE_STARTING"

	EventPoweredOn  = "NODE_POWERED_ON"
	EventPoweredOff = "NODE_POWERED_OFF"

	EventPowerOnFailed    = "NODE_POWER_ON_FAILED"
	EventPowerOffFailed   = "NODE_POWER_OFF_FAILED"
	EventPowerCycleFailed = "NODE_POWER_CYCLE_FAILED"

	EventPowerQueried     = "NODE_POWER_QUERIED"
	EventPowerQueryFailed = "NODE_POWER_QUERY_FAILED"
)

// StartingEvent returns the event type for a change that is beginning.
func StartingEvent(change driver.Change) string {
	switch change {
	case driver.ChangeOn:
		return EventPowerOnStarting
	case driver.ChangeOff:
		return EventPowerOffStarting
	default:
		return EventPowerCycleStarting
	}
}

// SuccessEvent returns the event type for a completed change. A cycle
// that succeeded left the node powered on.
func SuccessEvent(change driver.Change) string {
	if change == driver.ChangeOff {
		return EventPoweredOff
	}
	return EventPoweredOn
}

// FailureEvent returns the event type for a failed change.
func FailureEvent(change driver.Change) string {
	switch change {
	case driver.ChangeOn:
		return EventPowerOnFailed
	case driver.ChangeOff:
		return EventPowerOffFailed
	default:
		return EventPowerCycleFailed
	}
}
