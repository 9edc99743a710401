package driver

import "context"

// State is the power state of a node as observed through its BMC.
type State string

const (
	StateOn      State = "on"
	StateOff     State = "off"
	StateUnknown State = "unknown"
	StateError   State = "error"
)

// Valid reports whether s is a state a driver query may legally return.
func (s State) Valid() bool {
	return s == StateOn || s == StateOff || s == StateUnknown
}

// Change is a requested power state transition.
type Change string

const (
	ChangeOn    Change = "on"
	ChangeOff   Change = "off"
	ChangeCycle Change = "cycle"
)

func (c Change) Valid() bool {
	return c == ChangeOn || c == ChangeOff || c == ChangeCycle
}

// TargetState returns the state a node is expected to settle in after
// the change completes. A cycle ends with the node powered on.
func (c Change) TargetState() State {
	switch c {
	case ChangeOn, ChangeCycle:
		return StateOn
	case ChangeOff:
		return StateOff
	default:
		return StateUnknown
	}
}

// Driver controls the power of nodes over one BMC protocol or vendor
// tool. The context map carries the node-specific parameters (address,
// credentials, domain name) and is opaque to everything above the
// driver.
type Driver interface {
	Name() string

	// Queryable reports whether the driver can read the current power
	// state. Non-queryable drivers are skipped by the query engine and
	// the reconciliation sweep.
	Queryable() bool

	// DetectMissingPackages returns the names of host packages the
	// driver needs but cannot find. A non-empty result is a readiness
	// failure; no BMC operation is attempted.
	DetectMissingPackages() []string

	On(ctx context.Context, systemID string, pctx map[string]string) error
	Off(ctx context.Context, systemID string, pctx map[string]string) error
	Cycle(ctx context.Context, systemID string, pctx map[string]string) error
	Query(ctx context.Context, systemID string, pctx map[string]string) (State, error)
}
