package region

import (
	"context"
	"fmt"

	"RackPower/internal/driver"
)

// Node is a reference to a managed machine, supplied by the region on
// every call. The engine never caches these across operations.
type Node struct {
	// SystemID is the stable fleet-wide identity of the machine.
	SystemID string
	// Hostname is used in log and event messages only.
	Hostname string
	// PowerType selects the driver.
	PowerType string
	// Context carries the driver-specific power parameters.
	Context map[string]string
	// PowerState is the state the region last recorded for the node.
	// The reconciliation sweep reports only when the observed state
	// differs from it.
	PowerState driver.State
}

// Client is the RPC surface toward the region controller, the
// authoritative store for node state. Calls are idempotent; transport
// retry is the client implementation's concern, not the engine's.
type Client interface {
	// UpdateNodePowerState records a node's observed power state.
	UpdateNodePowerState(ctx context.Context, systemID string, state driver.State) error

	// MarkNodeFailed flags a node as broken with a description of the
	// failure.
	MarkNodeFailed(ctx context.Context, systemID, description string) error

	// SendEvent appends a record to the node's fleet event log.
	SendEvent(ctx context.Context, eventType, systemID, description string) error

	// ListNodes returns the nodes this rack controller is responsible
	// for, with their power parameters and last recorded power state.
	ListNodes(ctx context.Context) ([]Node, error)
}

// NoSuchNodeError is returned when the region no longer knows the
// node, typically because it was deleted mid-operation. The
// reconciliation sweep swallows it; single-node callers see it as an
// ordinary error.
type NoSuchNodeError struct {
	SystemID string
}

func (e *NoSuchNodeError) Error() string {
	return fmt.Sprintf("no such node: %s", e.SystemID)
}
