package power

import (
	"context"
	"fmt"

	"RackPower/internal/driver"
	"RackPower/internal/region"
)

// Reporter translates engine outcomes into region calls: every state
// transition updates the region's power-state record, and every
// outcome — including the ones the sweep swallows — appends exactly
// one fleet event record so operators always have an audit trail.
type Reporter struct {
	region region.Client
}

func NewReporter(client region.Client) *Reporter {
	return &Reporter{region: client}
}

// ChangeStarting reports that a power change is about to begin.
func (r *Reporter) ChangeStarting(ctx context.Context, node region.Node, change driver.Change) error {
	log.Infof("Changing power state (%s) of node: %s (%s)", change, node.Hostname, node.SystemID)
	return r.region.SendEvent(ctx, region.StartingEvent(change), node.SystemID, "")
}

// ChangeSuccess records the node's new power state and reports the
// completed change.
func (r *Reporter) ChangeSuccess(ctx context.Context, node region.Node, change driver.Change) error {
	state := change.TargetState()
	if err := r.region.UpdateNodePowerState(ctx, node.SystemID, state); err != nil {
		return err
	}
	log.Infof("Changed power state (%s) of node: %s (%s)", state, node.Hostname, node.SystemID)
	return r.region.SendEvent(ctx, region.SuccessEvent(change), node.SystemID, "")
}

// ChangeFailure reports a power change that could not be carried out.
// markBroken marks the node as failed in the region; readiness
// failures leave it alone, since they indicate a problem on the rack
// host rather than on the node.
func (r *Reporter) ChangeFailure(ctx context.Context, node region.Node, change driver.Change, message string, markBroken bool) error {
	log.Errorf("Error changing power state (%s) of node: %s (%s)", change, node.Hostname, node.SystemID)
	if markBroken {
		if err := r.region.MarkNodeFailed(ctx, node.SystemID, message); err != nil {
			return err
		}
	}
	return r.region.SendEvent(ctx, region.FailureEvent(change), node.SystemID, message)
}

// QuerySuccess records a freshly observed power state.
func (r *Reporter) QuerySuccess(ctx context.Context, node region.Node, state driver.State) error {
	if err := r.region.UpdateNodePowerState(ctx, node.SystemID, state); err != nil {
		return err
	}
	message := fmt.Sprintf("Power state queried: %s", state)
	return r.region.SendEvent(ctx, region.EventPowerQueried, node.SystemID, message)
}

// QueryFailure records that a node's power state could not be
// determined; the region's record becomes "error".
func (r *Reporter) QueryFailure(ctx context.Context, node region.Node, message string) error {
	if err := r.region.UpdateNodePowerState(ctx, node.SystemID, driver.StateError); err != nil {
		return err
	}
	return r.region.SendEvent(ctx, region.EventPowerQueryFailed, node.SystemID, message)
}
