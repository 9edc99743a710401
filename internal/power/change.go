package power

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"RackPower/internal/driver"
	"RackPower/internal/region"
)

// reportTimeout bounds the region calls made while reporting the
// outcome of an action whose own context has already expired.
const reportTimeout = 15 * time.Second

// MaybeChangePowerState attempts to start a power change for a node
// and returns without waiting for it to finish.
//
// If the same change is already in flight the existing handle is
// returned, so concurrent identical requests converge on one action.
// If a different change is in flight it fails immediately with
// ActionInProgressError and has no side effects. Otherwise the change
// is admitted and runs in the background under the engine's change
// timeout; the registry entry is released on every completion path.
func (e *Engine) MaybeChangePowerState(node region.Node, change driver.Change) (*Handle, error) {
	if node.SystemID == "" {
		return nil, ActionFailf("system_id must not be empty")
	}
	if !change.Valid() {
		return nil, ActionFailf("unknown power change '%s'", change)
	}
	drv, err := e.drivers.Get(node.PowerType)
	if err != nil {
		return nil, err
	}

	h, admitted, err := e.registry.Admit(node.SystemID, change)
	if err != nil {
		return nil, err
	}
	if !admitted {
		log.Debugf("%s: power change (%s) already in progress, coalescing", node.Hostname, change)
		return h, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.changeTimeout)
	go e.runChange(ctx, cancel, drv, node, change, h)
	return h, nil
}

func (e *Engine) runChange(ctx context.Context, cancel context.CancelFunc, drv driver.Driver, node region.Node, change driver.Change, h *Handle) {
	defer cancel()

	state, err := e.changePowerState(ctx, drv, node, change)
	// The entry must be gone before anyone waiting on the handle can
	// observe the outcome.
	e.registry.Release(node.SystemID)
	if err != nil {
		log.Errorf("%s: Power %s failed: %v", node.Hostname, change, err)
	}
	h.finish(state, err)
}

// changePowerState performs one admitted change: readiness check,
// starting notification, driver invocation and, for queryable
// drivers, a confirming query. All failures are reported as exactly
// one fleet event; the original error propagates to the handle.
func (e *Engine) changePowerState(ctx context.Context, drv driver.Driver, node region.Node, change driver.Change) (driver.State, error) {
	if missing := drv.DetectMissingPackages(); len(missing) > 0 {
		err := ActionFailf("'%s' package(s) are not installed", strings.Join(missing, " "))
		// A missing package is a rack host problem, not a node fault,
		// so the node is not marked broken.
		if rerr := e.reporter.ChangeFailure(ctx, node, change, err.Reason, false); rerr != nil {
			log.Warnf("%s: failed to report readiness failure: %v", node.Hostname, rerr)
		}
		return driver.StateError, err
	}

	if err := e.reporter.ChangeStarting(ctx, node, change); err != nil {
		// A dead context here means the action timed out before the
		// driver was ever invoked. That still owes the fleet its one
		// failure event.
		if ctx.Err() != nil {
			e.reportChangeFailure(node, change, ctx.Err())
		}
		return driver.StateError, err
	}

	if err := e.performDriverChange(ctx, drv, node, change); err != nil {
		e.reportChangeFailure(node, change, err)
		return driver.StateError, err
	}

	if !drv.Queryable() {
		// Nothing to confirm; the driver call's success is all there
		// is.
		return driver.StateUnknown, nil
	}

	state, err := drv.Query(ctx, node.SystemID, node.Context)
	if err != nil {
		e.reportChangeFailure(node, change, err)
		return driver.StateError, err
	}
	if state == change.TargetState() || state == driver.StateUnknown {
		if err := e.reporter.ChangeSuccess(ctx, node, change); err != nil {
			return state, err
		}
		e.record(node.SystemID, node.PowerState, change.TargetState())
	}
	return state, nil
}

func (e *Engine) performDriverChange(ctx context.Context, drv driver.Driver, node region.Node, change driver.Change) error {
	switch change {
	case driver.ChangeOn:
		return drv.On(ctx, node.SystemID, node.Context)
	case driver.ChangeOff:
		return drv.Off(ctx, node.SystemID, node.Context)
	default:
		return drv.Cycle(ctx, node.SystemID, node.Context)
	}
}

// reportChangeFailure emits the single failure event for a driver (or
// timeout) failure and marks the node broken. It uses a fresh context
// because the action's own context may already be dead, often the
// very reason the action failed.
func (e *Engine) reportChangeFailure(node region.Node, change driver.Change, err error) {
	var message string
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Infof("%s: Power could not be set to %s; timed out.", node.Hostname, change)
		message = "Timed out"
	} else {
		message = fmt.Sprintf("Power %s for the node failed: %s", change, driver.ErrorMessage(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	if rerr := e.reporter.ChangeFailure(ctx, node, change, message, true); rerr != nil {
		log.Warnf("%s: failed to report power failure: %v", node.Hostname, rerr)
	}
}
