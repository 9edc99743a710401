package power

import (
	"context"
	"strings"
	"time"

	"RackPower/internal/driver"
	"RackPower/internal/region"
)

// GetPowerState queries a node's current power state, retrying
// transient failures according to the engine's retry policy. With a
// policy of n waits the driver is asked at most n+1 times; fatal
// driver errors (bad credentials, bad settings, missing tools) and
// context expiry abort the retry loop immediately.
func (e *Engine) GetPowerState(ctx context.Context, node region.Node) (driver.State, error) {
	drv, err := e.drivers.Get(node.PowerType)
	if err != nil {
		return driver.StateError, err
	}
	if !drv.Queryable() {
		return driver.StateError, ActionFailf("power type '%s' does not support querying", node.PowerType)
	}
	if missing := drv.DetectMissingPackages(); len(missing) > 0 {
		return driver.StateError, ActionFailf("'%s' package(s) are not installed", strings.Join(missing, " "))
	}

	var lastErr error
	for attempt := 0; attempt <= len(e.retryPolicy); attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, e.retryPolicy[attempt-1]); err != nil {
				return driver.StateError, err
			}
		}

		state, err := drv.Query(ctx, node.SystemID, node.Context)
		if err != nil {
			if driver.IsFatal(err) || ctx.Err() != nil {
				return driver.StateError, err
			}
			lastErr = err
			continue
		}
		if !state.Valid() {
			lastErr = ActionFailf("invalid power state '%s' reported for node %s", state, node.SystemID)
			continue
		}
		return state, nil
	}
	return driver.StateError, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
