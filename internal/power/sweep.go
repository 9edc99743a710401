package power

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"RackPower/internal/driver"
	"RackPower/internal/region"
)

// NodeResult is the per-node outcome of a reconciliation sweep.
type NodeResult struct {
	SystemID string
	Hostname string
	State    driver.State
	Skipped  bool
	Err      error
}

// Reconcile queries the power state of every given node with bounded
// concurrency and reports changes to the region. Nodes with an action
// in flight, an unknown power type or a non-queryable driver are
// skipped. One node failing never stops the others; nodes the region
// no longer knows are dropped quietly.
func (e *Engine) Reconcile(ctx context.Context, nodes []region.Node) []NodeResult {
	results := make([]NodeResult, len(nodes))
	sem := make(chan struct{}, e.maxConcurrent)
	var wg sync.WaitGroup

	for i, node := range nodes {
		results[i] = NodeResult{SystemID: node.SystemID, Hostname: node.Hostname}

		if e.registry.InProgress(node.SystemID) {
			log.Debugf("%s: power action in progress, skipping query", node.Hostname)
			results[i].Skipped = true
			continue
		}
		drv, err := e.drivers.Get(node.PowerType)
		if err != nil || !drv.Queryable() {
			results[i].Skipped = true
			continue
		}

		wg.Add(1)
		go func(i int, node region.Node) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i].State, results[i].Err = e.reconcileNode(ctx, node)
		}(i, node)
	}
	wg.Wait()
	return results
}

func (e *Engine) reconcileNode(ctx context.Context, node region.Node) (driver.State, error) {
	state, err := e.GetPowerState(ctx, node)
	if err != nil {
		var fail *ActionFailError
		var derr *driver.Error
		if errors.As(err, &fail) || errors.As(err, &derr) {
			log.Warnf("%s: Could not query power state: %v", node.Hostname, err)
		} else {
			log.Errorf("%s: Failed to query power state: %v", node.Hostname, err)
		}
		message := fmt.Sprintf("Power state could not be queried: %s", err)
		if rerr := e.reporter.QueryFailure(ctx, node, message); rerr != nil {
			if isNoSuchNode(rerr) {
				log.Debugf("%s: node no longer known to region", node.Hostname)
				return driver.StateError, nil
			}
			return driver.StateError, rerr
		}
		return driver.StateError, err
	}

	// Only report when the state moved; unknown and error states are
	// always pushed so the region never sits on a stale reading.
	if state != node.PowerState || state == driver.StateUnknown {
		log.Infof("%s: Power state has changed from %s to %s.", node.Hostname, node.PowerState, state)
		if rerr := e.reporter.QuerySuccess(ctx, node, state); rerr != nil {
			if isNoSuchNode(rerr) {
				log.Debugf("%s: node no longer known to region", node.Hostname)
				return state, nil
			}
			return state, rerr
		}
		e.record(node.SystemID, node.PowerState, state)
	}
	return state, nil
}

func isNoSuchNode(err error) bool {
	var nsn *region.NoSuchNodeError
	return errors.As(err, &nsn)
}
