package power

import (
	"context"
	"sync"

	"RackPower/internal/driver"
	"RackPower/internal/region"
)

// fakeDriver scripts driver behavior per test case.
type fakeDriver struct {
	name      string
	queryable bool
	missing   []string

	onErr    error
	offErr   error
	cycleErr error

	mu         sync.Mutex
	queries    int
	queryFn    func(attempt int) (driver.State, error)
	onCalls    int
	offCalls   int
	cycleCalls int
}

func (d *fakeDriver) Name() string {
	if d.name == "" {
		return "fake"
	}
	return d.name
}

func (d *fakeDriver) Queryable() bool { return d.queryable }

func (d *fakeDriver) DetectMissingPackages() []string { return d.missing }

func (d *fakeDriver) On(ctx context.Context, systemID string, pctx map[string]string) error {
	d.mu.Lock()
	d.onCalls++
	d.mu.Unlock()
	return d.onErr
}

func (d *fakeDriver) Off(ctx context.Context, systemID string, pctx map[string]string) error {
	d.mu.Lock()
	d.offCalls++
	d.mu.Unlock()
	return d.offErr
}

func (d *fakeDriver) Cycle(ctx context.Context, systemID string, pctx map[string]string) error {
	d.mu.Lock()
	d.cycleCalls++
	d.mu.Unlock()
	return d.cycleErr
}

func (d *fakeDriver) Query(ctx context.Context, systemID string, pctx map[string]string) (driver.State, error) {
	d.mu.Lock()
	attempt := d.queries
	d.queries++
	fn := d.queryFn
	d.mu.Unlock()
	if fn == nil {
		return driver.StateOn, nil
	}
	return fn(attempt)
}

func (d *fakeDriver) queryCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queries
}

// fakeRegion records every region call for later inspection.
type fakeRegion struct {
	mu sync.Mutex

	updates []stateUpdate
	failed  []markFailed
	events  []sentEvent

	updateErr error
	eventErr  error
	failedErr error
}

type stateUpdate struct {
	systemID string
	state    driver.State
}

type markFailed struct {
	systemID    string
	description string
}

type sentEvent struct {
	eventType   string
	systemID    string
	description string
}

func (r *fakeRegion) UpdateNodePowerState(ctx context.Context, systemID string, state driver.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updates = append(r.updates, stateUpdate{systemID, state})
	return nil
}

func (r *fakeRegion) MarkNodeFailed(ctx context.Context, systemID, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failedErr != nil {
		return r.failedErr
	}
	r.failed = append(r.failed, markFailed{systemID, description})
	return nil
}

func (r *fakeRegion) SendEvent(ctx context.Context, eventType, systemID, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.eventErr != nil {
		return r.eventErr
	}
	r.events = append(r.events, sentEvent{eventType, systemID, description})
	return nil
}

func (r *fakeRegion) ListNodes(ctx context.Context) ([]region.Node, error) {
	return nil, nil
}

func (r *fakeRegion) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.eventType
	}
	return types
}

func (r *fakeRegion) lastUpdate() (stateUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return stateUpdate{}, false
	}
	return r.updates[len(r.updates)-1], true
}

func newTestEngine(drv driver.Driver, client region.Client, opts Options) *Engine {
	reg := driver.NewRegistry()
	if drv != nil {
		if err := reg.Register(drv); err != nil {
			panic(err)
		}
	}
	return NewEngine(reg, client, opts)
}

func testNode(systemID string) region.Node {
	return region.Node{
		SystemID:   systemID,
		Hostname:   systemID,
		PowerType:  "fake",
		Context:    map[string]string{"power_address": "10.0.0.1"},
		PowerState: driver.StateOff,
	}
}
