package power

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"RackPower/internal/driver"
	"RackPower/internal/region"
)

func TestMaybeChangePowerStateSuccess(t *testing.T) {
	t.Parallel()

	drv := &fakeDriver{queryable: true, queryFn: func(int) (driver.State, error) {
		return driver.StateOn, nil
	}}
	rgn := &fakeRegion{}
	e := newTestEngine(drv, rgn, Options{})
	node := testNode("node-1")

	h, err := e.MaybeChangePowerState(node, driver.ChangeOn)
	if err != nil {
		t.Fatal(err)
	}
	state, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("action failed: %v", err)
	}
	if state != driver.StateOn {
		t.Errorf("state = %s, want on", state)
	}

	want := []string{region.EventPowerOnStarting, region.EventPoweredOn}
	got := rgn.eventTypes()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
	if up, ok := rgn.lastUpdate(); !ok || up.state != driver.StateOn {
		t.Errorf("power state update = %+v, want on", up)
	}
	if e.Registry().InProgress("node-1") {
		t.Error("registry entry survived the action")
	}
}

func TestMaybeChangePowerStateCoalesces(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	drv := &fakeDriver{queryable: true, queryFn: func(int) (driver.State, error) {
		<-release
		return driver.StateOn, nil
	}}
	rgn := &fakeRegion{}
	e := newTestEngine(drv, rgn, Options{})
	node := testNode("node-1")

	h1, err := e.MaybeChangePowerState(node, driver.ChangeOn)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := e.MaybeChangePowerState(node, driver.ChangeOn)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Error("identical requests did not share a handle")
	}

	// A conflicting change is refused while the first is in flight.
	_, err = e.MaybeChangePowerState(node, driver.ChangeOff)
	var conflict *ActionInProgressError
	if !errors.As(err, &conflict) {
		t.Fatalf("conflicting request error = %v, want ActionInProgressError", err)
	}

	close(release)
	if _, err := h1.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if drv.onCalls != 1 {
		t.Errorf("driver On called %d times, want 1", drv.onCalls)
	}
}

func TestMaybeChangePowerStateUnknownType(t *testing.T) {
	t.Parallel()

	e := newTestEngine(nil, &fakeRegion{}, Options{})
	node := testNode("node-1")
	node.PowerType = "nonexistent"

	_, err := e.MaybeChangePowerState(node, driver.ChangeOn)
	var unknown *driver.UnknownPowerTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownPowerTypeError", err)
	}
}

func TestChangeReadinessFailureDoesNotMarkBroken(t *testing.T) {
	t.Parallel()

	drv := &fakeDriver{queryable: true, missing: []string{"ipmitool"}}
	rgn := &fakeRegion{}
	e := newTestEngine(drv, rgn, Options{})

	h, err := e.MaybeChangePowerState(testNode("node-1"), driver.ChangeOn)
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.Wait(context.Background())
	var fail *ActionFailError
	if !errors.As(err, &fail) {
		t.Fatalf("err = %v, want ActionFailError", err)
	}
	if !strings.Contains(fail.Reason, "ipmitool") {
		t.Errorf("reason = %q, want mention of the missing package", fail.Reason)
	}

	if len(rgn.failed) != 0 {
		t.Errorf("node marked failed on readiness error: %+v", rgn.failed)
	}
	got := rgn.eventTypes()
	if len(got) != 1 || got[0] != region.EventPowerOnFailed {
		t.Errorf("events = %v, want single power-on failure", got)
	}
	if drv.onCalls != 0 {
		t.Error("driver invoked despite readiness failure")
	}
}

func TestChangeDriverFailureMarksBroken(t *testing.T) {
	t.Parallel()

	drv := &fakeDriver{
		queryable: true,
		onErr:     driver.NewError(driver.KindConnection, "no route to BMC"),
	}
	rgn := &fakeRegion{}
	e := newTestEngine(drv, rgn, Options{})

	h, err := e.MaybeChangePowerState(testNode("node-1"), driver.ChangeOn)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Wait(context.Background()); err == nil {
		t.Fatal("action succeeded, want driver failure")
	}

	if len(rgn.failed) != 1 {
		t.Fatalf("mark-failed calls = %d, want 1", len(rgn.failed))
	}
	if !strings.Contains(rgn.failed[0].description, "Could not contact node's BMC") {
		t.Errorf("failure description = %q", rgn.failed[0].description)
	}
	got := rgn.eventTypes()
	if len(got) != 2 || got[1] != region.EventPowerOnFailed {
		t.Errorf("events = %v, want starting then failure", got)
	}
}

func TestChangeTimeoutReportsOnce(t *testing.T) {
	t.Parallel()

	slow := &ctxBoundDriver{}
	rgn := &fakeRegion{}
	e := newTestEngine(slow, rgn, Options{ChangeTimeout: 50 * time.Millisecond})

	h, err := e.MaybeChangePowerState(testNode("node-1"), driver.ChangeOn)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Wait(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	if len(rgn.failed) != 1 || rgn.failed[0].description != "Timed out" {
		t.Fatalf("mark-failed = %+v, want one 'Timed out'", rgn.failed)
	}
	failures := 0
	for _, ev := range rgn.eventTypes() {
		if ev == region.EventPowerOnFailed {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("failure events = %d, want exactly 1", failures)
	}
	if e.Registry().InProgress("node-1") {
		t.Error("registry entry survived the timeout")
	}
}

func TestChangeTimeoutDuringStartingEventReportsFailure(t *testing.T) {
	t.Parallel()

	drv := &fakeDriver{queryable: true}
	rgn := &stallingRegion{fakeRegion: &fakeRegion{}}
	e := newTestEngine(drv, rgn, Options{ChangeTimeout: 50 * time.Millisecond})

	h, err := e.MaybeChangePowerState(testNode("node-1"), driver.ChangeOn)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Wait(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	if len(rgn.failed) != 1 || rgn.failed[0].description != "Timed out" {
		t.Fatalf("mark-failed = %+v, want one 'Timed out'", rgn.failed)
	}
	drv.mu.Lock()
	onCalls := drv.onCalls
	drv.mu.Unlock()
	if onCalls != 0 {
		t.Errorf("driver invoked %d times after the deadline", onCalls)
	}
	if e.Registry().InProgress("node-1") {
		t.Error("registry entry survived the timeout")
	}
}

func TestChangeNonQueryableSkipsConfirm(t *testing.T) {
	t.Parallel()

	drv := &fakeDriver{queryable: false}
	rgn := &fakeRegion{}
	e := newTestEngine(drv, rgn, Options{})

	h, err := e.MaybeChangePowerState(testNode("node-1"), driver.ChangeOn)
	if err != nil {
		t.Fatal(err)
	}
	state, err := h.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if state != driver.StateUnknown {
		t.Errorf("state = %s, want unknown for a non-queryable driver", state)
	}
	if drv.queryCount() != 0 {
		t.Error("non-queryable driver was queried")
	}
}

func TestChangeInvalidRequest(t *testing.T) {
	t.Parallel()

	e := newTestEngine(&fakeDriver{}, &fakeRegion{}, Options{})

	if _, err := e.MaybeChangePowerState(testNode("node-1"), driver.Change("reboot")); err == nil {
		t.Error("invalid change accepted")
	}
	node := testNode("")
	if _, err := e.MaybeChangePowerState(node, driver.ChangeOn); err == nil {
		t.Error("empty system ID accepted")
	}
}

// stallingRegion hangs the power-on starting event until the action
// context expires, then fails it with the context error.
type stallingRegion struct {
	*fakeRegion
}

func (r *stallingRegion) SendEvent(ctx context.Context, eventType, systemID, description string) error {
	if eventType == region.EventPowerOnStarting {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.fakeRegion.SendEvent(ctx, eventType, systemID, description)
}

// ctxBoundDriver blocks in every operation until the context expires.
type ctxBoundDriver struct{}

func (ctxBoundDriver) Name() string                   { return "fake" }
func (ctxBoundDriver) Queryable() bool                { return true }
func (ctxBoundDriver) DetectMissingPackages() []string { return nil }

func (ctxBoundDriver) On(ctx context.Context, systemID string, pctx map[string]string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (ctxBoundDriver) Off(ctx context.Context, systemID string, pctx map[string]string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (ctxBoundDriver) Cycle(ctx context.Context, systemID string, pctx map[string]string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (ctxBoundDriver) Query(ctx context.Context, systemID string, pctx map[string]string) (driver.State, error) {
	<-ctx.Done()
	return driver.StateError, ctx.Err()
}
