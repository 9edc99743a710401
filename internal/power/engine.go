package power

import (
	"time"

	"github.com/sirupsen/logrus"

	"RackPower/internal/driver"
	"RackPower/internal/recorder"
	"RackPower/internal/region"
)

var log = logrus.WithField("component", "power")

const (
	// DefaultChangeTimeout bounds one admitted power change. It is a
	// backstop against BMCs that neither answer nor fail.
	DefaultChangeTimeout = 5 * time.Minute

	// DefaultMaxConcurrentQueries bounds how many nodes one
	// reconciliation sweep polls in parallel.
	DefaultMaxConcurrentQueries = 5
)

// DefaultRetryPolicy is the wait sequence between power query
// attempts. A query is tried once more than there are entries.
var DefaultRetryPolicy = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	2 * time.Second,
	4 * time.Second,
	6 * time.Second,
	8 * time.Second,
	12 * time.Second,
}

// Options tune an Engine; zero values select the defaults above.
type Options struct {
	ChangeTimeout        time.Duration
	RetryPolicy          []time.Duration
	MaxConcurrentQueries int
	Recorder             recorder.Recorder
}

// Engine is the power-action concurrency and retry core: it serializes
// state changes per node, retries flaky queries, reconciles the fleet
// and reports transitions to the region. One Engine instance owns the
// action registry; all mutation goes through it.
type Engine struct {
	drivers  *driver.Registry
	reporter *Reporter
	registry *ActionRegistry
	recorder recorder.Recorder

	changeTimeout time.Duration
	retryPolicy   []time.Duration
	maxConcurrent int
}

func NewEngine(drivers *driver.Registry, client region.Client, opts Options) *Engine {
	e := &Engine{
		drivers:       drivers,
		reporter:      NewReporter(client),
		registry:      NewActionRegistry(),
		recorder:      opts.Recorder,
		changeTimeout: opts.ChangeTimeout,
		retryPolicy:   opts.RetryPolicy,
		maxConcurrent: opts.MaxConcurrentQueries,
	}
	if e.changeTimeout <= 0 {
		e.changeTimeout = DefaultChangeTimeout
	}
	if e.retryPolicy == nil {
		e.retryPolicy = DefaultRetryPolicy
	}
	if e.maxConcurrent <= 0 {
		e.maxConcurrent = DefaultMaxConcurrentQueries
	}
	return e
}

// Registry exposes the action registry for callers that need to ask
// whether a node is busy.
func (e *Engine) Registry() *ActionRegistry { return e.registry }

func (e *Engine) record(systemID string, oldState, newState driver.State) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(time.Now(), systemID, oldState, newState); err != nil {
		log.Warnf("Failed to record state change for %s: %v", systemID, err)
	}
}
