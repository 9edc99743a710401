package rpowerd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"RackPower/internal/power"
	"RackPower/internal/region"
)

// Sweeper periodically lists the rack's nodes from the region and
// reconciles their power state through the engine.
type Sweeper struct {
	engine   *power.Engine
	region   region.Client
	interval time.Duration
	onNodes  func([]region.Node)

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewSweeper(engine *power.Engine, client region.Client, interval time.Duration, onNodes func([]region.Node)) *Sweeper {
	return &Sweeper{
		engine:   engine,
		region:   client,
		interval: interval,
		onNodes:  onNodes,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.loop()
}

func (s *Sweeper) Stop() {
	close(s.stopChan)
	<-s.doneChan
}

func (s *Sweeper) loop() {
	defer close(s.doneChan)

	// First sweep right away so the daemon starts with fresh state.
	s.sweepOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.stopChan:
			log.Info("Power state sweeper stopped.")
			return
		}
	}
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	nodes, err := s.region.ListNodes(ctx)
	if err != nil {
		log.Warnf("Sweep skipped, failed to list nodes: %v", err)
		return
	}
	if s.onNodes != nil {
		s.onNodes(nodes)
	}

	results := s.engine.Reconcile(ctx, nodes)

	var queried, skipped, failed int
	for _, res := range results {
		switch {
		case res.Skipped:
			skipped++
		case res.Err != nil:
			failed++
		default:
			queried++
		}
	}
	log.Infof("Sweep finished: %d nodes, %d queried, %d skipped, %d failed",
		len(results), queried, skipped, failed)
}
