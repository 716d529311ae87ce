// Package monitor periodically sweeps for paused workflow instances that
// are waiting on human input.
package monitor

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/tcmartin/claimflow/pkg/workflow"
)

// PendingMonitor runs on a cron schedule and reports instances that have
// been paused on a human-input step. It only observes; nudging the humans
// is left to whatever reads the log.
type PendingMonitor struct {
	engine     *workflow.Engine
	schedule   string
	humanSteps map[string]bool
	scheduler  *cron.Cron
}

// NewPendingMonitor creates a monitor for the given engine. humanSteps is
// the set of step names that require human input.
func NewPendingMonitor(engine *workflow.Engine, schedule string, humanSteps map[string]bool) *PendingMonitor {
	return &PendingMonitor{
		engine:     engine,
		schedule:   schedule,
		humanSteps: humanSteps,
	}
}

// Start validates the schedule and begins sweeping
func (m *PendingMonitor) Start() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(m.schedule); err != nil {
		return fmt.Errorf("invalid monitor schedule %q: %w", m.schedule, err)
	}

	m.scheduler = cron.New(cron.WithParser(parser))
	if _, err := m.scheduler.AddFunc(m.schedule, m.sweep); err != nil {
		return fmt.Errorf("failed to schedule monitor: %w", err)
	}

	m.scheduler.Start()
	log.Printf("Pending-step monitor started with schedule %q", m.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish
func (m *PendingMonitor) Stop() {
	if m.scheduler == nil {
		return
	}
	ctx := m.scheduler.Stop()
	<-ctx.Done()
}

// sweep logs every instance currently waiting on a human-input step
func (m *PendingMonitor) sweep() {
	pending, err := m.collectPending()
	if err != nil {
		log.Printf("Pending-step sweep failed: %v", err)
		return
	}

	for _, meta := range pending {
		log.Printf("Instance %s (customer %s) waiting on %q since last step by %s",
			meta.InstanceID, meta.CustomerID, meta.LastNode, meta.LastActor)
	}
}

// collectPending returns paused instances sitting on a human-input step
func (m *PendingMonitor) collectPending() ([]*workflow.InstanceMeta, error) {
	metas, err := m.engine.ListInstances(workflow.ListFilters{Status: workflow.StatusPaused})
	if err != nil {
		return nil, err
	}

	pending := make([]*workflow.InstanceMeta, 0, len(metas))
	for _, meta := range metas {
		if m.humanSteps[meta.LastNode] {
			pending = append(pending, meta)
		}
	}
	return pending, nil
}
