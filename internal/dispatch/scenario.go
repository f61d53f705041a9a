package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/i2-open/goSsfTransmitter/internal/catalog"
	"github.com/i2-open/goSsfTransmitter/internal/model"
)

// Execution is the observable progress of a scenario run.
type Execution struct {
	ScenarioId  string
	CurrentStep int
	Steps       []model.ItemStatus
	Running     bool
}

type ScenarioRunner struct {
	d *Dispatcher

	mu   sync.Mutex
	run  *Run
	exec Execution
}

func NewScenarioRunner(d *Dispatcher) *ScenarioRunner {
	return &ScenarioRunner{d: d}
}

// StepDelay pauses delay after steps that propagate, never after the last step.
func StepDelay(steps []catalog.Step, delay time.Duration) DelayFunc {
	return func(index int) time.Duration {
		if index < 0 || index >= len(steps)-1 || !steps[index].Propagate {
			return 0
		}
		return delay
	}
}

// Run sends each step of scenario in order. email overrides the configured subject when not empty.
func (s *ScenarioRunner) Run(ctx context.Context, scenario catalog.Scenario, email string, delay time.Duration, observer Observer) (Summary, error) {
	items := make([]*model.WorkItem, len(scenario.Steps))
	for i, step := range scenario.Steps {
		items[i] = model.NewWorkItem(model.Selection{
			ProviderId: step.ProviderID,
			EventId:    step.EventID,
			Risk:       step.Risk,
			Email:      email,
		})
	}

	s.mu.Lock()
	if s.run != nil {
		s.mu.Unlock()
		return Summary{}, ErrBusy
	}
	steps := make([]model.ItemStatus, len(items))
	for i := range steps {
		steps[i] = model.ItemPending
	}
	s.exec = Execution{ScenarioId: scenario.ID, Steps: steps, Running: true}
	run := s.d.NewRun(items, StepDelay(scenario.Steps, delay), func(p Progress) {
		s.mu.Lock()
		if p.Index >= 0 {
			s.exec.CurrentStep = p.Index
			s.exec.Steps[p.Index] = p.Item.Status
		}
		s.mu.Unlock()
		if observer != nil {
			observer(p)
		}
	})
	s.run = run
	s.mu.Unlock()

	summary := run.Execute(ctx)

	s.mu.Lock()
	s.exec.Running = false
	s.run = nil
	s.mu.Unlock()
	return summary, nil
}

func (s *ScenarioRunner) Stop() {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	if run != nil {
		run.Stop()
	}
}

func (s *ScenarioRunner) Execution() Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec := s.exec
	exec.Steps = append([]model.ItemStatus{}, s.exec.Steps...)
	return exec
}
