package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/i2-open/goSsfTransmitter/internal/metrics"
	"github.com/i2-open/goSsfTransmitter/internal/model"
	"go.uber.org/zap"
)

type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunStopped   RunState = "stopped"
)

// Summary counts the items that were pending when the run started.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	State     RunState
}

// Sent is the number of items that reached a final status.
func (s Summary) Sent() int {
	return s.Succeeded + s.Failed
}

// Progress is passed to the observer on every state change. Item is a snapshot.
type Progress struct {
	Index  int
	Item   model.WorkItem
	Record *model.TransmissionRecord
	Err    error
	State  RunState
}

type Observer func(Progress)

// DelayFunc returns the pause to take after the item at index.
type DelayFunc func(index int) time.Duration

func ConstantDelay(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

/*
Run executes its items strictly in order, one at a time. Stop is cooperative: it is checked before each item
and around each delay. An item that is already sending always finishes, and its record is kept.
*/
type Run struct {
	d        *Dispatcher
	delay    DelayFunc
	observer Observer

	mu    sync.Mutex
	items []*model.WorkItem
	state RunState

	stopCh   chan struct{}
	stopOnce sync.Once
}

func (d *Dispatcher) NewRun(items []*model.WorkItem, delay DelayFunc, observer Observer) *Run {
	if delay == nil {
		delay = ConstantDelay(0)
	}
	return &Run{
		d:        d,
		delay:    delay,
		observer: observer,
		items:    items,
		state:    RunIdle,
		stopCh:   make(chan struct{}),
	}
}

// Stop requests cancellation. Safe to call from any goroutine, any number of times.
func (r *Run) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Items returns a snapshot of the work items and their current status.
func (r *Run) Items() []model.WorkItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.WorkItem, len(r.items))
	for i, item := range r.items {
		out[i] = *item
	}
	return out
}

// Execute runs the items until all pending ones are done or a stop is requested. It may be called once.
func (r *Run) Execute(ctx context.Context) Summary {
	r.mu.Lock()
	var pending []int
	for i, item := range r.items {
		if item.Status == model.ItemPending {
			pending = append(pending, i)
		}
	}
	r.state = RunRunning
	r.mu.Unlock()

	summary := Summary{Total: len(pending)}
	r.d.logger.Debug("run started", zap.Int("pending", len(pending)), zap.Int("items", len(r.items)))

	interrupted := false
	for n, idx := range pending {
		if r.stopRequested(ctx) {
			interrupted = true
			break
		}

		r.setStatus(idx, model.ItemSending, "")
		r.notify(idx, nil, nil)

		record, err := r.d.SendOne(ctx, r.items[idx].Selection)
		if err != nil {
			summary.Failed++
			r.setStatus(idx, model.ItemError, err.Error())
			metrics.DispatchItems.WithLabelValues(string(model.ItemError)).Inc()
			r.d.logger.Warn("work item failed",
				zap.String("item", r.items[idx].Id),
				zap.String("provider", r.items[idx].ProviderId),
				zap.String("event", r.items[idx].EventId),
				zap.Error(err))
		} else {
			summary.Succeeded++
			r.setStatus(idx, model.ItemSuccess, "")
			metrics.DispatchItems.WithLabelValues(string(model.ItemSuccess)).Inc()
		}
		r.notify(idx, record, err)

		if n == len(pending)-1 {
			break
		}
		if r.stopRequested(ctx) {
			interrupted = true
			break
		}
		if !r.wait(ctx, r.delay(idx)) || r.stopRequested(ctx) {
			interrupted = true
			break
		}
	}

	final := RunCompleted
	if interrupted {
		final = RunStopped
		metrics.DispatchItems.WithLabelValues("skipped").Add(float64(summary.Total - summary.Succeeded - summary.Failed))
	}
	r.mu.Lock()
	r.state = final
	r.mu.Unlock()
	summary.State = final

	if r.observer != nil {
		r.observer(Progress{Index: -1, State: final})
	}
	r.d.logger.Info("run finished",
		zap.String("state", string(final)),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary
}

func (r *Run) stopRequested(ctx context.Context) bool {
	select {
	case <-r.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// wait pauses for d. It returns false when interrupted by Stop or ctx.
func (r *Run) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (r *Run) setStatus(idx int, status model.ItemStatus, errMsg string) {
	r.mu.Lock()
	r.items[idx].Status = status
	r.items[idx].Error = errMsg
	r.mu.Unlock()
}

func (r *Run) notify(idx int, record *model.TransmissionRecord, err error) {
	if r.observer == nil {
		return
	}
	r.mu.Lock()
	item := *r.items[idx]
	r.mu.Unlock()
	r.observer(Progress{Index: idx, Item: item, Record: record, Err: err, State: RunRunning})
}
