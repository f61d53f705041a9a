package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/i2-open/goSsfTransmitter/internal/model"
)

// Queue is the bulk sender: items are added, reviewed and then sent in order with a fixed delay.
type Queue struct {
	d *Dispatcher

	mu    sync.Mutex
	items []*model.WorkItem
	run   *Run
}

func NewQueue(d *Dispatcher) *Queue {
	return &Queue{d: d}
}

func (q *Queue) Add(sel model.Selection) (model.WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.run != nil {
		return model.WorkItem{}, ErrBusy
	}
	item := model.NewWorkItem(sel)
	q.items = append(q.items, item)
	return *item, nil
}

// AddFake queues count copies of sel, each with a random subject email.
func (q *Queue) AddFake(sel model.Selection, count int) ([]model.WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.run != nil {
		return nil, ErrBusy
	}
	added := make([]model.WorkItem, 0, count)
	for i := 0; i < count; i++ {
		fake := sel
		fake.Email = gofakeit.Email()
		item := model.NewWorkItem(fake)
		q.items = append(q.items, item)
		added = append(added, *item)
	}
	return added, nil
}

// Remove drops a pending item.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.run != nil {
		return ErrBusy
	}
	for i, item := range q.items {
		if item.Id != id {
			continue
		}
		if item.Status != model.ItemPending {
			return fmt.Errorf("item %s is %s; only pending items can be removed", id, item.Status)
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return nil
	}
	return fmt.Errorf("no queued item %s", id)
}

func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.run != nil {
		return ErrBusy
	}
	q.items = nil
	return nil
}

func (q *Queue) Items() []model.WorkItem {
	q.mu.Lock()
	run := q.run
	if run == nil {
		defer q.mu.Unlock()
		out := make([]model.WorkItem, len(q.items))
		for i, item := range q.items {
			out[i] = *item
		}
		return out
	}
	q.mu.Unlock()
	return run.Items()
}

func (q *Queue) PendingCount() int {
	count := 0
	for _, item := range q.Items() {
		if item.Status == model.ItemPending {
			count++
		}
	}
	return count
}

// Send runs every pending item. Items that finished in an earlier Send are skipped.
func (q *Queue) Send(ctx context.Context, delay time.Duration, observer Observer) (Summary, error) {
	q.mu.Lock()
	if q.run != nil {
		q.mu.Unlock()
		return Summary{}, ErrBusy
	}
	items := append([]*model.WorkItem{}, q.items...)
	run := q.d.NewRun(items, ConstantDelay(delay), observer)
	q.run = run
	q.mu.Unlock()

	summary := run.Execute(ctx)

	q.mu.Lock()
	q.run = nil
	q.mu.Unlock()
	return summary, nil
}

// Stop asks an in-progress Send to finish after the current item.
func (q *Queue) Stop() {
	q.mu.Lock()
	run := q.run
	q.mu.Unlock()
	if run != nil {
		run.Stop()
	}
}

func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.run != nil
}
