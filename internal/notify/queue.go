package notify

import (
	"context"
	"fmt"

	"github.com/noah-isme/sma-ilp-api/pkg/jobs"
)

// Dispatcher decouples notification emission from the sweeps: Publish only
// enqueues, and queue workers deliver through the wrapped publisher with the
// queue's retry policy. Emission stays fire-and-forget for the caller.
type Dispatcher struct {
	queue *jobs.Queue
}

type publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewDispatcher builds the queue-backed dispatcher. Call Start before
// publishing and Stop on shutdown.
func NewDispatcher(target publisher, cfg jobs.QueueConfig) *Dispatcher {
	d := &Dispatcher{}
	d.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(Event)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return target.Publish(ctx, event)
	}, cfg)
	return d
}

// Start launches the queue workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Publish enqueues the event for asynchronous delivery.
func (d *Dispatcher) Publish(_ context.Context, event Event) error {
	return d.queue.Enqueue(jobs.Job{ID: event.ID, Type: event.Type, Payload: event})
}
