package adapter

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nabdio/nabd-go/nabd"
)

// InstrumentedQueue wraps a queue handle with OpenTelemetry counters
// and spans. Only the metric/trace API is used; the caller supplies
// whatever SDK backs the meter and tracer.
type InstrumentedQueue struct {
	q      *nabd.Queue
	tracer trace.Tracer

	pushes  metric.Int64Counter
	pops    metric.Int64Counter
	rejects metric.Int64Counter
}

// Instrument builds an instrumented wrapper around q.
func Instrument(q *nabd.Queue, meter metric.Meter, tracer trace.Tracer) (*InstrumentedQueue, error) {
	pushes, err := meter.Int64Counter("nabd.queue.pushes",
		metric.WithDescription("Messages published to the queue."))
	if err != nil {
		return nil, err
	}
	pops, err := meter.Int64Counter("nabd.queue.pops",
		metric.WithDescription("Messages consumed from the queue."))
	if err != nil {
		return nil, err
	}
	rejects, err := meter.Int64Counter("nabd.queue.rejects",
		metric.WithDescription("Pushes rejected because the queue was full."))
	if err != nil {
		return nil, err
	}
	return &InstrumentedQueue{
		q:       q,
		tracer:  tracer,
		pushes:  pushes,
		pops:    pops,
		rejects: rejects,
	}, nil
}

// Queue returns the underlying handle.
func (iq *InstrumentedQueue) Queue() *nabd.Queue { return iq.q }

// Push publishes a message, counting successes and full rejections.
func (iq *InstrumentedQueue) Push(ctx context.Context, data []byte) error {
	err := iq.q.Push(data)
	switch nabd.Code(err) {
	case 0:
		iq.pushes.Add(ctx, 1)
	case nabd.ErrFull:
		iq.rejects.Add(ctx, 1)
	}
	return err
}

// Pop consumes a message, counting successes.
func (iq *InstrumentedQueue) Pop(ctx context.Context, buf []byte) (int, error) {
	n, err := iq.q.Pop(buf)
	if err == nil {
		iq.pops.Add(ctx, 1)
	}
	return n, err
}

// Recover runs a recovery over the named region inside a span.
func (iq *InstrumentedQueue) Recover(ctx context.Context, force bool) error {
	_, span := iq.tracer.Start(ctx, "nabd.recover")
	defer span.End()
	return nabd.Recover(iq.q.Name(), force)
}

// Resume restores a consumer from a checkpoint inside a span.
func (iq *InstrumentedQueue) Resume(ctx context.Context, ckpt *nabd.Checkpoint) (*nabd.Consumer, error) {
	_, span := iq.tracer.Start(ctx, "nabd.consumer_resume")
	defer span.End()
	return iq.q.ConsumerResume(ckpt)
}
