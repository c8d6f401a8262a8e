// Package telemetry traces homing runs. Every search move becomes a span that
// closes when the queue drains, nested under a span for the whole run.
package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"homefw/standalone"
	"homefw/standalone/homing"
)

const (
	MoveSpanName     = "homing.move"
	DrainSpanName    = "homing.drain"
	ResetEventName   = "homing.reset_frame"
	BypassEventName  = "homing.bypass"
	MaskKey          = "homing.mask"
	StopOnTriggerKey = "homing.stop_on_trigger"
	FeedKey          = "homing.feed"
	TriggeredKey     = "homing.triggered"
	BypassKey        = "homing.bypass"
	PendingKey       = "homing.pending"
)

var axisKeys = [standalone.NumAxes]attribute.Key{
	"homing.target.x", "homing.target.y", "homing.target.z", "homing.target.e",
}

// triggerReporter is implemented by queues that know whether the last move
// ended on its endstop condition
type triggerReporter interface {
	LastMoveTriggered() bool
}

// TracedQueue records spans for the moves passing through a motion queue
type TracedQueue struct {
	inner  homing.MotionQueue
	tracer trace.Tracer
	ctx    context.Context
	open   []trace.Span
}

type tracedDeltaQueue struct {
	*TracedQueue
	bypass homing.KinematicsBypass
}

// Wrap returns a traced queue. The result implements homing.DeltaQueue
// exactly when inner does.
func Wrap(inner homing.MotionQueue, tracer trace.Tracer) homing.MotionQueue {
	q := newTracedQueue(inner, tracer)
	if bypass, ok := inner.(homing.KinematicsBypass); ok {
		return &tracedDeltaQueue{TracedQueue: q, bypass: bypass}
	}
	return q
}

func newTracedQueue(inner homing.MotionQueue, tracer trace.Tracer) *TracedQueue {
	return &TracedQueue{inner: inner, tracer: tracer, ctx: context.Background()}
}

// Run executes fn inside a root span named name. Moves queued while fn runs
// become its children.
func Run(ctx context.Context, queue homing.MotionQueue, name string, fn func() error) error {
	q := unwrap(queue)
	if q == nil {
		return fn()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	spanCtx, span := q.tracer.Start(ctx, name)
	prev := q.ctx
	q.ctx = spanCtx
	defer func() {
		q.ctx = prev
		span.End()
	}()

	err := fn()
	q.endOpen(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	return err
}

func unwrap(queue homing.MotionQueue) *TracedQueue {
	switch q := queue.(type) {
	case *TracedQueue:
		return q
	case *tracedDeltaQueue:
		return q.TracedQueue
	}
	return nil
}

// EnqueueSearchMove opens a move span and forwards the move
func (q *TracedQueue) EnqueueSearchMove(t standalone.AxisTarget, mask standalone.EndstopMask, stopOnTrigger bool) error {
	attrs := []attribute.KeyValue{
		attribute.Int(MaskKey, int(mask)),
		attribute.Bool(StopOnTriggerKey, stopOnTrigger),
		attribute.Int64(FeedKey, int64(t.F)),
	}
	for a, key := range axisKeys {
		attrs = append(attrs, key.Int64(int64(t.Axis[a])))
	}
	_, span := q.tracer.Start(q.ctx, MoveSpanName, trace.WithAttributes(attrs...))

	if err := q.inner.EnqueueSearchMove(t, mask, stopOnTrigger); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		span.End()
		return err
	}
	q.open = append(q.open, span)
	return nil
}

// WaitForDrain traces the wait and closes the spans of the drained moves
func (q *TracedQueue) WaitForDrain() error {
	_, span := q.tracer.Start(q.ctx, DrainSpanName, trace.WithAttributes(
		attribute.Int(PendingKey, len(q.open)),
	))
	defer span.End()

	err := q.inner.WaitForDrain()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	q.endOpen(err)
	return err
}

// endOpen ends the pending move spans. Only the newest move can carry the
// trigger flag.
func (q *TracedQueue) endOpen(err error) {
	if len(q.open) == 0 {
		return
	}
	last := q.open[len(q.open)-1]
	if tr, ok := q.inner.(triggerReporter); ok && err == nil {
		last.SetAttributes(attribute.Bool(TriggeredKey, tr.LastMoveTriggered()))
	}
	for _, span := range q.open {
		if err != nil {
			span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		}
		span.End()
	}
	q.open = q.open[:0]
}

// ResetReferenceFrame records an event on the run span and forwards the reset
func (q *TracedQueue) ResetReferenceFrame() {
	trace.SpanFromContext(q.ctx).AddEvent(ResetEventName)
	q.inner.ResetReferenceFrame()
}

// SetBypassKinematics records the change and forwards it
func (q *tracedDeltaQueue) SetBypassKinematics(bypass bool) {
	trace.SpanFromContext(q.ctx).AddEvent(BypassEventName, trace.WithAttributes(
		attribute.Bool(BypassKey, bypass),
	))
	q.bypass.SetBypassKinematics(bypass)
}
