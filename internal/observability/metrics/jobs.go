// Package metrics standardizes metric names and tags across the job
// lifecycle, the ingestion pipeline, the reconciler, and the outbox relay.
package metrics

import (
	"time"

	obserrors "github.com/surfaceops/surface-api/internal/observability/errors"
	"github.com/surfaceops/surface-api/internal/observability/statsd"
)

// Result constants used as tag values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobTransition describes one lifecycle event for metric emission.
type JobTransition struct {
	Category   string
	Transition string // claim, complete, fail, cancel, rerun, recycle
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobTransition emits a counter per lifecycle event and a timing when a
// duration is known.
func EmitJobTransition(sink statsd.Sink, in JobTransition) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"category":   in.Category,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, tags)
	}
}

// EmitIngest records one pass through the result-ingestion pipeline.
func EmitIngest(sink statsd.Sink, category, outcome string, attempt int, dur time.Duration) {
	if sink == nil {
		return
	}
	tags := map[string]string{"category": category, "outcome": outcome}
	sink.Count("ingest.message", 1, tags)
	if attempt > 0 {
		sink.Gauge("ingest.attempt", float64(attempt), tags)
	}
	if dur > 0 {
		sink.Timing("ingest.duration", dur, tags)
	}
}

// EmitReconcile records the effect of one reconciler sweep step.
func EmitReconcile(sink statsd.Sink, step string, affected int64, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"step": step, "result": ResultSuccess}
	if err != nil {
		tags["result"] = ResultError
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("reconcile.sweep", 1, tags)
	if affected > 0 {
		sink.Count("reconcile.affected", affected, map[string]string{"step": step})
	}
}

// EmitOutbox records one relay publication attempt.
func EmitOutbox(sink statsd.Sink, result string, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("outbox.publish", 1, tags)
}
