package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeIngest runs the result-ingestion pipeline.
	ServiceModeIngest ServiceMode = "ingest"
	// ServiceModeReconciler runs the liveness reconciler.
	ServiceModeReconciler ServiceMode = "reconciler"
	// ServiceModeOutbox runs the outbox relay.
	ServiceModeOutbox ServiceMode = "outbox"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeIngest,
		ServiceModeReconciler,
		ServiceModeOutbox,
	}
}

// ParseServices parses a comma-delimited string of service names and returns
// the enabled set. Unknown names are an error, not a silent skip.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)
	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		mode := ServiceMode(name)
		switch mode {
		case ServiceModeHTTP, ServiceModeIngest, ServiceModeReconciler, ServiceModeOutbox:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, ingest, reconciler, outbox)",
				name,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	return services, nil
}

// IngestConfig contains result-ingestion pipeline configuration.
type IngestConfig struct {
	// Concurrency is the number of consumer goroutines.
	Concurrency int `env:"INGEST_CONCURRENCY" envDefault:"4"`

	// PollInterval is the idle wait between dequeue attempts.
	PollInterval time.Duration `env:"INGEST_POLL_INTERVAL" envDefault:"1s"`

	// MaxAttempts is the per-message attempt ceiling before dead-lettering.
	MaxAttempts int `env:"INGEST_MAX_ATTEMPTS" envDefault:"5"`

	// RetryBackoff is the base delay for exponential retry backoff.
	RetryBackoff time.Duration `env:"INGEST_RETRY_BACKOFF" envDefault:"5s"`

	// Visibility is how long a dequeued message stays leased.
	Visibility time.Duration `env:"INGEST_VISIBILITY" envDefault:"2m"`

	// SweepInterval is how often lapsed leases are reclaimed.
	SweepInterval time.Duration `env:"INGEST_SWEEP_INTERVAL" envDefault:"30s"`
}

// Sanitize applies guardrails to ingest configuration values.
func (i *IngestConfig) Sanitize() {
	if i.Concurrency < 1 {
		i.Concurrency = 1
	}
	if i.MaxAttempts < 1 {
		i.MaxAttempts = 1
	}
	if i.PollInterval < 100*time.Millisecond {
		i.PollInterval = 100 * time.Millisecond
	}
	if i.Visibility < 10*time.Second {
		i.Visibility = 10 * time.Second
	}
	if i.SweepInterval < time.Second {
		i.SweepInterval = time.Second
	}
}

// ReconcilerConfig contains liveness reconciler configuration.
type ReconcilerConfig struct {
	// Interval is the sweep interval.
	Interval time.Duration `env:"RECONCILER_INTERVAL" envDefault:"30s"`

	// WorkerTTL is how long a worker may stay silent before it is expired
	// and its jobs released. Must comfortably exceed the worker heartbeat
	// period.
	WorkerTTL time.Duration `env:"RECONCILER_WORKER_TTL" envDefault:"2m"`

	// MaxRecycles is the retry ceiling for failed-job recycling; failed
	// jobs return to pending while retry_count is below it. 0 disables
	// recycling.
	MaxRecycles int `env:"RECONCILER_MAX_RECYCLES" envDefault:"3"`
}

// Sanitize applies guardrails to reconciler configuration values.
func (r *ReconcilerConfig) Sanitize() {
	if r.Interval < 5*time.Second {
		r.Interval = 5 * time.Second
	}
	if r.WorkerTTL < 30*time.Second {
		r.WorkerTTL = 30 * time.Second
	}
	if r.MaxRecycles < 0 {
		r.MaxRecycles = 0
	}
}

// OutboxConfig contains outbox relay configuration.
type OutboxConfig struct {
	// Interval is the drain interval.
	Interval time.Duration `env:"OUTBOX_INTERVAL" envDefault:"5s"`

	// BatchSize is the number of entries drained per pass.
	BatchSize int `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`

	// MaxAttempts is the publish attempt ceiling before an entry is parked
	// in error status.
	MaxAttempts int `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`

	// Topic is the pub/sub channel for job-completed events.
	Topic string `env:"OUTBOX_TOPIC" envDefault:"jobs.completed"`
}

// Sanitize applies guardrails to outbox configuration values.
func (o *OutboxConfig) Sanitize() {
	if o.Interval < time.Second {
		o.Interval = time.Second
	}
	if o.BatchSize < 1 {
		o.BatchSize = 1
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if strings.TrimSpace(o.Topic) == "" {
		o.Topic = "jobs.completed"
	}
}

// DataSyncConfig contains console data-sync forwarder configuration.
type DataSyncConfig struct {
	// Endpoint is the console ingest URL. Empty disables forwarding and the
	// pipeline uses the no-op implementation.
	Endpoint string `env:"DATASYNC_ENDPOINT" envDefault:""`

	// Token is the bearer credential sent with each request.
	Token string `env:"DATASYNC_TOKEN" envDefault:""`

	// Timeout bounds each forward request.
	Timeout time.Duration `env:"DATASYNC_TIMEOUT" envDefault:"15s"`
}
