// Package config loads and validates the environment-driven configuration
// for all service modes.
package config

// AppConfig composes domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config files for
// the available variables:
//   - database.go: Postgres and Redis configuration
//   - http.go: HTTP server configuration
//   - services.go: service modes, ingest, reconciler, outbox
//   - blob.go: result blob store configuration
//   - observability.go: metrics configuration
//   - workflows.go: workflow chain declarations
type AppConfig struct {
	// IsDev controls development-mode behavior (text logs, debug level).
	IsDev bool `env:"DEV" envDefault:"false"`

	// Services is a comma-delimited list of enabled service modes.
	// Valid values: http, ingest, reconciler, outbox.
	Services string `env:"SERVICES" envDefault:"http"`

	// CloudAPIKey is the privileged join credential for built-in cloud
	// workers. Empty disables the cloud join path.
	CloudAPIKey string `env:"CLOUD_API_KEY"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP          HTTPConfig
	Ingest        IngestConfig
	Reconciler    ReconcilerConfig
	Outbox        OutboxConfig
	Blob          BlobConfig
	DataSync      DataSyncConfig
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env. Call
// after env parsing, before wiring.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Ingest.Sanitize()
	c.Reconciler.Sanitize()
	c.Outbox.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices parses and validates the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) isEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPEnabled returns true if the HTTP server mode is enabled.
func (c *AppConfig) IsHTTPEnabled() bool { return c.isEnabled(ServiceModeHTTP) }

// IsIngestEnabled returns true if the ingestion pipeline mode is enabled.
func (c *AppConfig) IsIngestEnabled() bool { return c.isEnabled(ServiceModeIngest) }

// IsReconcilerEnabled returns true if the reconciler mode is enabled.
func (c *AppConfig) IsReconcilerEnabled() bool { return c.isEnabled(ServiceModeReconciler) }

// IsOutboxEnabled returns true if the outbox relay mode is enabled.
func (c *AppConfig) IsOutboxEnabled() bool { return c.isEnabled(ServiceModeOutbox) }
