package telemetry

// Config controls the tracer provider installed by InitProvider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string // deployment.environment resource attribute

	// Enabled false installs a noop provider and nothing below applies.
	Enabled bool

	// Endpoint is the OTLP/HTTP collector host:port. With no endpoint spans
	// are sampled and recorded but never exported.
	Endpoint string
	Insecure bool

	// SampleRate applies to root spans; requests arriving with a sampled
	// traceparent are always kept.
	SampleRate float64
}

// DefaultConfig has tracing disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "agriconnect",
		ServiceVersion: "dev",
		Environment:    "development",
		SampleRate:     1.0,
	}
}
