package config

import "strconv"

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string // host:port of an OTLP gRPC collector
	SampleRatio  float64
}

func LoadTelemetryConfig(serviceName string) TelemetryConfig {
	ratio := 1.0
	if f, err := strconv.ParseFloat(envStr("OTEL_SAMPLING_RATIO", "1"), 64); err == nil && f >= 0 && f <= 1 {
		ratio = f
	}
	return TelemetryConfig{
		Enabled:      envBool("OTEL_ENABLED", false),
		ServiceName:  envStr("OTEL_SERVICE_NAME", serviceName),
		OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		SampleRatio:  ratio,
	}
}
