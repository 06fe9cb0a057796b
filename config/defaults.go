// =============================================================================
// BatchFlow default configuration
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: DefaultSchedulerConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultSchedulerConfig returns default scheduler settings.
//
// The defaults favor throughput: batches grow toward OptimalBatchSize under
// load, while BatchTimeout bounds the wait of a lone request to 100ms.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxBatchSize:          32,
		MinBatchSize:          4,
		OptimalBatchSize:      16,
		BatchTimeout:          100 * time.Millisecond,
		RequestTimeout:        30 * time.Second,
		SweepInterval:         25 * time.Millisecond,
		ScheduleInterval:      10 * time.Millisecond,
		WorkerCount:           4,
		EnableDynamicBatching: true,
		MaxQueueSize:          4096,
		SubmitRate:            0,
		SubmitBurst:           0,
		UrgencyWindow:         5 * time.Second,
	}
}

// DefaultLogConfig returns default log settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig returns default telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "batchflow",
		SampleRate:   1.0,
	}
}
