// Package observer defines logging and metrics hooks for sandbox execution.
package observer

import (
	"context"
	"time"
)

// MetricsRecorder records sandbox metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, language string, ok bool, cpuTimeMs int64, memoryBytes int64)
	ObserveRun(ctx context.Context, language string, status string, cpuTimeMs int64, memoryBytes int64)
	ObserveVerdict(ctx context.Context, class string, elapsed time.Duration)
	ObserveCallback(ctx context.Context, ok bool, attempts int)
}

// NoopMetricsRecorder is a default recorder that does nothing.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveCompile(ctx context.Context, language string, ok bool, cpuTimeMs int64, memoryBytes int64) {
}

func (NoopMetricsRecorder) ObserveRun(ctx context.Context, language string, status string, cpuTimeMs int64, memoryBytes int64) {
}

func (NoopMetricsRecorder) ObserveVerdict(ctx context.Context, class string, elapsed time.Duration) {
}

func (NoopMetricsRecorder) ObserveCallback(ctx context.Context, ok bool, attempts int) {
}
