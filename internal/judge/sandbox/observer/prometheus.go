package observer

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "judger"

// PrometheusRecorder exports judge metrics through a prometheus registry.
type PrometheusRecorder struct {
	compiles      *prometheus.CounterVec
	compileCPU    *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	runCPU        *prometheus.HistogramVec
	runMemory     *prometheus.HistogramVec
	verdicts      *prometheus.CounterVec
	judgeDuration *prometheus.HistogramVec
	callbacks     *prometheus.CounterVec
	callbackTries prometheus.Histogram
}

// NewPrometheusRecorder creates the collectors and registers them on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_total",
			Help:      "Compilations by language and outcome.",
		}, []string{"language", "ok"}),
		compileCPU: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_cpu_seconds",
			Help:      "CPU time spent compiling.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"language"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "case_total",
			Help:      "Executed test cases by language and sandbox status.",
		}, []string{"language", "status"}),
		runCPU: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "case_cpu_seconds",
			Help:      "CPU time per executed test case.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"language"}),
		runMemory: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "case_memory_bytes",
			Help:      "Peak memory per executed test case.",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 12),
		}, []string{"language"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdict_total",
			Help:      "Judged submissions by verdict class.",
		}, []string{"class"}),
		judgeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_duration_seconds",
			Help:      "Wall time of one judge job.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"class"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_total",
			Help:      "Result deliveries by outcome.",
		}, []string{"ok"}),
		callbackTries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "callback_attempts",
			Help:      "Attempts used per result delivery.",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		}),
	}
	collectors := []prometheus.Collector{
		r.compiles, r.compileCPU, r.runs, r.runCPU, r.runMemory,
		r.verdicts, r.judgeDuration, r.callbacks, r.callbackTries,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveCompile(ctx context.Context, language string, ok bool, cpuTimeMs int64, memoryBytes int64) {
	r.compiles.WithLabelValues(language, strconv.FormatBool(ok)).Inc()
	r.compileCPU.WithLabelValues(language).Observe(msToSeconds(cpuTimeMs))
}

func (r *PrometheusRecorder) ObserveRun(ctx context.Context, language string, status string, cpuTimeMs int64, memoryBytes int64) {
	r.runs.WithLabelValues(language, status).Inc()
	r.runCPU.WithLabelValues(language).Observe(msToSeconds(cpuTimeMs))
	if memoryBytes > 0 {
		r.runMemory.WithLabelValues(language).Observe(float64(memoryBytes))
	}
}

func (r *PrometheusRecorder) ObserveVerdict(ctx context.Context, class string, elapsed time.Duration) {
	r.verdicts.WithLabelValues(class).Inc()
	r.judgeDuration.WithLabelValues(class).Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) ObserveCallback(ctx context.Context, ok bool, attempts int) {
	r.callbacks.WithLabelValues(strconv.FormatBool(ok)).Inc()
	r.callbackTries.Observe(float64(attempts))
}

func msToSeconds(ms int64) float64 {
	if ms <= 0 {
		return 0
	}
	return float64(ms) / 1000
}
