package health

import (
	"time"

	"github.com/mozilla-ai/mcpreg/internal/domain"
)

// buildMetrics classifies the raw measurements of a check against the thresholds.
// response_time is always the probe latency; every other metric, error_rate included,
// is only present when the probe payload or the metric probe supplied it.
// Values without a threshold are dropped.
func buildMetrics(latency time.Duration, extra map[string]float64, thresholds map[string]float64) map[string]domain.HealthMetric {
	values := map[string]float64{
		domain.MetricResponseTime: latency.Seconds(),
	}
	for name, v := range extra {
		if name == domain.MetricResponseTime {
			continue
		}
		values[name] = v
	}

	out := make(map[string]domain.HealthMetric, len(values))
	for name, v := range values {
		threshold, ok := thresholds[name]
		if !ok {
			continue
		}
		out[name] = domain.NewHealthMetric(name, v, threshold)
	}
	return out
}

// healthScore is the fraction of metrics classified healthy, in [0, 1].
// With no metrics the score is 1.
func healthScore(metrics map[string]domain.HealthMetric) float64 {
	if len(metrics) == 0 {
		return 1
	}
	healthy := 0
	for _, m := range metrics {
		if m.Healthy() {
			healthy++
		}
	}
	return float64(healthy) / float64(len(metrics))
}
