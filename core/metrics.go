package core

import (
	"context"
	"maps"
)

const metricPrefix = "crosspost."

// OperationCounter names the counter incremented once per observed operation.
func OperationCounter(operation string) string {
	return metricPrefix + normalizeOperation(operation) + ".total"
}

// OperationDuration names the latency histogram of an operation, in
// milliseconds.
func OperationDuration(operation string) string {
	return metricPrefix + normalizeOperation(operation) + ".duration_ms"
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	return maps.Clone(tags)
}

var _ MetricsRecorder = NopMetricsRecorder{}
