package core

import (
	"context"
	"maps"
	"sort"
	"strings"
	"time"
)

// observer carries the logging and metrics sinks shared by the service and
// the publish workers.
type observer struct {
	logger  Logger
	metrics MetricsRecorder
}

func (o observer) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if operation = normalizeOperation(operation); operation == "" {
		operation = "unknown"
	}
	elapsed := time.Since(startedAt)
	status, level, verb := "success", "info", "succeeded"
	if err != nil {
		status, level, verb = "failure", "error", "failed"
	}

	logged := cloneFields(fields)
	logged["event_type"] = operation
	logged["status"] = status
	logged["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		logged["error"] = err.Error()
	}

	tags := map[string]string{"operation": operation, "status": status}
	if kind, ok := fields["directive_kind"].(string); ok && kind != "" {
		tags["directive_kind"] = kind
	}
	o.record(ctx, operation, elapsed, tags)
	o.log(ctx, level, operation+" "+verb, logged)
}

func (o observer) warn(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, "warn", message, fields)
}

func (o observer) log(ctx context.Context, level string, message string, fields map[string]any) {
	if o.logger == nil {
		return
	}
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	redacted := RedactSensitiveMap(fields)
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(redacted))
	}
	args := flattenFields(redacted)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (o observer) record(ctx context.Context, operation string, elapsed time.Duration, tags map[string]string) {
	if o.metrics == nil {
		return
	}
	o.metrics.IncCounter(ctx, OperationCounter(operation), 1, cloneTags(tags))
	o.metrics.ObserveHistogram(ctx, OperationDuration(operation), float64(elapsed.Milliseconds()), cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return maps.Clone(fields)
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
