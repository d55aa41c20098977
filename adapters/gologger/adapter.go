package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	LoggerName        = "crosspost"
	PublishLoggerName = "crosspost.publish"
	InboundLoggerName = "crosspost.inbound"
)

// Resolve picks the named logger with precedence provider > logger > nop and
// never returns a nil logger.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	if name == "" {
		name = LoggerName
	}
	resolvedProvider, resolved := glog.Resolve(name, provider, logger)
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			resolved = named
		}
	}
	return resolvedProvider, glog.Ensure(resolved)
}

// Named returns the logger registered under name, falling back to fallback.
func Named(provider glog.LoggerProvider, name string, fallback glog.Logger) glog.Logger {
	if provider != nil {
		if logger := provider.GetLogger(name); logger != nil {
			return logger
		}
	}
	return glog.Ensure(fallback)
}

// ForPublishWorkers resolves the publish worker logger and its go-job bridge
// so a go-job worker and the dispatcher write to the same sink.
func ForPublishWorkers(provider glog.LoggerProvider, logger glog.Logger) (glog.Logger, job.Logger) {
	_, base := Resolve(LoggerName, provider, logger)
	publishLogger := Named(provider, PublishLoggerName, base)
	return publishLogger, job.GoLogger(publishLogger)
}

// ToJobProvider exposes a glog provider to go-job.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}
