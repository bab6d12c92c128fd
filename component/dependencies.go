package component

import (
	"log/slog"

	"github.com/c360/mediajoin/metric"
	"github.com/c360/mediajoin/natsclient"
)

// Dependencies are the shared services injected into components
type Dependencies struct {
	NATSClient      *natsclient.Client      // may be nil when no transport is configured
	MetricsRegistry *metric.MetricsRegistry // may be nil
	Logger          *slog.Logger            // defaults to slog.Default()
}

// GetLogger returns the configured logger or the default logger
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger tagged with the component name
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
