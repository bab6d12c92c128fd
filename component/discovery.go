package component

import (
	"time"

	"github.com/c360/mediajoin/port"
)

// Discoverable is the inspection surface of a running element
type Discoverable interface {
	Meta() Metadata
	InputPorts() []port.Port
	OutputPorts() []port.Port
	Health() HealthStatus
	DataFlow() FlowMetrics
}

// Metadata describes what a component is
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus describes the current health state of a component
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	State      string        `json:"state"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes the current data flow through a component
type FlowMetrics struct {
	SetsPerSecond  float64   `json:"sets_per_second"`
	BytesPerSecond float64   `json:"bytes_per_second"`
	ErrorRate      float64   `json:"error_rate"`
	Pending        int       `json:"pending"`
	LastActivity   time.Time `json:"last_activity"`
}
