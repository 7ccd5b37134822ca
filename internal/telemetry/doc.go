// Package telemetry wires the OpenTelemetry SDK for session tracing. When
// telemetry is disabled no exporter is created and the global provider
// stays noop.
package telemetry
