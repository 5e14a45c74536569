// Package telemetry configures OpenTelemetry context propagation for outbound
// report messages.
package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var initOnce sync.Once

// Propagator is the W3C trace-context plus baggage propagator installed by
// Init.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

// Init installs Propagator as the global otel propagator. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		otel.SetTextMapPropagator(Propagator())
	})
}
