// Package telemetry wires up an OpenTelemetry MeterProvider and the
// shared counters the bus, lifecycle manager, router, pulse runner, and
// heartbeat monitor record through.
//
// The instrument shapes (Int64Counter for monotonic totals, an
// Int64UpDownCounter for a live gauge-like subscriber count) are
// grounded on the pack's in-memory event bus example
// (other_examples/dae9aa43_coachpo-meltica-gateway__internal-infra-bus-
// eventbus-memory.go.go), adapted to this domain's counters and wired
// through the teacher's own go.opentelemetry.io/otel dependency set
// rather than introducing a new metrics library.
package telemetry

import (
	"context"
	"log"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "activation-core"

// Metrics is every counter the activation core records through. It
// satisfies events.Metrics as well as being used directly by the other
// components.
type Metrics struct {
	eventsPublished      metric.Int64Counter
	subscriberDrops      metric.Int64Counter
	activeSubscribers    metric.Int64UpDownCounter
	replayEventsServed   metric.Int64Counter
	activationsTotal     metric.Int64Counter
	activationsRejected  metric.Int64Counter
	botRunsTotal         metric.Int64Counter
	pulseTicksTotal      metric.Int64Counter
	heartbeatIdleTotal   metric.Int64Counter

	lastActiveSubs atomic.Int64
}

// NewNoop builds a Metrics backed by the global no-op MeterProvider,
// suitable for tests and for running without an OTLP collector.
func NewNoop() *Metrics {
	return newFromMeter(otel.GetMeterProvider().Meter(meterName))
}

// NewOTLPHTTP builds a MeterProvider exporting to the given OTLP/HTTP
// collector endpoint and returns both the Metrics and a shutdown func.
func NewOTLPHTTP(ctx context.Context, endpoint string) (*Metrics, func(context.Context) error, error) {
	exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
	)
	otel.SetMeterProvider(provider)

	return newFromMeter(provider.Meter(meterName)), provider.Shutdown, nil
}

func newFromMeter(meter metric.Meter) *Metrics {
	m := &Metrics{}

	var err error
	m.eventsPublished, err = meter.Int64Counter("activation_core.events_published_total")
	logIfErr(err)
	m.subscriberDrops, err = meter.Int64Counter("activation_core.subscriber_drops_total")
	logIfErr(err)
	m.activeSubscribers, err = meter.Int64UpDownCounter("activation_core.active_subscribers")
	logIfErr(err)
	m.replayEventsServed, err = meter.Int64Counter("activation_core.replay_events_served_total")
	logIfErr(err)
	m.activationsTotal, err = meter.Int64Counter("activation_core.activations_total")
	logIfErr(err)
	m.activationsRejected, err = meter.Int64Counter("activation_core.activations_rejected_total")
	logIfErr(err)
	m.botRunsTotal, err = meter.Int64Counter("activation_core.bot_runs_total")
	logIfErr(err)
	m.pulseTicksTotal, err = meter.Int64Counter("activation_core.pulse_ticks_total")
	logIfErr(err)
	m.heartbeatIdleTotal, err = meter.Int64Counter("activation_core.heartbeat_idle_total")
	logIfErr(err)

	return m
}

func logIfErr(err error) {
	if err != nil {
		log.Printf("[telemetry] instrument registration failed: %v", err)
	}
}

// --- events.Metrics ---

func (m *Metrics) IncEventsPublished(eventType string) {
	m.eventsPublished.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) IncSubscriberDrops(subscriberLabel string) {
	m.subscriberDrops.Add(context.Background(), 1, metric.WithAttributes(attribute.String("subscriber", subscriberLabel)))
}

func (m *Metrics) SetActiveSubscribers(n int) {
	prev := m.lastActiveSubs.Swap(int64(n))
	m.activeSubscribers.Add(context.Background(), int64(n)-prev)
}

func (m *Metrics) IncReplayEventsServed(n int) {
	m.replayEventsServed.Add(context.Background(), int64(n))
}

// --- domain counters used directly by router/lifecycle/pulse/heartbeat ---

func (m *Metrics) IncActivations(bot string) {
	m.activationsTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("bot", bot)))
}

func (m *Metrics) IncActivationsRejected(reason string) {
	m.activationsRejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) IncBotRuns(status string) {
	m.botRunsTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) IncPulseTicks() { m.pulseTicksTotal.Add(context.Background(), 1) }

func (m *Metrics) IncHeartbeatIdle(bot string) {
	m.heartbeatIdleTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("bot", bot)))
}
