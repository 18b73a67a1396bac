package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProviderMetrics records upstream provider calls.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// NewProviderMetrics creates instruments on the global meter.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(InstrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// RecordRequest records one provider call.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
		attribute.Bool("error", err != nil),
	)

	// Request contexts may already be cancelled by the time we record.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestTotal.Add(ctx, 1, attrs)
}

// PlanMetrics records planner outcomes.
type PlanMetrics struct {
	planDuration metric.Float64Histogram
	candidates   metric.Int64Histogram
	plans        metric.Int64Counter
}

// NewPlanMetrics creates planner instruments on the global meter.
func NewPlanMetrics() (*PlanMetrics, error) {
	meter := otel.Meter(InstrumentationName)

	planDuration, err := meter.Float64Histogram(
		"planner.plan.duration",
		metric.WithDescription("Time spent composing a plan in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	candidates, err := meter.Int64Histogram(
		"planner.plan.candidates",
		metric.WithDescription("Number of candidate itineraries per plan"),
		metric.WithUnit("{itinerary}"),
	)
	if err != nil {
		return nil, err
	}

	plans, err := meter.Int64Counter(
		"planner.plan.total",
		metric.WithDescription("Plans composed, by recommended itinerary"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		return nil, err
	}

	return &PlanMetrics{planDuration: planDuration, candidates: candidates, plans: plans}, nil
}

// RecordPlan records one composed plan. recommended is empty when no
// candidate was produced.
func (m *PlanMetrics) RecordPlan(recommended string, candidates int, duration time.Duration) {
	if recommended == "" {
		recommended = "none"
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("plan.recommended", recommended))
	m.planDuration.Record(ctx, duration.Seconds(), attrs)
	m.candidates.Record(ctx, int64(candidates), attrs)
	m.plans.Add(ctx, 1, attrs)
}
