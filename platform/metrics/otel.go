package metrics

import (
	"context"
	"fmt"

	"funnel_backend/platform/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const serviceName = "funnel-backend"

// Exporter pushes counters to an OTLP collector over gRPC.
type Exporter struct {
	provider        *sdkmetric.MeterProvider
	leadsCaptured   metric.Int64Counter
	leadsQualified  metric.Int64Counter
	rateLimited     metric.Int64Counter
	deliveriesTotal metric.Int64Counter
}

// New returns the OTel exporter when an endpoint is configured, otherwise Noop.
func New(ctx context.Context, cfg config.MetricsConfig) (Recorder, error) {
	if !cfg.IsMetricsEnabled() {
		return NewNoop(), nil
	}
	return NewExporter(ctx, cfg)
}

// NewExporter creates a new OTel metrics exporter.
func NewExporter(ctx context.Context, cfg config.MetricsConfig) (*Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.GetOTelEndpoint()),
	}
	if cfg.GetOTelInsecure() {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return newExporter(provider)
}

func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)

	leadsCaptured, err := meter.Int64Counter(
		"funnel_leads_captured_total",
		metric.WithDescription("Leads persisted by the public capture endpoint"),
		metric.WithUnit("{lead}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating leads captured counter: %w", err)
	}

	leadsQualified, err := meter.Int64Counter(
		"funnel_leads_qualified_total",
		metric.WithDescription("Qualification verdicts written, by outcome"),
		metric.WithUnit("{lead}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating leads qualified counter: %w", err)
	}

	rateLimited, err := meter.Int64Counter(
		"funnel_rate_limited_total",
		metric.WithDescription("Requests refused by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rate limited counter: %w", err)
	}

	deliveriesTotal, err := meter.Int64Counter(
		"funnel_deliveries_total",
		metric.WithDescription("Fan-out deliveries by target and outcome"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating deliveries counter: %w", err)
	}

	return &Exporter{
		provider:        provider,
		leadsCaptured:   leadsCaptured,
		leadsQualified:  leadsQualified,
		rateLimited:     rateLimited,
		deliveriesTotal: deliveriesTotal,
	}, nil
}

func (e *Exporter) LeadCaptured(ctx context.Context) {
	e.leadsCaptured.Add(ctx, 1)
}

func (e *Exporter) LeadQualified(ctx context.Context, qualified bool) {
	e.leadsQualified.Add(ctx, 1, metric.WithAttributes(attribute.Bool("qualified", qualified)))
}

func (e *Exporter) RateLimited(ctx context.Context, path string) {
	e.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}

func (e *Exporter) Delivery(ctx context.Context, target, event, outcome string) {
	e.deliveriesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}

// Close shuts down the provider and flushes pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

var _ Recorder = (*Exporter)(nil)
