// Package telemetry provides OpenTelemetry instrumentation, repurposed
// from the teacher's LLM-request metrics to policy-decision metrics (spec
// §11): policy_decisions_total, policy_eval_duration_seconds,
// proxy_requests_total, grant_issued_total, approval_pending_gauge.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

// Config holds telemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	MetricsPort    int
}

// Provider manages OpenTelemetry providers and the decision metrics, which
// are fed through RecordDecision, RecordProxyRequest, RecordGrantIssued and
// SetPendingApprovals. The proxy pipeline and the grant/approval stores do
// not call these methods.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	decisionsTotal   metric.Int64Counter
	evalDuration     metric.Float64Histogram
	proxyRequests    metric.Int64Counter
	grantsIssued     metric.Int64Counter
	approvalsPending metric.Int64UpDownCounter
}

// NewProvider creates a new telemetry provider.
func NewProvider(cfg Config) (*Provider, error) {
	ctx := context.Background()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
	}
	if strings.EqualFold(os.Getenv("OTEL_INSECURE"), "true") {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	} else {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	traceExporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	p := &Provider{
		config:         cfg,
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		tracer:         tracerProvider.Tracer(cfg.ServiceName),
		meter:          meterProvider.Meter(cfg.ServiceName),
	}

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return p, nil
}

func (p *Provider) initMetrics() error {
	var err error

	p.decisionsTotal, err = p.meter.Int64Counter(
		"policy_decisions_total",
		metric.WithDescription("Total policy decisions by outcome and rule"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return err
	}

	p.evalDuration, err = p.meter.Float64Histogram(
		"policy_eval_duration_seconds",
		metric.WithDescription("Policy evaluation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	p.proxyRequests, err = p.meter.Int64Counter(
		"proxy_requests_total",
		metric.WithDescription("Total reverse-proxy requests by decision"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	p.grantsIssued, err = p.meter.Int64Counter(
		"grant_issued_total",
		metric.WithDescription("Total capability grants issued"),
		metric.WithUnit("{grant}"),
	)
	if err != nil {
		return err
	}

	p.approvalsPending, err = p.meter.Int64UpDownCounter(
		"approval_pending_gauge",
		metric.WithDescription("Currently pending approval requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Tracer returns the tracer instance.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the meter instance.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// Shutdown gracefully shuts down telemetry providers. Both tracer and
// meter are shut down regardless of individual failures.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// RecordDecision records one policy decision (spec §4.1/§4.7 outcome).
func (p *Provider) RecordDecision(ctx context.Context, decision, ruleID string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("decision", decision),
		attribute.String("rule_id", ruleID),
	}
	p.decisionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	p.evalDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordProxyRequest records one reverse-proxy decision outcome.
func (p *Provider) RecordProxyRequest(ctx context.Context, decision string) {
	p.proxyRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

// RecordGrantIssued increments the issued-grant counter.
func (p *Provider) RecordGrantIssued(ctx context.Context, tool string) {
	p.grantsIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// SetPendingApprovals adds delta to the pending-approvals up-down counter.
// It keeps no previous value: the gauge moves only by the deltas passed in.
func (p *Provider) SetPendingApprovals(ctx context.Context, delta int64) {
	p.approvalsPending.Add(ctx, delta)
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, opts...)
}
