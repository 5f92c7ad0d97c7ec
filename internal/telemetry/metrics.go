// Package telemetry holds the OpenTelemetry metric instruments for the
// gateway. Instruments are created once at startup and reused for the
// process lifetime.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics holds metric instruments for identity resolution.
type AuthMetrics struct {
	Attempts          metric.Int64Counter     // Total resolution attempts
	Failures          metric.Int64Counter     // Rejected requests (401/404)
	Duration          metric.Float64Histogram // Resolution latency
	TenantResolutions metric.Int64Counter     // Tenant lookups by outcome
}

// NewAuthMetrics creates metric instruments for authentication telemetry.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("rbacgate/auth")

	attempts, err := meter.Int64Counter(
		"auth.attempt.count",
		metric.WithDescription("Total number of identity resolution attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"auth.failure.count",
		metric.WithDescription("Total number of rejected requests"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"auth.duration",
		metric.WithDescription("Identity resolution duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500),
	)
	if err != nil {
		return nil, err
	}

	tenantResolutions, err := meter.Int64Counter(
		"tenant.resolution.count",
		metric.WithDescription("Total number of tenant lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		Attempts:          attempts,
		Failures:          failures,
		Duration:          duration,
		TenantResolutions: tenantResolutions,
	}, nil
}

// RecordAuth records an identity resolution attempt with channel, outcome,
// and duration. Channel is "user", "service", or "none".
func (a *AuthMetrics) RecordAuth(ctx context.Context, channel string, success bool, durationMs float64) {
	if a == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("auth.channel", channel),
		attribute.Bool("auth.success", success),
	)

	a.Attempts.Add(ctx, 1, attrs)
	a.Duration.Record(ctx, durationMs, attrs)

	if !success {
		a.Failures.Add(ctx, 1, attrs)
	}
}

// RecordTenantResolution records a tenant lookup by channel and outcome
// ("hit", "created", or "miss").
func (a *AuthMetrics) RecordTenantResolution(ctx context.Context, channel, outcome string) {
	if a == nil {
		return
	}
	a.TenantResolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("auth.channel", channel),
		attribute.String("tenant.outcome", outcome),
	))
}
