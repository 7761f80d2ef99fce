// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry metrics for the graph diff
// service, exported through the Prometheus registry that /metrics serves.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config controls telemetry identity.
type Config struct {
	// ServiceName identifies this service in exported metrics.
	ServiceName string

	// ServiceVersion is this service's version string.
	ServiceVersion string
}

// DefaultConfig returns the stock identity for the diff service.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "grafity",
		ServiceVersion: "1.0.0",
	}
}

// Init sets up the OTel MeterProvider with a Prometheus exporter and
// registers it globally. The returned Metrics instance carries the
// service's pre-registered instruments; the shutdown function must be
// called on exit.
func Init(cfg Config) (*Metrics, func(context.Context) error, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	metrics, err := NewMetrics(provider.Meter(cfg.ServiceName))
	if err != nil {
		shutdownErr := provider.Shutdown(context.Background())
		if shutdownErr != nil {
			return nil, nil, fmt.Errorf("create metrics: %w (shutdown: %v)", err, shutdownErr)
		}
		return nil, nil, fmt.Errorf("create metrics: %w", err)
	}
	return metrics, provider.Shutdown, nil
}
