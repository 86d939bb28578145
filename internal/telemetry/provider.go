// Package telemetry wires OpenTelemetry metrics and logs for the engine.
//
// Telemetry is opt-in: when neither [EnvMetricsURL] nor [EnvLogsURL] is
// set, [Init] leaves the global no-op providers in place and every
// Record* helper degrades to a cheap no-op.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	// EnvMetricsURL is the OTLP/HTTP metrics endpoint. Setting it enables metrics.
	EnvMetricsURL = "CDE_OTEL_METRICS_URL"
	// EnvLogsURL is the OTLP/HTTP logs endpoint. Setting it enables log events.
	EnvLogsURL = "CDE_OTEL_LOGS_URL"
	// EnvProject names the project in resource attributes. Set by the CLI.
	EnvProject = "CDE_PROJECT"

	serviceName = "cde"
)

// Enabled reports whether any telemetry endpoint is configured.
func Enabled() bool {
	return os.Getenv(EnvMetricsURL) != "" || os.Getenv(EnvLogsURL) != ""
}

// Init installs OTLP/HTTP meter and logger providers for whichever
// endpoints are configured. The returned shutdown flushes and stops them;
// it is never nil and is safe to call when nothing was installed.
func Init(ctx context.Context, version string) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	}
	if p := os.Getenv(EnvProject); p != "" {
		attrs = append(attrs, attribute.String("cde.project", p))
	}
	res := resource.NewSchemaless(attrs...)

	if url := os.Getenv(EnvMetricsURL); url != "" {
		exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(url))
		if err != nil {
			return shutdown, fmt.Errorf("metrics exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	if url := os.Getenv(EnvLogsURL); url != "" {
		exp, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(url))
		if err != nil {
			return shutdown, fmt.Errorf("logs exporter: %w", err)
		}
		lp := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(lp)
		shutdownFuncs = append(shutdownFuncs, lp.Shutdown)
	}

	// Rebind instruments to the providers installed above.
	instOnce = sync.Once{}
	initInstruments()
	return shutdown, nil
}
