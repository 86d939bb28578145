package telemetry

import (
	"os"
	"strings"
)

// buildResourceAttrs builds the OTEL_RESOURCE_ATTRIBUTES value from the
// engine context vars present in the current process environment.
// Returns "" when none are found.
func buildResourceAttrs() string {
	var attrs []string
	if v := os.Getenv(EnvProject); v != "" {
		attrs = append(attrs, "cde.project="+v)
	}
	if v := os.Getenv("CDE_PROBLEM_SOURCE"); v != "" {
		attrs = append(attrs, "cde.problem_source="+v)
	}
	return strings.Join(attrs, ",")
}

// OTELEnvForSubprocess returns OTEL environment variables to inject into
// diagnostics scripts when cmd.Env is built explicitly.
//
// Scripts receive the standard OTEL_EXPORTER_OTLP_*_ENDPOINT names so any
// OTel SDK they embed reports to the same collector as the engine.
//
// Returns nil when telemetry is not active.
func OTELEnvForSubprocess() []string {
	m := OTELEnvMap()
	if m == nil {
		return nil
	}
	keys := []string{
		"OTEL_RESOURCE_ATTRIBUTES",
		"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT",
		"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT",
		EnvMetricsURL,
		EnvLogsURL,
	}
	var env []string
	for _, k := range keys {
		if v, ok := m[k]; ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// OTELEnvMap returns OTEL environment variables as a map.
// Returns nil when telemetry is not active.
func OTELEnvMap() map[string]string {
	if !Enabled() {
		return nil
	}
	m := make(map[string]string)
	if attrs := buildResourceAttrs(); attrs != "" {
		m["OTEL_RESOURCE_ATTRIBUTES"] = attrs
	}
	if url := os.Getenv(EnvMetricsURL); url != "" {
		m[EnvMetricsURL] = url
		m["OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"] = url
	}
	if url := os.Getenv(EnvLogsURL); url != "" {
		m[EnvLogsURL] = url
		m["OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"] = url
	}
	return m
}
