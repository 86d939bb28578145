// Recording helpers for all engine telemetry events.
// Each function emits both an OTel log event and increments a metric
// instrument, so a single call site feeds logs and dashboards alike.

package telemetry

import (
	"context"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterRecorderName = "github.com/modforge/cdengine"
	loggerName        = "cdengine"
)

// recorderInstruments holds all lazy-initialized OTel metric instruments.
type recorderInstruments struct {
	// Counters (7)
	engineLifecycleTotal metric.Int64Counter
	tickTotal            metric.Int64Counter
	fixTotal             metric.Int64Counter
	writeBackTotal       metric.Int64Counter
	httpAttemptTotal     metric.Int64Counter
	configReloadTotal    metric.Int64Counter
	budgetExhaustedTotal metric.Int64Counter

	// Histograms (2)
	tickDurationHist metric.Float64Histogram
	httpDurationHist metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     recorderInstruments
)

// initInstruments registers all recorder metric instruments against the current
// global MeterProvider. Must be called after telemetry.Init so the real
// provider is set. Also called lazily on first use as a safety net.
func initInstruments() {
	instOnce.Do(func() {
		m := otel.GetMeterProvider().Meter(meterRecorderName)

		inst.engineLifecycleTotal, _ = m.Int64Counter("cde.engine.lifecycle.total",
			metric.WithDescription("Total engine lifecycle events (started, stopped, reset)"),
		)
		inst.tickTotal, _ = m.Int64Counter("cde.engine.ticks.total",
			metric.WithDescription("Total scan-fix-apply ticks by outcome"),
		)
		inst.fixTotal, _ = m.Int64Counter("cde.fix.total",
			metric.WithDescription("Total fix invocations by outcome"),
		)
		inst.writeBackTotal, _ = m.Int64Counter("cde.writeback.total",
			metric.WithDescription("Total document write-backs"),
		)
		inst.httpAttemptTotal, _ = m.Int64Counter("cde.http.attempts.total",
			metric.WithDescription("Total backend HTTP attempts, including retries"),
		)
		inst.configReloadTotal, _ = m.Int64Counter("cde.config.reloads.total",
			metric.WithDescription("Total settings reload attempts"),
		)
		inst.budgetExhaustedTotal, _ = m.Int64Counter("cde.budget.exhausted.total",
			metric.WithDescription("Total files skipped because their enhancement budget is spent"),
		)

		inst.tickDurationHist, _ = m.Float64Histogram("cde.engine.tick.duration_ms",
			metric.WithDescription("Wall-clock duration of one tick in milliseconds"),
			metric.WithUnit("ms"),
		)
		inst.httpDurationHist, _ = m.Float64Histogram("cde.http.duration_ms",
			metric.WithDescription("Backend HTTP attempt round-trip latency in milliseconds"),
			metric.WithUnit("ms"),
		)
	})
}

// statusStr returns "ok" or "error" depending on whether err is nil.
func statusStr(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// emit sends an OTel log event with the given body and key-value attributes.
func emit(ctx context.Context, body string, sev otellog.Severity, attrs ...otellog.KeyValue) {
	logger := global.GetLoggerProvider().Logger(loggerName)
	var r otellog.Record
	r.SetBody(otellog.StringValue(body))
	r.SetSeverity(sev)
	r.AddAttributes(attrs...)
	logger.Emit(ctx, r)
}

// errKV returns a log KeyValue with the error message, or empty string if nil.
func errKV(err error) otellog.KeyValue {
	if err != nil {
		return otellog.String("error", truncateOutput(err.Error(), maxErrorLog))
	}
	return otellog.String("error", "")
}

// severity returns SeverityInfo on success, SeverityError on failure.
func severity(err error) otellog.Severity {
	if err != nil {
		return otellog.SeverityError
	}
	return otellog.SeverityInfo
}

// maxErrorLog caps error text in log events. Backend 4xx bodies are
// surfaced verbatim in errors and may echo source code.
const maxErrorLog = 1024

// truncateOutput trims s to max bytes and appends "…" when truncated.
// Avoids splitting multi-byte UTF-8 characters at the boundary.
func truncateOutput(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	truncated := s[:limit]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "…"
}

// Truncate is the exported form of the log truncation helper, used by
// components that echo backend or script output into their own errors.
func Truncate(s string, limit int) string {
	return truncateOutput(s, limit)
}

// RecordEngineLifecycle records an engine lifecycle event (metrics + log event).
// event is "started", "stopped", "reset" or "closed".
func RecordEngineLifecycle(ctx context.Context, project, event string) {
	initInstruments()
	inst.engineLifecycleTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event", event)),
	)
	emit(ctx, "engine.lifecycle", otellog.SeverityInfo,
		otellog.String("project", project),
		otellog.String("event", event),
	)
}

// RecordTick records one completed tick (metrics + log event). outcome is
// "clean", "problems", "cooldown", "skipped" or "error".
func RecordTick(ctx context.Context, project, tickID, outcome string, problemFiles, applied int, durationMs float64) {
	initInstruments()
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	inst.tickTotal.Add(ctx, 1, attrs)
	inst.tickDurationHist.Record(ctx, durationMs, attrs)
	sev := otellog.SeverityInfo
	if outcome == "error" {
		sev = otellog.SeverityError
	}
	emit(ctx, "engine.tick", sev,
		otellog.String("project", project),
		otellog.String("tick", tickID),
		otellog.String("outcome", outcome),
		otellog.Int("problem_files", problemFiles),
		otellog.Int("applied", applied),
		otellog.Float64("duration_ms", durationMs),
	)
}

// RecordFix records one Fix Invoker call (metrics + log event). outcome is
// "applied", "no_change" or "failed".
func RecordFix(ctx context.Context, file, outcome string, err error) {
	initInstruments()
	inst.fixTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	sev := otellog.SeverityInfo
	if outcome == "failed" {
		sev = otellog.SeverityWarn
	}
	emit(ctx, "fix.invoke", sev,
		otellog.String("file", file),
		otellog.String("outcome", outcome),
		errKV(err),
	)
}

// RecordWriteBack records a document write-back (metrics + log event).
func RecordWriteBack(ctx context.Context, file string, err error) {
	initInstruments()
	status := statusStr(err)
	inst.writeBackTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	emit(ctx, "writeback.apply", severity(err),
		otellog.String("file", file),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordHTTPAttempt records a single backend HTTP attempt with its latency
// (metrics + log event). statusCode is 0 when no response was received.
func RecordHTTPAttempt(ctx context.Context, method, url string, attempt, statusCode int, durationMs float64, err error) {
	initInstruments()
	status := statusStr(err)
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("status_code", statusCode),
		attribute.String("status", status),
	)
	inst.httpAttemptTotal.Add(ctx, 1, attrs)
	inst.httpDurationHist.Record(ctx, durationMs, attrs)
	emit(ctx, "http.attempt", severity(err),
		otellog.String("method", method),
		otellog.String("url", url),
		otellog.Int("attempt", attempt),
		otellog.Int("status_code", statusCode),
		otellog.Float64("duration_ms", durationMs),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordConfigReload records a settings reload attempt (metrics + log event).
func RecordConfigReload(ctx context.Context, path string, err error) {
	initInstruments()
	status := statusStr(err)
	inst.configReloadTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	emit(ctx, "config.reload", severity(err),
		otellog.String("path", path),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordBudgetExhausted records that a file was skipped because it has
// already received its maximum number of automatic edits.
func RecordBudgetExhausted(ctx context.Context, file string, count int) {
	initInstruments()
	inst.budgetExhaustedTotal.Add(ctx, 1)
	emit(ctx, "budget.exhausted", otellog.SeverityWarn,
		otellog.String("file", file),
		otellog.Int("count", count),
	)
}
