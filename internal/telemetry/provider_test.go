package telemetry

import (
	"context"
	"testing"
)

func TestEnabled(t *testing.T) {
	t.Setenv(EnvMetricsURL, "")
	t.Setenv(EnvLogsURL, "")
	if Enabled() {
		t.Error("Enabled() = true with no endpoints")
	}
	t.Setenv(EnvLogsURL, "http://localhost:4318/v1/logs")
	if !Enabled() {
		t.Error("Enabled() = false with logs endpoint set")
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	resetInstruments(t)
	t.Setenv(EnvMetricsURL, "")
	t.Setenv(EnvLogsURL, "")

	shutdown, err := Init(context.Background(), "test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	// Instruments must be usable after Init.
	RecordTick(context.Background(), "demo", "t-1", "clean", 0, 0, 1)
}
