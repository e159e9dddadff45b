package otelx

import (
	"context"
	"testing"
)

func lookupFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := configFrom("projector-service", lookupFrom(nil))
	if cfg.Enabled {
		t.Fatal("tracing must be off unless OTEL_ENABLED is set")
	}
	if cfg.OTLPEndpoint != "localhost:4317" || cfg.SampleRatio != 1 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestConfigOverrides(t *testing.T) {
	cfg := configFrom("svc", lookupFrom(map[string]string{
		"OTEL_ENABLED":                "TRUE",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "jaeger:4317",
		"OTEL_SAMPLING_RATIO":         "7",
	}))
	if !cfg.Enabled || cfg.OTLPEndpoint != "jaeger:4317" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("out of range ratio must keep the default, got %v", cfg.SampleRatio)
	}
}

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
