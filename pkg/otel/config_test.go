package otel

import (
	"testing"
	"time"
)

func TestGetExporterConfig_Defaults(t *testing.T) {
	for _, k := range []string{"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"} {
		t.Setenv(k, "")
	}

	cfg := GetExporterConfig(SignalTraces)
	if cfg.Protocol != ProtocolHTTPProtobuf {
		t.Errorf("Protocol = %q, want %q", cfg.Protocol, ProtocolHTTPProtobuf)
	}
	if cfg.Endpoint != "http://localhost:4318/v1/traces" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if !cfg.Insecure {
		t.Error("http endpoint should default to insecure")
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
}

func TestGetExporterConfig_BaseEndpointGetsSignalPath(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otlp.example.com/otlp")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	cfg := GetExporterConfig(SignalMetrics)
	if cfg.Endpoint != "https://otlp.example.com/otlp/v1/metrics" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Insecure {
		t.Error("https endpoint should not be insecure")
	}
}

func TestGetExporterConfig_SignalOverridesAndGRPC(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://collector:4317/ignored")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Basic abc==,X-Scope=fleet")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_TIMEOUT", "2500")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_INSECURE", "yes")

	cfg := GetExporterConfig(SignalTraces)
	if cfg.Protocol != ProtocolGRPC {
		t.Errorf("Protocol = %q, want grpc", cfg.Protocol)
	}
	if cfg.Endpoint != "collector:4317" {
		t.Errorf("Endpoint = %q, want collector:4317", cfg.Endpoint)
	}
	if cfg.Headers["Authorization"] != "Basic abc==" || cfg.Headers["X-Scope"] != "fleet" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if cfg.Timeout != 2500*time.Millisecond {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if !cfg.Insecure {
		t.Error("explicit insecure not honoured")
	}
}

func TestIsTrue(t *testing.T) {
	for _, s := range []string{"true", "TRUE", " 1 ", "yes", "on"} {
		if !IsTrue(s) {
			t.Errorf("IsTrue(%q) = false", s)
		}
	}
	for _, s := range []string{"", "false", "0", "off", "nope"} {
		if IsTrue(s) {
			t.Errorf("IsTrue(%q) = true", s)
		}
	}
}
