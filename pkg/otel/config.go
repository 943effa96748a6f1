package otel

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Protocol represents OTLP transport protocol
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
	ProtocolHTTPJSON     Protocol = "http/json"
)

// SignalType represents the OTEL signal type
type SignalType string

const (
	SignalTraces  SignalType = "traces"
	SignalMetrics SignalType = "metrics"
)

// ExporterConfig holds parsed OTLP exporter configuration for a signal
type ExporterConfig struct {
	Endpoint    string
	Protocol    Protocol
	Headers     map[string]string
	Timeout     time.Duration
	Insecure    bool
	Compression string
}

func IsTracingEnabled() bool {
	return IsTrue(os.Getenv("OTEL_TRACING_ENABLED"))
}

func IsMetricsEnabled() bool {
	return IsTrue(os.Getenv("OTEL_METRICS_ENABLED"))
}

// lookup returns OTEL_EXPORTER_OTLP_<SIGNAL>_<suffix>, then
// OTEL_EXPORTER_OTLP_<suffix>, then def.
func lookup(signal SignalType, suffix, def string) string {
	specific := "OTEL_EXPORTER_OTLP_" + strings.ToUpper(string(signal)) + "_" + suffix
	if v := os.Getenv(specific); v != "" {
		return v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_" + suffix); v != "" {
		return v
	}
	return def
}

// GetExporterConfig resolves the standard OTEL_EXPORTER_OTLP_* variables for
// one signal, preferring signal-specific values.
func GetExporterConfig(signal SignalType) ExporterConfig {
	cfg := ExporterConfig{
		Protocol:    parseProtocol(lookup(signal, "PROTOCOL", string(ProtocolHTTPProtobuf))),
		Headers:     parseHeaders(lookup(signal, "HEADERS", "")),
		Timeout:     parseDuration(lookup(signal, "TIMEOUT", ""), 10*time.Second),
		Compression: lookup(signal, "COMPRESSION", ""),
	}
	cfg.Endpoint = resolveEndpoint(signal, cfg.Protocol)

	if v := lookup(signal, "INSECURE", ""); v != "" {
		cfg.Insecure = IsTrue(v)
	} else {
		cfg.Insecure = strings.HasPrefix(cfg.Endpoint, "http://")
	}
	return cfg
}

func parseProtocol(s string) Protocol {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolGRPC:
		return ProtocolGRPC
	case ProtocolHTTPJSON:
		return ProtocolHTTPJSON
	default:
		return ProtocolHTTPProtobuf
	}
}

// resolveEndpoint uses a signal endpoint as-is, appends /v1/<signal> to a base
// HTTP endpoint, and falls back to the local collector.
func resolveEndpoint(signal SignalType, protocol Protocol) string {
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_" + strings.ToUpper(string(signal)) + "_ENDPOINT"); ep != "" {
		return normalizeEndpoint(ep, protocol)
	}

	base := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if base == "" {
		if protocol == ProtocolGRPC {
			return "localhost:4317"
		}
		return "http://localhost:4318/v1/" + string(signal)
	}

	ep := normalizeEndpoint(base, protocol)
	if protocol == ProtocolGRPC {
		return ep
	}

	signalPath := "/v1/" + string(signal)
	u, err := url.Parse(ep)
	if err != nil {
		return strings.TrimSuffix(ep, "/") + signalPath
	}
	if !strings.HasSuffix(u.Path, signalPath) {
		u.Path = strings.TrimSuffix(u.Path, "/") + signalPath
	}
	return u.String()
}

// normalizeEndpoint reduces gRPC endpoints to host:port and gives HTTP
// endpoints a scheme.
func normalizeEndpoint(endpoint string, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
		if idx := strings.Index(endpoint, "/"); idx != -1 {
			endpoint = endpoint[:idx]
		}
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "https://" + endpoint
	}
	return endpoint
}

// IsTrue accepts true/1/yes/on, case-insensitively.
func IsTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// parseHeaders reads "k1=v1,k2=v2". Values keep everything after the first '='.
func parseHeaders(s string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		idx := strings.Index(pair, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(pair[:idx])
		headers[key] = pair[idx+1:]
		slog.Debug("Parsed OTEL header", "key", key, "value_length", len(pair)-idx-1)
	}
	return headers
}

// parseDuration accepts Go durations ("10s") and bare milliseconds ("10000").
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
