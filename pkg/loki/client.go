package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"fleetsim/pkg/metrics"
	fleetotel "fleetsim/pkg/otel"
	"fleetsim/pkg/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	pushPath  = "/loki/api/v1/push"
	userAgent = "fleetsim/1.0.0"
	job       = "fleetsim"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	tracer     trace.Tracer
}

type PushRequest struct {
	Streams []Stream `json:"streams"`
}

type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// Entry is one log line with the time Loki should index it under.
type Entry struct {
	Timestamp time.Time
	Line      string
}

func NewClient(baseURL, username, password string) *Client {
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   30 * time.Second,
	}

	return &Client{
		httpClient: client,
		baseURL:    baseURL,
		username:   username,
		password:   password,
		tracer:     otel.Tracer("loki-client"),
	}
}

// RouteLabels are the stream labels for everything exported about a route.
func RouteLabels(stream string, routeID int) map[string]string {
	return map[string]string{
		"job":      job,
		"service":  "fleet-simulation",
		"stream":   stream,
		"route_id": strconv.Itoa(routeID),
	}
}

// SendGPSLogs pushes samples for one route as a single stream. badges maps a
// bus id to an SVG data URI; buses without one are sent without an image.
func (c *Client) SendGPSLogs(ctx context.Context, routeID int, logs []types.GPSLog, badges map[int]string) error {
	ctx, span := c.tracer.Start(ctx, "loki.send_gps_logs",
		trace.WithAttributes(
			attribute.Int("route_id", routeID),
			attribute.Int("samples_count", len(logs)),
		),
	)
	defer span.End()

	entries := make([]Entry, 0, len(logs))
	for _, l := range logs {
		line, err := GPSLine(l, badges[l.BusID])
		if err != nil {
			fleetotel.RecordError(span, err, fleetotel.ErrorTypeEncode, false)
			return err
		}
		entries = append(entries, Entry{Timestamp: l.Timestamp, Line: line})
	}

	return c.Push(ctx, RouteLabels("gps", routeID), entries)
}

// SendAlerts pushes alerts grouped into one stream per route.
func (c *Client) SendAlerts(ctx context.Context, alerts []types.Alert, now time.Time) error {
	ctx, span := c.tracer.Start(ctx, "loki.send_alerts",
		trace.WithAttributes(attribute.Int("alerts_count", len(alerts))),
	)
	defer span.End()

	byRoute := map[int][]Entry{}
	for _, a := range alerts {
		line, err := AlertLine(a)
		if err != nil {
			fleetotel.RecordError(span, err, fleetotel.ErrorTypeEncode, false)
			return err
		}
		byRoute[a.RouteID] = append(byRoute[a.RouteID], Entry{Timestamp: now, Line: line})
	}

	routes := make([]int, 0, len(byRoute))
	for id := range byRoute {
		routes = append(routes, id)
	}
	sort.Ints(routes)

	streams := make([]Stream, 0, len(routes))
	for _, id := range routes {
		streams = append(streams, toStream(RouteLabels("alerts", id), byRoute[id]))
	}

	return c.pushStreams(ctx, streams)
}

// Push sends entries as one stream with the given labels.
func (c *Client) Push(ctx context.Context, labels map[string]string, entries []Entry) error {
	return c.pushStreams(ctx, []Stream{toStream(labels, entries)})
}

func toStream(labels map[string]string, entries []Entry) Stream {
	values := make([][]string, 0, len(entries))
	for _, e := range entries {
		values = append(values, []string{
			strconv.FormatInt(e.Timestamp.UnixNano(), 10),
			e.Line,
		})
	}
	return Stream{Stream: labels, Values: values}
}

func (c *Client) pushStreams(ctx context.Context, streams []Stream) error {
	ctx, span := c.tracer.Start(ctx, "loki.push")
	defer span.End()

	lines := 0
	for _, s := range streams {
		lines += len(s.Values)
	}
	if lines == 0 {
		return nil
	}

	start := time.Now()
	err := c.do(ctx, span, PushRequest{Streams: streams}, lines)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordLokiSend(ctx, time.Since(start), lines, status)

	return err
}

func (c *Client) do(ctx context.Context, span trace.Span, lokiReq PushRequest, lines int) error {
	reqBody, err := json.Marshal(lokiReq)
	if err != nil {
		fleetotel.RecordError(span, err, fleetotel.ErrorTypeEncode, false)
		return fmt.Errorf("failed to marshal Loki request: %w", err)
	}

	url := c.baseURL + pushPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		fleetotel.RecordError(span, err, fleetotel.ErrorTypeHTTP, false)
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	// Grafana Cloud needs basic auth; a local Loki does not.
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
		span.SetAttributes(
			attribute.Bool("auth.enabled", true),
			attribute.String("auth.username", c.username),
		)
	} else {
		span.SetAttributes(attribute.Bool("auth.enabled", false))
	}

	span.SetAttributes(
		attribute.String("http.url", url),
		attribute.String("http.method", http.MethodPost),
		attribute.Int("request.size_bytes", len(reqBody)),
		attribute.Int("streams_count", len(lokiReq.Streams)),
		attribute.Int("log_lines_count", lines),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fleetotel.RecordError(span, err, fleetotel.ErrorTypeNetwork, true)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("Loki returned status %d", resp.StatusCode)
		fleetotel.RecordError(span, err, fleetotel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return err
	}

	fleetotel.SetSpanOk(span)
	return nil
}

// GPSLine renders a GPS sample as the JSON log line stored in Loki.
func GPSLine(l types.GPSLog, badge string) (string, error) {
	line := map[string]interface{}{
		"log_id":    l.LogID,
		"bus_id":    l.BusID,
		"route_id":  l.RouteID,
		"latitude":  l.Latitude,
		"longitude": l.Longitude,
		"speed":     l.Speed,
		"direction": l.Direction,
		"geohash":   l.Geohash,
		"timestamp": l.Timestamp.UTC().Format(time.RFC3339),
	}
	if l.StopID != "" {
		line["stop_id"] = l.StopID
	}
	if badge != "" {
		line["bus_image"] = badge
	}

	out, err := json.Marshal(line)
	if err != nil {
		return "", fmt.Errorf("failed to marshal GPS log %d: %w", l.LogID, err)
	}
	return string(out), nil
}

// AlertLine renders an alert as a JSON log line.
func AlertLine(a types.Alert) (string, error) {
	out, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to marshal alert %s: %w", a.ID, err)
	}
	return string(out), nil
}
