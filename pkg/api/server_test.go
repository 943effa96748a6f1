package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fleetsim/pkg/catalog"
	"fleetsim/pkg/clock"
	"fleetsim/pkg/notify"
	"fleetsim/pkg/sim"
	"fleetsim/pkg/types"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/clbanning/mxj/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	polyline "github.com/twpayne/go-polyline"
	"google.golang.org/protobuf/proto"
)

var testStart = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	server  *Server
	handler http.Handler
	engine  *sim.Engine
	center  *notify.Center
	clock   *clock.Manual
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewManual(testStart)
	center := notify.NewCenter(notify.DefaultConfig(), clk, logger)

	simCfg := sim.DefaultConfig()
	simCfg.SeedHistory = false
	engine, err := sim.New(simCfg, catalog.Default(), sim.Options{
		Clock:  clk,
		Rand:   rand.New(rand.NewPCG(7, 11)),
		Sink:   center,
		Logger: logger,
	})
	require.NoError(t, err)

	if config.AlertTTL == 0 {
		config.AlertTTL = simCfg.AlertTTL
	}
	server, err := New(config, engine, center, Options{Clock: clk, Logger: logger})
	require.NoError(t, err)

	return &fixture{server: server, handler: server.Handler(), engine: engine, center: center, clock: clk}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{}, nil, nil, Options{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestBuses(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/api/buses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	buses := decode[[]types.Bus](t, rec)
	assert.Len(t, buses, 10)
}

func TestBusDetail(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/api/buses/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, float64(3), body["bus_id"])
	assert.Contains(t, body, "route_progress")
	assert.Contains(t, body, "current_position")

	tests := []struct {
		path   string
		status int
	}{
		{"/api/buses/999", http.StatusNotFound},
		{"/api/buses/abc", http.StatusBadRequest},
		{"/api/buses/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodGet, tt.path, nil)
		assert.Equal(t, tt.status, rec.Code, tt.path)
		errBody := decode[errorBody](t, rec)
		assert.Equal(t, tt.status, errBody.Code)
	}
}

func TestBadge(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/api/buses/1/badge.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<svg"))

	_, err := f.engine.TriggerBreakdown(context.Background(), 1, "Tire puncture")
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/api/buses/1/status.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "R1 BREAKDOWN")

	rec = f.do(t, http.MethodGet, "/api/buses/42/status.svg", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBreakdownFlow(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodPost, "/api/buses/2/breakdown", map[string]string{"reason": "Engine overheating"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	alert := decode[types.Alert](t, rec)
	assert.Equal(t, types.AlertBreakdown, alert.Type)
	assert.Equal(t, types.SeverityCritical, alert.Severity)
	assert.Equal(t, "Engine overheating", alert.BreakdownReason)

	bus := decode[types.Bus](t, f.do(t, http.MethodGet, "/api/buses/2", nil))
	assert.False(t, bus.IsOperational)
	assert.Equal(t, types.StatusBreakdown, bus.Status)

	// The alert reached the notification centre.
	notes := decode[[]types.Notification](t, f.do(t, http.MethodGet, "/api/notifications", nil))
	require.Len(t, notes, 1)
	assert.Equal(t, types.NotificationCritical, notes[0].Severity)

	stats := decode[types.NotificationStats](t, f.do(t, http.MethodGet, "/api/notifications/stats", nil))
	assert.Equal(t, 1, stats.Critical)
	assert.Equal(t, 1, stats.Unread)

	rec = f.do(t, http.MethodPost, "/api/notifications/"+notes[0].ID+"/read", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	stats = decode[types.NotificationStats](t, f.do(t, http.MethodGet, "/api/notifications/stats", nil))
	assert.Equal(t, 0, stats.Unread)

	rec = f.do(t, http.MethodDelete, "/api/notifications/"+notes[0].ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/notifications/"+notes[0].ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBreakdownWithoutBody(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodPost, "/api/buses/4/breakdown", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	alert := decode[types.Alert](t, rec)
	assert.NotEmpty(t, alert.BreakdownReason)

	rec = f.do(t, http.MethodPost, "/api/buses/99/breakdown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, http.MethodPost, "/api/buses/1/breakdown", nil)
	f.do(t, http.MethodPost, "/api/buses/2/breakdown", nil)

	rec := f.do(t, http.MethodPost, "/api/notifications/all/read", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	stats := decode[types.NotificationStats](t, f.do(t, http.MethodGet, "/api/notifications/stats", nil))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 0, stats.Unread)

	rec = f.do(t, http.MethodPost, "/api/notifications/nope/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetConditions(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodPut, "/api/buses/1/conditions", conditionsRequest{Weather: types.WeatherStorm, Traffic: types.TrafficJam})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bus := decode[types.Bus](t, rec)
	assert.Equal(t, types.WeatherStorm, bus.WeatherImpact)
	assert.Equal(t, types.TrafficJam, bus.TrafficCondition)

	rec = f.do(t, http.MethodPut, "/api/buses/1/conditions", map[string]string{"weather": "hail", "traffic": "jam"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/buses/1/conditions", map[string]string{"weather": "rain"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/buses/1/conditions", map[string]string{"weather": "rain", "traffic": "jam", "wind": "strong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutesIncludePolyline(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/api/routes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	routes := decode[[]map[string]interface{}](t, rec)
	require.Len(t, routes, 8)

	encoded, ok := routes[0]["polyline"].(string)
	require.True(t, ok)
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	require.NoError(t, err)

	stops := routes[0]["stops"].([]interface{})
	require.Len(t, coords, len(stops))

	first := stops[0].(map[string]interface{})["location"].(map[string]interface{})
	assert.InDelta(t, first["lat"].(float64), coords[0][0], 1e-5)
	assert.InDelta(t, first["lng"].(float64), coords[0][1], 1e-5)
}

func TestAlertsResolveAndDismiss(t *testing.T) {
	f := newFixture(t, Config{})
	alert := decode[types.Alert](t, f.do(t, http.MethodPost, "/api/buses/5/breakdown", nil))

	alerts := decode[[]types.Alert](t, f.do(t, http.MethodGet, "/api/alerts", nil))
	require.Len(t, alerts, 1)

	rec := f.do(t, http.MethodPost, "/api/alerts/"+alert.ID+"/resolve", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	alerts = decode[[]types.Alert](t, f.do(t, http.MethodGet, "/api/alerts", nil))
	assert.Empty(t, alerts, "resolved alerts are not listed")

	rec = f.do(t, http.MethodDelete, "/api/alerts/"+alert.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/alerts/"+alert.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/alerts/missing/resolve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerQueries(t *testing.T) {
	f := newFixture(t, Config{})
	for i := 0; i < 3; i++ {
		f.clock.Advance(5 * time.Second)
		f.engine.Step(context.Background())
	}

	logs := decode[[]types.GPSLog](t, f.do(t, http.MethodGet, "/api/gps-logs?hours=1", nil))
	assert.Len(t, logs, 30)

	cell := logs[0].Geohash[:4]
	filtered := decode[[]types.GPSLog](t, f.do(t, http.MethodGet, "/api/gps-logs?geohash="+strings.ToUpper(cell), nil))
	require.NotEmpty(t, filtered)
	for _, l := range filtered {
		assert.True(t, strings.HasPrefix(l.Geohash, cell))
	}

	rec := f.do(t, http.MethodGet, "/api/gps-logs?geohash=ailo", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/gps-logs?hours=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/ticket-sales?hours=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode[[]types.TicketSale](t, rec)
	rec = f.do(t, http.MethodGet, "/api/ticket-sales?hours=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Windows longer than a time.Duration can hold return everything.
	all := decode[[]types.GPSLog](t, f.do(t, http.MethodGet, "/api/gps-logs?hours=3000000", nil))
	assert.Len(t, all, 30)
}

func TestReports(t *testing.T) {
	f := newFixture(t, Config{})

	comparison := decode[types.ScheduleComparison](t, f.do(t, http.MethodGet, "/api/schedule/comparison", nil))
	assert.Len(t, comparison.CurrentSchedules, 10)
	assert.Len(t, comparison.OptimizedSchedules, 10)

	ridership := decode[[]types.RidershipComparison](t, f.do(t, http.MethodGet, "/api/ridership/comparison", nil))
	assert.Len(t, ridership, 8)

	predictions := decode[[]types.PredictionData](t, f.do(t, http.MethodGet, "/api/predictions", nil))
	assert.NotEmpty(t, predictions)

	stats := decode[types.FleetStats](t, f.do(t, http.MethodGet, "/api/stats", nil))
	assert.Equal(t, 10, stats.TotalBuses)
}

func TestSimulationSpeed(t *testing.T) {
	f := newFixture(t, Config{})

	speed := decode[speedBody](t, f.do(t, http.MethodGet, "/api/simulation/speed", nil))
	assert.Equal(t, 1.0, speed.Speed)

	rec := f.do(t, http.MethodPut, "/api/simulation/speed", speedBody{Speed: 10})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sim.MaxSimulationSpeed, decode[speedBody](t, rec).Speed)

	rec = f.do(t, http.MethodPut, "/api/simulation/speed", map[string]float64{"speed": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/simulation/reset", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, sim.MaxSimulationSpeed, f.engine.SimulationSpeed())
}

func TestVehiclePositionsFeed(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/feeds/gtfs-rt/vehicle-positions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-protobuf", rec.Header().Get("Content-Type"))

	var fm gtfsrtpb.FeedMessage
	require.NoError(t, proto.Unmarshal(rec.Body.Bytes(), &fm))
	assert.Len(t, fm.GetEntity(), 10)
	assert.Equal(t, uint64(testStart.Unix()), fm.GetHeader().GetTimestamp())
}

func TestAlertsFeed(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, http.MethodPost, "/api/buses/1/breakdown", nil)

	rec := f.do(t, http.MethodGet, "/feeds/gtfs-rt/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fm gtfsrtpb.FeedMessage
	require.NoError(t, proto.Unmarshal(rec.Body.Bytes(), &fm))
	require.Len(t, fm.GetEntity(), 1)
	assert.Equal(t, gtfsrtpb.Alert_TECHNICAL_PROBLEM, fm.GetEntity()[0].GetAlert().GetCause())
}

func TestSIRIFeed(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/feeds/siri-vm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")

	doc, err := mxj.NewMapXml(rec.Body.Bytes())
	require.NoError(t, err)
	activities, err := doc.ValuesForPath("Siri.ServiceDelivery.VehicleMonitoringDelivery.VehicleActivity")
	require.NoError(t, err)
	assert.Len(t, activities, 10)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(t, http.MethodGet, "/api/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/buses", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCompression(t *testing.T) {
	f := newFixture(t, Config{CompressionMinSize: 256})

	req := httptest.NewRequest(http.MethodGet, "/api/buses", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	var buses []types.Bus
	require.NoError(t, json.Unmarshal(data, &buses))
	assert.Len(t, buses, 10)
}

func TestRateLimitOnMutations(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 1, RateBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, "/api/simulation/reset", nil)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		}
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	// Reads are never throttled.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/stats", nil).Code)
	}
}

func TestListenAndServeShutsDown(t *testing.T) {
	f := newFixture(t, Config{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
