package siri

import (
	"context"
	"strings"
	"testing"
	"time"

	"fleetsim/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

func sampleBuses() []types.Bus {
	return []types.Bus{
		{
			BusID:        1,
			LicensePlate: "BUS-001",
			RouteID:      1,
			Route: types.RouteSummary{
				Source:      "Ahmedabad Railway Station",
				Destination: "Airport",
			},
			Status: types.StatusDelayed,
			CurrentPosition: types.Position{
				Latitude:  23.0225,
				Longitude: 72.5714,
				Speed:     36,
				Direction: 45.3,
				Timestamp: now.Add(-5 * time.Second),
			},
			OccupancyPercentage: 75,
			Schedule:            types.Schedule{DelayMinutes: 7},
			IsOperational:       true,
			NextStop:            "Gandhi Ashram",
			EstimatedArrival:    now.Add(6 * time.Minute),
		},
		{
			BusID:               2,
			LicensePlate:        "BUS-002",
			RouteID:             1,
			Status:              types.StatusBreakdown,
			OccupancyPercentage: 100,
			Schedule:            types.Schedule{DelayMinutes: types.BreakdownDelayMinutes},
			IsOperational:       false,
			NextStop:            "Law Garden & Market",
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ctx := context.Background()

	data, err := Encode(ctx, sampleBuses(), now, time.Minute)
	require.NoError(t, err)

	xml := string(data)
	assert.True(t, strings.HasPrefix(xml, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, xml, "<Siri")
	assert.Contains(t, xml, `xmlns="http://www.siri.org.uk/siri"`)
	assert.Contains(t, xml, "<VehicleMonitoringDelivery")
	assert.Contains(t, xml, "Law Garden &amp; Market")

	vehicles, err := decode(ctx, data)
	require.NoError(t, err)
	require.Len(t, vehicles, 2)

	byRef := map[string]VehicleActivity{}
	for _, v := range vehicles {
		byRef[v.VehicleRef] = v
	}

	first := byRef["BUS-001"]
	assert.Equal(t, "1", first.LineRef)
	assert.Equal(t, "Route 1", first.PublishedLineName)
	assert.Equal(t, "Ahmedabad Railway Station", first.OriginName)
	assert.Equal(t, "Airport", first.DestinationName)
	assert.InDelta(t, 23.0225, first.Latitude, 1e-6)
	assert.InDelta(t, 72.5714, first.Longitude, 1e-6)
	assert.InDelta(t, 45.3, first.Bearing, 1e-9)
	assert.InDelta(t, 10.0, first.Velocity, 1e-9)
	assert.Equal(t, "standingAvailable", first.Occupancy)
	assert.Equal(t, "delayed", first.ProgressStatus)
	assert.Equal(t, "PT7M", first.Delay)
	assert.Equal(t, "2025-03-10T08:29:55Z", first.RecordedAtTime)
	assert.Equal(t, "2025-03-10T08:31:00Z", first.ValidUntilTime)
	require.NotNil(t, first.MonitoredCall)
	assert.Equal(t, "Gandhi Ashram", first.MonitoredCall.StopPointName)
	assert.Equal(t, "2025-03-10T08:36:00Z", first.MonitoredCall.ExpectedArrivalTime)

	second := byRef["BUS-002"]
	assert.Equal(t, "notRunning", second.ProgressStatus)
	assert.Equal(t, "full", second.Occupancy)
	assert.Empty(t, second.Delay)
	assert.Equal(t, "2025-03-10T08:30:00Z", second.RecordedAtTime)
	require.NotNil(t, second.MonitoredCall)
	assert.Equal(t, "Law Garden & Market", second.MonitoredCall.StopPointName)
	assert.Empty(t, second.MonitoredCall.ExpectedArrivalTime)
}

func TestDecodeSingleActivity(t *testing.T) {
	data, err := Encode(context.Background(), sampleBuses()[:1], now, time.Minute)
	require.NoError(t, err)

	vehicles, err := decode(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "BUS-001", vehicles[0].VehicleRef)
}

func TestDecodeMissingSections(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"no siri root", `<Other><Thing>1</Thing></Other>`},
		{"no service delivery", `<Siri version="2.0"><Other/></Siri>`},
		{"no vm delivery", `<Siri><ServiceDelivery><ProducerRef>X</ProducerRef></ServiceDelivery></Siri>`},
		{"no activities", `<Siri><ServiceDelivery><VehicleMonitoringDelivery><ResponseTimestamp>x</ResponseTimestamp></VehicleMonitoringDelivery></ServiceDelivery></Siri>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vehicles, err := decode(context.Background(), []byte(tt.xml))
			require.NoError(t, err)
			assert.Empty(t, vehicles)
		})
	}
}

func TestDecodeInvalidXML(t *testing.T) {
	_, err := decode(context.Background(), []byte("<Siri></Other>"))
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "PT0M", Duration(0))
	assert.Equal(t, "PT12M", Duration(12))
	assert.Equal(t, "-PT4M", Duration(-4))
}

func TestOccupancyLevel(t *testing.T) {
	assert.Equal(t, "seatsAvailable", occupancyLevel(0))
	assert.Equal(t, "seatsAvailable", occupancyLevel(69))
	assert.Equal(t, "standingAvailable", occupancyLevel(70))
	assert.Equal(t, "full", occupancyLevel(100))
}
