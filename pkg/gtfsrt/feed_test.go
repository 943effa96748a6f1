package gtfsrt

import (
	"context"
	"testing"
	"time"

	"fleetsim/pkg/types"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

var now = time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

func TestVehiclePositionsRoundTrip(t *testing.T) {
	buses := []types.Bus{
		{
			BusID:        4,
			LicensePlate: "BUS-004",
			RouteID:      2,
			CurrentPosition: types.Position{
				Latitude:  23.0225,
				Longitude: 72.5714,
				Speed:     36,
				Direction: 90,
				Timestamp: now.Add(-5 * time.Second),
			},
			OccupancyPercentage: 75,
			TrafficCondition:    types.TrafficJam,
			IsOperational:       true,
		},
		{
			BusID:            5,
			RouteID:          3,
			IsOperational:    false,
			TrafficCondition: types.TrafficNormal,
		},
	}

	data, err := Marshal(context.Background(), VehiclePositions(buses, now))
	require.NoError(t, err)

	var fm gtfsrtpb.FeedMessage
	require.NoError(t, proto.Unmarshal(data, &fm))

	assert.Equal(t, Version, fm.GetHeader().GetGtfsRealtimeVersion())
	assert.Equal(t, gtfsrtpb.FeedHeader_FULL_DATASET, fm.GetHeader().GetIncrementality())
	assert.Equal(t, uint64(now.Unix()), fm.GetHeader().GetTimestamp())
	require.Len(t, fm.GetEntity(), 2)

	first := fm.GetEntity()[0]
	assert.Equal(t, "vehicle-4", first.GetId())
	vp := first.GetVehicle()
	require.NotNil(t, vp)
	assert.Equal(t, "2", vp.GetTrip().GetRouteId())
	assert.Equal(t, "4", vp.GetVehicle().GetId())
	assert.Equal(t, "BUS-004", vp.GetVehicle().GetLicensePlate())
	assert.InDelta(t, 23.0225, vp.GetPosition().GetLatitude(), 1e-4)
	assert.InDelta(t, 72.5714, vp.GetPosition().GetLongitude(), 1e-4)
	assert.InDelta(t, 10.0, vp.GetPosition().GetSpeed(), 1e-4)
	assert.Equal(t, uint64(now.Add(-5*time.Second).Unix()), vp.GetTimestamp())
	assert.Equal(t, gtfsrtpb.VehiclePosition_IN_TRANSIT_TO, vp.GetCurrentStatus())
	assert.Equal(t, gtfsrtpb.VehiclePosition_SEVERE_CONGESTION, vp.GetCongestionLevel())
	assert.Equal(t, gtfsrtpb.VehiclePosition_STANDING_ROOM_ONLY, vp.GetOccupancyStatus())

	second := fm.GetEntity()[1].GetVehicle()
	assert.Equal(t, gtfsrtpb.VehiclePosition_STOPPED_AT, second.GetCurrentStatus())
	assert.Equal(t, gtfsrtpb.VehiclePosition_EMPTY, second.GetOccupancyStatus())
	assert.Equal(t, uint64(now.Unix()), second.GetTimestamp())
}

func TestAlertsFeed(t *testing.T) {
	alerts := []types.Alert{
		{
			ID:        "a-1",
			Type:      types.AlertBreakdown,
			Severity:  types.SeverityCritical,
			Title:     "Bus Breakdown",
			Message:   "Bus 3 broke down",
			RouteID:   2,
			Timestamp: now,
		},
		{
			ID:        "a-2",
			Type:      types.AlertWeather,
			Severity:  types.SeverityHigh,
			RouteID:   1,
			Timestamp: now,
			Resolved:  true,
		},
		{
			ID:        "a-3",
			Type:      types.AlertTraffic,
			Severity:  types.SeverityLow,
			Title:     "Traffic Update",
			RouteID:   4,
			Timestamp: now,
		},
	}

	data, err := Marshal(context.Background(), Alerts(alerts, now, 5*time.Minute))
	require.NoError(t, err)

	var fm gtfsrtpb.FeedMessage
	require.NoError(t, proto.Unmarshal(data, &fm))
	require.Len(t, fm.GetEntity(), 2)

	breakdown := fm.GetEntity()[0]
	assert.Equal(t, "a-1", breakdown.GetId())
	a := breakdown.GetAlert()
	require.NotNil(t, a)
	assert.Equal(t, gtfsrtpb.Alert_TECHNICAL_PROBLEM, a.GetCause())
	assert.Equal(t, gtfsrtpb.Alert_NO_SERVICE, a.GetEffect())
	assert.Equal(t, gtfsrtpb.Alert_SEVERE, a.GetSeverityLevel())
	require.Len(t, a.GetInformedEntity(), 1)
	assert.Equal(t, "2", a.GetInformedEntity()[0].GetRouteId())
	require.Len(t, a.GetActivePeriod(), 1)
	assert.Equal(t, uint64(now.Unix()), a.GetActivePeriod()[0].GetStart())
	assert.Equal(t, uint64(now.Add(5*time.Minute).Unix()), a.GetActivePeriod()[0].GetEnd())
	require.Len(t, a.GetHeaderText().GetTranslation(), 1)
	assert.Equal(t, "Bus Breakdown", a.GetHeaderText().GetTranslation()[0].GetText())
	assert.Equal(t, "en", a.GetHeaderText().GetTranslation()[0].GetLanguage())
	assert.Equal(t, "Bus 3 broke down", a.GetDescriptionText().GetTranslation()[0].GetText())

	traffic := fm.GetEntity()[1].GetAlert()
	assert.Equal(t, gtfsrtpb.Alert_OTHER_CAUSE, traffic.GetCause())
	assert.Equal(t, gtfsrtpb.Alert_OTHER_EFFECT, traffic.GetEffect())
	assert.Equal(t, gtfsrtpb.Alert_INFO, traffic.GetSeverityLevel())
}

func TestAlertsWithoutTTLHaveOpenPeriod(t *testing.T) {
	fm := Alerts([]types.Alert{{ID: "x", Type: types.AlertDelay, Severity: types.SeverityHigh, Timestamp: now}}, now, 0)
	require.Len(t, fm.GetEntity(), 1)

	period := fm.GetEntity()[0].GetAlert().GetActivePeriod()[0]
	assert.Nil(t, period.End)
	assert.Equal(t, gtfsrtpb.Alert_SIGNIFICANT_DELAYS, fm.GetEntity()[0].GetAlert().GetEffect())
}

func TestOccupancyStatus(t *testing.T) {
	tests := []struct {
		percent int
		want    gtfsrtpb.VehiclePosition_OccupancyStatus
	}{
		{0, gtfsrtpb.VehiclePosition_EMPTY},
		{30, gtfsrtpb.VehiclePosition_MANY_SEATS_AVAILABLE},
		{60, gtfsrtpb.VehiclePosition_FEW_SEATS_AVAILABLE},
		{90, gtfsrtpb.VehiclePosition_STANDING_ROOM_ONLY},
		{100, gtfsrtpb.VehiclePosition_CRUSHED_STANDING_ROOM_ONLY},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, occupancy(tt.percent), "percent %d", tt.percent)
	}
}

func TestEmptyFeed(t *testing.T) {
	data, err := Marshal(context.Background(), VehiclePositions(nil, now))
	require.NoError(t, err)

	var fm gtfsrtpb.FeedMessage
	require.NoError(t, proto.Unmarshal(data, &fm))
	assert.Empty(t, fm.GetEntity())
	assert.Equal(t, Version, fm.GetHeader().GetGtfsRealtimeVersion())
}
