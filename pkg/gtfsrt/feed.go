// Package gtfsrt publishes the simulated fleet as GTFS-Realtime feeds.
package gtfsrt

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fleetsim/pkg/types"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/proto"
)

const (
	Version = "2.0"

	// ContentType is what the feed endpoints serve.
	ContentType = "application/x-protobuf"

	language = "en"
)

var tracer trace.Tracer = otel.Tracer("gtfsrt")

func header(now time.Time) *gtfsrtpb.FeedHeader {
	return &gtfsrtpb.FeedHeader{
		GtfsRealtimeVersion: proto.String(Version),
		Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
		Timestamp:           proto.Uint64(unix(now)),
	}
}

// VehiclePositions builds a full-dataset feed with one entity per bus.
func VehiclePositions(buses []types.Bus, now time.Time) *gtfsrtpb.FeedMessage {
	msg := &gtfsrtpb.FeedMessage{Header: header(now)}

	for _, bus := range buses {
		id := strconv.Itoa(bus.BusID)
		stamp := bus.CurrentPosition.Timestamp
		if stamp.IsZero() {
			stamp = now
		}

		vp := &gtfsrtpb.VehiclePosition{
			Trip: &gtfsrtpb.TripDescriptor{
				RouteId: proto.String(strconv.Itoa(bus.RouteID)),
			},
			Vehicle: &gtfsrtpb.VehicleDescriptor{
				Id:           proto.String(id),
				Label:        proto.String(fmt.Sprintf("Route %d bus %d", bus.RouteID, bus.BusID)),
				LicensePlate: proto.String(bus.LicensePlate),
			},
			Position: &gtfsrtpb.Position{
				Latitude:  proto.Float32(float32(bus.CurrentPosition.Latitude)),
				Longitude: proto.Float32(float32(bus.CurrentPosition.Longitude)),
				Bearing:   proto.Float32(float32(bus.CurrentPosition.Direction)),
				Speed:     proto.Float32(float32(bus.CurrentPosition.Speed / 3.6)),
			},
			CurrentStatus:   stopStatus(bus).Enum(),
			Timestamp:       proto.Uint64(unix(stamp)),
			CongestionLevel: congestion(bus.TrafficCondition).Enum(),
			OccupancyStatus: occupancy(bus.OccupancyPercentage).Enum(),
		}

		msg.Entity = append(msg.Entity, &gtfsrtpb.FeedEntity{
			Id:      proto.String("vehicle-" + id),
			Vehicle: vp,
		})
	}

	return msg
}

// Alerts builds a full-dataset feed from the given alerts. Resolved alerts
// are left out.
func Alerts(alerts []types.Alert, now time.Time, ttl time.Duration) *gtfsrtpb.FeedMessage {
	msg := &gtfsrtpb.FeedMessage{Header: header(now)}

	for _, a := range alerts {
		if a.Resolved {
			continue
		}

		period := &gtfsrtpb.TimeRange{Start: proto.Uint64(unix(a.Timestamp))}
		if ttl > 0 {
			period.End = proto.Uint64(unix(a.Timestamp.Add(ttl)))
		}

		pb := &gtfsrtpb.Alert{
			ActivePeriod: []*gtfsrtpb.TimeRange{period},
			InformedEntity: []*gtfsrtpb.EntitySelector{
				{RouteId: proto.String(strconv.Itoa(a.RouteID))},
			},
			Cause:           cause(a.Type).Enum(),
			Effect:          effect(a).Enum(),
			HeaderText:      translated(a.Title),
			DescriptionText: translated(a.Message),
			SeverityLevel:   severity(a.Severity).Enum(),
		}

		msg.Entity = append(msg.Entity, &gtfsrtpb.FeedEntity{
			Id:    proto.String(a.ID),
			Alert: pb,
		})
	}

	return msg
}

// Marshal encodes a feed message in the protobuf wire format.
func Marshal(ctx context.Context, msg *gtfsrtpb.FeedMessage) ([]byte, error) {
	_, span := tracer.Start(ctx, "gtfsrt.marshal",
		trace.WithAttributes(attribute.Int("entities_count", len(msg.GetEntity()))),
	)
	defer span.End()

	data, err := proto.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to marshal GTFS-RT feed: %w", err)
	}

	span.SetAttributes(attribute.Int("feed_size_bytes", len(data)))
	return data, nil
}

func translated(text string) *gtfsrtpb.TranslatedString {
	return &gtfsrtpb.TranslatedString{
		Translation: []*gtfsrtpb.TranslatedString_Translation{
			{Text: proto.String(text), Language: proto.String(language)},
		},
	}
}

func unix(t time.Time) uint64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}

func stopStatus(bus types.Bus) gtfsrtpb.VehiclePosition_VehicleStopStatus {
	if !bus.IsOperational || bus.CurrentPosition.Speed == 0 {
		return gtfsrtpb.VehiclePosition_STOPPED_AT
	}
	return gtfsrtpb.VehiclePosition_IN_TRANSIT_TO
}

func congestion(t types.TrafficCondition) gtfsrtpb.VehiclePosition_CongestionLevel {
	switch t {
	case types.TrafficClear, types.TrafficNormal:
		return gtfsrtpb.VehiclePosition_RUNNING_SMOOTHLY
	case types.TrafficHeavy:
		return gtfsrtpb.VehiclePosition_CONGESTION
	case types.TrafficJam:
		return gtfsrtpb.VehiclePosition_SEVERE_CONGESTION
	default:
		return gtfsrtpb.VehiclePosition_UNKNOWN_CONGESTION_LEVEL
	}
}

func occupancy(percent int) gtfsrtpb.VehiclePosition_OccupancyStatus {
	switch {
	case percent <= 0:
		return gtfsrtpb.VehiclePosition_EMPTY
	case percent < 50:
		return gtfsrtpb.VehiclePosition_MANY_SEATS_AVAILABLE
	case percent < 70:
		return gtfsrtpb.VehiclePosition_FEW_SEATS_AVAILABLE
	case percent < 100:
		return gtfsrtpb.VehiclePosition_STANDING_ROOM_ONLY
	default:
		return gtfsrtpb.VehiclePosition_CRUSHED_STANDING_ROOM_ONLY
	}
}

func cause(t types.AlertType) gtfsrtpb.Alert_Cause {
	switch t {
	case types.AlertWeather:
		return gtfsrtpb.Alert_WEATHER
	case types.AlertBreakdown:
		return gtfsrtpb.Alert_TECHNICAL_PROBLEM
	case types.AlertMaintenance:
		return gtfsrtpb.Alert_MAINTENANCE
	case types.AlertTraffic, types.AlertCongestion, types.AlertDelay:
		return gtfsrtpb.Alert_OTHER_CAUSE
	default:
		return gtfsrtpb.Alert_UNKNOWN_CAUSE
	}
}

func effect(a types.Alert) gtfsrtpb.Alert_Effect {
	switch a.Type {
	case types.AlertBreakdown:
		if a.Severity == types.SeverityCritical {
			return gtfsrtpb.Alert_NO_SERVICE
		}
		return gtfsrtpb.Alert_REDUCED_SERVICE
	case types.AlertCancellation:
		return gtfsrtpb.Alert_NO_SERVICE
	case types.AlertReschedule:
		return gtfsrtpb.Alert_MODIFIED_SERVICE
	case types.AlertDelay, types.AlertWeather, types.AlertTraffic, types.AlertCongestion:
		if a.Severity == types.SeverityLow {
			return gtfsrtpb.Alert_OTHER_EFFECT
		}
		return gtfsrtpb.Alert_SIGNIFICANT_DELAYS
	default:
		return gtfsrtpb.Alert_UNKNOWN_EFFECT
	}
}

func severity(s types.Severity) gtfsrtpb.Alert_SeverityLevel {
	switch s {
	case types.SeverityLow:
		return gtfsrtpb.Alert_INFO
	case types.SeverityMedium, types.SeverityHigh:
		return gtfsrtpb.Alert_WARNING
	case types.SeverityCritical:
		return gtfsrtpb.Alert_SEVERE
	default:
		return gtfsrtpb.Alert_UNKNOWN_SEVERITY
	}
}
