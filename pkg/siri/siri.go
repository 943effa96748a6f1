// Package siri renders the live fleet as a SIRI Vehicle Monitoring delivery
// and reads such deliveries back.
package siri

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fleetsim/pkg/types"

	"github.com/clbanning/mxj/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	Version   = "2.0"
	Namespace = "http://www.siri.org.uk/siri"

	// ProducerRef identifies the simulator in every delivery.
	ProducerRef = "FLEETSIM"
)

// VehicleActivity is the subset of a SIRI-VM VehicleActivity the simulator
// produces.
type VehicleActivity struct {
	RecordedAtTime    string    `json:"recorded_at_time"`
	ValidUntilTime    string    `json:"valid_until_time"`
	LineRef           string    `json:"line_ref"`
	DirectionRef      string    `json:"direction_ref"`
	PublishedLineName string    `json:"published_line_name,omitempty"`
	OperatorRef       string    `json:"operator_ref"`
	OriginName        string    `json:"origin_name,omitempty"`
	DestinationName   string    `json:"destination_name,omitempty"`
	VehicleRef        string    `json:"vehicle_ref"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Bearing           float64   `json:"bearing"`
	Velocity          float64   `json:"velocity"` // m/s
	Occupancy         string    `json:"occupancy,omitempty"`
	ProgressStatus    string    `json:"progress_status,omitempty"`
	Delay             string    `json:"delay,omitempty"`
	MonitoredCall     *StopCall `json:"monitored_call,omitempty"`
}

type StopCall struct {
	StopPointName       string `json:"stop_point_name"`
	ExpectedArrivalTime string `json:"expected_arrival_time,omitempty"`
}

var tracer trace.Tracer = otel.Tracer("siri")

func init() {
	// Stop names are free text.
	mxj.XMLEscapeChars(true)
}

// Encode builds a SIRI-VM ServiceDelivery for buses. Each activity is valid
// for validFor after now.
func Encode(ctx context.Context, buses []types.Bus, now time.Time, validFor time.Duration) ([]byte, error) {
	_, span := tracer.Start(ctx, "siri.encode",
		trace.WithAttributes(attribute.Int("vehicles_count", len(buses))),
	)
	defer span.End()

	activities := make([]interface{}, 0, len(buses))
	for _, bus := range buses {
		activities = append(activities, activityMap(bus, now, validFor))
	}

	stamp := now.UTC().Format(time.RFC3339)
	doc := mxj.Map{
		"Siri": map[string]interface{}{
			"-version": Version,
			"-xmlns":   Namespace,
			"ServiceDelivery": map[string]interface{}{
				"ResponseTimestamp": stamp,
				"ProducerRef":       ProducerRef,
				"VehicleMonitoringDelivery": map[string]interface{}{
					"-version":          Version,
					"ResponseTimestamp": stamp,
					"VehicleActivity":   activities,
				},
			},
		},
	}

	out, err := doc.XmlIndent("", "  ")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to encode SIRI-VM: %w", err)
	}

	span.SetAttributes(attribute.Int("xml_size_bytes", len(out)))
	return append([]byte(xmlHeader), out...), nil
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

func activityMap(bus types.Bus, now time.Time, validFor time.Duration) map[string]interface{} {
	journey := map[string]interface{}{
		"LineRef":           strconv.Itoa(bus.RouteID),
		"DirectionRef":      "outbound",
		"PublishedLineName": fmt.Sprintf("Route %d", bus.RouteID),
		"OperatorRef":       ProducerRef,
		"OriginName":        bus.Route.Source,
		"DestinationName":   bus.Route.Destination,
		"VehicleRef":        bus.LicensePlate,
		"VehicleLocation": map[string]interface{}{
			"Longitude": formatFloat(bus.CurrentPosition.Longitude, 6),
			"Latitude":  formatFloat(bus.CurrentPosition.Latitude, 6),
		},
		"Bearing":        formatFloat(bus.CurrentPosition.Direction, 1),
		"Velocity":       formatFloat(bus.CurrentPosition.Speed/3.6, 2),
		"Occupancy":      occupancyLevel(bus.OccupancyPercentage),
		"ProgressStatus": progressStatus(bus),
	}
	if bus.IsOperational {
		journey["Delay"] = Duration(bus.Schedule.DelayMinutes)
	}
	if bus.NextStop != "" {
		call := map[string]interface{}{"StopPointName": bus.NextStop}
		if !bus.EstimatedArrival.IsZero() {
			call["ExpectedArrivalTime"] = bus.EstimatedArrival.UTC().Format(time.RFC3339)
		}
		journey["MonitoredCall"] = call
	}

	recorded := bus.CurrentPosition.Timestamp
	if recorded.IsZero() {
		recorded = now
	}

	return map[string]interface{}{
		"RecordedAtTime":          recorded.UTC().Format(time.RFC3339),
		"ValidUntilTime":          now.Add(validFor).UTC().Format(time.RFC3339),
		"MonitoredVehicleJourney": journey,
	}
}

func occupancyLevel(percent int) string {
	switch {
	case percent >= 100:
		return "full"
	case percent >= 70:
		return "standingAvailable"
	default:
		return "seatsAvailable"
	}
}

func progressStatus(bus types.Bus) string {
	if !bus.IsOperational {
		return "notRunning"
	}
	if bus.Status == types.StatusDelayed {
		return "delayed"
	}
	return "inProgress"
}

// Duration formats a whole number of minutes as an xs:duration, e.g. PT5M or
// -PT4M.
func Duration(minutes int) string {
	if minutes < 0 {
		return fmt.Sprintf("-PT%dM", -minutes)
	}
	return fmt.Sprintf("PT%dM", minutes)
}

func formatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// decode extracts the vehicle activities from a SIRI-VM document. Missing
// sections yield an empty result rather than an error.
func decode(ctx context.Context, data []byte) ([]VehicleActivity, error) {
	_, span := tracer.Start(ctx, "siri.decode",
		trace.WithAttributes(attribute.Int("xml_size_bytes", len(data))),
	)
	defer span.End()

	xmlMap, err := mxj.NewMapXml(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	vehicles := []VehicleActivity{}

	siri, ok := xmlMap["Siri"].(map[string]interface{})
	if !ok {
		return vehicles, nil
	}
	delivery, ok := siri["ServiceDelivery"].(map[string]interface{})
	if !ok {
		return vehicles, nil
	}
	vm, ok := delivery["VehicleMonitoringDelivery"].(map[string]interface{})
	if !ok {
		return vehicles, nil
	}

	var raw []interface{}
	switch va := vm["VehicleActivity"].(type) {
	case []interface{}:
		raw = va
	case map[string]interface{}:
		raw = []interface{}{va}
	}

	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			vehicles = append(vehicles, parseActivity(m))
		}
	}

	span.SetAttributes(attribute.Int("vehicles_count", len(vehicles)))
	return vehicles, nil
}

func parseActivity(activity map[string]interface{}) VehicleActivity {
	v := VehicleActivity{
		RecordedAtTime: str(activity, "RecordedAtTime"),
		ValidUntilTime: str(activity, "ValidUntilTime"),
	}

	mvj, ok := activity["MonitoredVehicleJourney"].(map[string]interface{})
	if !ok {
		return v
	}

	v.LineRef = str(mvj, "LineRef")
	v.DirectionRef = str(mvj, "DirectionRef")
	v.PublishedLineName = str(mvj, "PublishedLineName")
	v.OperatorRef = str(mvj, "OperatorRef")
	v.OriginName = str(mvj, "OriginName")
	v.DestinationName = str(mvj, "DestinationName")
	v.VehicleRef = str(mvj, "VehicleRef")
	v.Bearing = number(mvj, "Bearing")
	v.Velocity = number(mvj, "Velocity")
	v.Occupancy = str(mvj, "Occupancy")
	v.ProgressStatus = str(mvj, "ProgressStatus")
	v.Delay = str(mvj, "Delay")

	if loc, ok := mvj["VehicleLocation"].(map[string]interface{}); ok {
		v.Latitude = number(loc, "Latitude")
		v.Longitude = number(loc, "Longitude")
	}
	if mc, ok := mvj["MonitoredCall"].(map[string]interface{}); ok {
		if name := str(mc, "StopPointName"); name != "" {
			v.MonitoredCall = &StopCall{
				StopPointName:       name,
				ExpectedArrivalTime: str(mc, "ExpectedArrivalTime"),
			}
		}
	}

	return v
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func number(m map[string]interface{}, key string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(str(m, key)), 64)
	if err != nil {
		return 0
	}
	return f
}
