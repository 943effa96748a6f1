package api

import (
	"net/http"
	"strings"

	"fleetsim/pkg/gtfsrt"
	"fleetsim/pkg/logging"
	"fleetsim/pkg/siri"
	"fleetsim/pkg/types"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	polyline "github.com/twpayne/go-polyline"
)

// allNotifications is the id that marks every notification read.
const allNotifications = "all"

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, map[string]interface{}{
		"status": "ok",
		"ticks":  s.fleet.Ticks(),
		"speed":  s.fleet.SimulationSpeed(),
	})
}

func (s *Server) busesHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, s.fleet.GetLiveBusData())
}

type busDetail struct {
	types.Bus
	RouteProgress float64 `json:"route_progress"`
}

func (s *Server) busHandler(w http.ResponseWriter, r *http.Request) {
	id, err := busIDParam(r)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	bus, err := s.fleet.GetBus(id)
	if err != nil {
		s.engineError(w, r, err)
		return
	}
	progress, err := s.fleet.GetRouteProgress(id)
	if err != nil {
		s.engineError(w, r, err)
		return
	}

	s.sendResponse(w, r, busDetail{Bus: bus, RouteProgress: progress})
}

func (s *Server) badgeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := busIDParam(r)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	bus, err := s.fleet.GetBus(id)
	if err != nil {
		s.engineError(w, r, err)
		return
	}

	writeSVG(w, s.badges.BusBadge(bus))
}

func (s *Server) statusBadgeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := busIDParam(r)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	bus, err := s.fleet.GetBus(id)
	if err != nil {
		s.engineError(w, r, err)
		return
	}

	writeSVG(w, s.badges.StatusBadge(bus.RouteID, bus.Status))
}

func writeSVG(w http.ResponseWriter, svg string) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(svg))
}

type breakdownRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

func (s *Server) breakdownHandler(w http.ResponseWriter, r *http.Request) {
	id, err := busIDParam(r)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req breakdownRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}

	alert, err := s.fleet.TriggerBreakdown(r.Context(), id, req.Reason)
	if err != nil {
		s.engineError(w, r, err)
		return
	}
	s.sendResponse(w, r, alert)
}

type conditionsRequest struct {
	Weather types.WeatherImpact    `json:"weather" validate:"required"`
	Traffic types.TrafficCondition `json:"traffic" validate:"required"`
}

func (s *Server) conditionsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := busIDParam(r)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req conditionsRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}

	if err := s.fleet.SetBusConditions(id, req.Weather, req.Traffic); err != nil {
		s.engineError(w, r, err)
		return
	}

	bus, err := s.fleet.GetBus(id)
	if err != nil {
		s.engineError(w, r, err)
		return
	}
	s.sendResponse(w, r, bus)
}

type routeView struct {
	types.Route
	// Polyline is the stop sequence in Google's encoded polyline format.
	Polyline string `json:"polyline"`
}

func (s *Server) routesHandler(w http.ResponseWriter, r *http.Request) {
	routes := s.fleet.GetRoutes()
	views := make([]routeView, 0, len(routes))

	for _, route := range routes {
		coords := make([][]float64, 0, len(route.Stops))
		for _, c := range route.Coordinates() {
			coords = append(coords, []float64{c.Lat, c.Lng})
		}
		views = append(views, routeView{
			Route:    route,
			Polyline: string(polyline.EncodeCoords(coords)),
		})
	}

	s.sendResponse(w, r, views)
}

func (s *Server) alertsHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, s.fleet.GetAlerts())
}

func (s *Server) resolveAlertHandler(w http.ResponseWriter, r *http.Request) {
	if !s.fleet.ResolveAlert(idParam(r)) {
		s.errorResponse(w, r, http.StatusNotFound, "alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dismissAlertHandler(w http.ResponseWriter, r *http.Request) {
	if !s.fleet.DismissAlert(idParam(r)) {
		s.errorResponse(w, r, http.StatusNotFound, "alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) predictionsHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, s.fleet.GetPredictions())
}

func (s *Server) ticketSalesHandler(w http.ResponseWriter, r *http.Request) {
	hours, err := intQuery(r, "hours", 24)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.sendResponse(w, r, s.fleet.GetTicketSales(hours))
}

func (s *Server) gpsLogsHandler(w http.ResponseWriter, r *http.Request) {
	hours, err := intQuery(r, "hours", 24)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cell := strings.ToLower(r.URL.Query().Get("geohash"))
	if !isGeohash(cell) {
		s.errorResponse(w, r, http.StatusBadRequest, "geohash must use the base32 geohash alphabet")
		return
	}

	s.sendResponse(w, r, s.fleet.GetGPSLogs(hours, cell))
}

const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

func isGeohash(s string) bool {
	if len(s) > 12 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(geohashAlphabet, c) {
			return false
		}
	}
	return true
}

func (s *Server) scheduleComparisonHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, s.fleet.GetScheduleComparison())
}

func (s *Server) ridershipComparisonHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, s.fleet.GetRidershipComparison())
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, s.fleet.Stats())
}

type speedBody struct {
	Speed float64 `json:"speed" validate:"gt=0"`
}

func (s *Server) speedHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, speedBody{Speed: s.fleet.SimulationSpeed()})
}

func (s *Server) setSpeedHandler(w http.ResponseWriter, r *http.Request) {
	var req speedBody
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	s.sendResponse(w, r, speedBody{Speed: s.fleet.SetSimulationSpeed(req.Speed)})
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	s.fleet.Reset()
	logging.FromContext(r.Context()).Info("Simulation reset via API")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, s.notifications.Notifications())
}

func (s *Server) notificationStatsHandler(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, s.notifications.Stats())
}

func (s *Server) readNotificationHandler(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	if id == allNotifications {
		s.notifications.MarkAllAsRead()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !s.notifications.MarkAsRead(id) {
		s.errorResponse(w, r, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dismissNotificationHandler(w http.ResponseWriter, r *http.Request) {
	if !s.notifications.Dismiss(idParam(r)) {
		s.errorResponse(w, r, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) vehiclePositionsFeedHandler(w http.ResponseWriter, r *http.Request) {
	msg := gtfsrt.VehiclePositions(s.fleet.GetLiveBusData(), s.clock.Now())
	s.sendFeed(w, r, msg)
}

func (s *Server) alertsFeedHandler(w http.ResponseWriter, r *http.Request) {
	msg := gtfsrt.Alerts(s.fleet.GetAlerts(), s.clock.Now(), s.config.AlertTTL)
	s.sendFeed(w, r, msg)
}

func (s *Server) sendFeed(w http.ResponseWriter, r *http.Request, msg *gtfsrtpb.FeedMessage) {
	data, err := gtfsrt.Marshal(r.Context(), msg)
	if err != nil {
		s.engineError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", gtfsrt.ContentType)
	_, _ = w.Write(data)
}

func (s *Server) siriFeedHandler(w http.ResponseWriter, r *http.Request) {
	data, err := siri.Encode(r.Context(), s.fleet.GetLiveBusData(), s.clock.Now(), s.config.FeedValidity)
	if err != nil {
		s.engineError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(data)
}
