// Package api exposes the simulation over HTTP: JSON endpoints for the
// dashboard plus GTFS-Realtime and SIRI-VM feeds of the live fleet.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fleetsim/pkg/clock"
	"fleetsim/pkg/logging"
	"fleetsim/pkg/render"
	"fleetsim/pkg/types"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Fleet is the engine surface the API serves.
type Fleet interface {
	GetLiveBusData() []types.Bus
	GetBus(busID int) (types.Bus, error)
	GetRouteProgress(busID int) (float64, error)
	GetAlerts() []types.Alert
	ResolveAlert(id string) bool
	DismissAlert(id string) bool
	GetPredictions() []types.PredictionData
	GetRoutes() []types.Route
	GetTicketSales(hours int) []types.TicketSale
	GetGPSLogs(hours int, geohashPrefix string) []types.GPSLog
	GetScheduleComparison() types.ScheduleComparison
	GetRidershipComparison() []types.RidershipComparison
	Stats() types.FleetStats
	TriggerBreakdown(ctx context.Context, busID int, reason string) (types.Alert, error)
	SetBusConditions(busID int, weather types.WeatherImpact, traffic types.TrafficCondition) error
	SetSimulationSpeed(multiplier float64) float64
	SimulationSpeed() float64
	Reset()
	Ticks() uint64
}

// Notifications is the notification centre surface the API serves.
type Notifications interface {
	Notifications() []types.Notification
	Stats() types.NotificationStats
	MarkAsRead(id string) bool
	MarkAllAsRead()
	Dismiss(id string) bool
}

type Config struct {
	Addr string
	// RateLimit is mutating requests per second per client; 0 disables it.
	RateLimit          float64
	RateBurst          int
	CompressionMinSize int
	// AlertTTL bounds the active period published in the GTFS-RT alerts feed.
	AlertTTL time.Duration
	// FeedValidity is how long a SIRI-VM activity stays valid.
	FeedValidity time.Duration
}

type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

type Server struct {
	config        Config
	fleet         Fleet
	notifications Notifications
	clock         clock.Clock
	logger        *slog.Logger
	badges        *render.BadgeGenerator
	limiter       *rateLimiter
	handler       http.Handler
}

func New(config Config, fleet Fleet, notifications Notifications, opts Options) (*Server, error) {
	if fleet == nil {
		return nil, errors.New("fleet is required")
	}
	if notifications == nil {
		return nil, errors.New("notification centre is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.FeedValidity <= 0 {
		config.FeedValidity = time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		config:        config,
		fleet:         fleet,
		notifications: notifications,
		clock:         opts.Clock,
		logger:        opts.Logger.With(slog.String("component", "api")),
		badges:        render.NewBadgeGenerator(),
		limiter:       newRateLimiter(config.RateLimit, config.RateBurst),
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the fully wrapped handler: tracing, request logging,
// compression and finally the router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/healthz", s.healthHandler)

	router.HandlerFunc(http.MethodGet, "/api/buses", s.busesHandler)
	router.HandlerFunc(http.MethodGet, "/api/buses/:id", s.busHandler)
	router.HandlerFunc(http.MethodGet, "/api/buses/:id/badge.svg", s.badgeHandler)
	router.HandlerFunc(http.MethodGet, "/api/buses/:id/status.svg", s.statusBadgeHandler)
	router.Handler(http.MethodPost, "/api/buses/:id/breakdown", s.limiter.wrap(http.HandlerFunc(s.breakdownHandler)))
	router.Handler(http.MethodPut, "/api/buses/:id/conditions", s.limiter.wrap(http.HandlerFunc(s.conditionsHandler)))

	router.HandlerFunc(http.MethodGet, "/api/routes", s.routesHandler)

	router.HandlerFunc(http.MethodGet, "/api/alerts", s.alertsHandler)
	router.Handler(http.MethodPost, "/api/alerts/:id/resolve", s.limiter.wrap(http.HandlerFunc(s.resolveAlertHandler)))
	router.Handler(http.MethodDelete, "/api/alerts/:id", s.limiter.wrap(http.HandlerFunc(s.dismissAlertHandler)))

	router.HandlerFunc(http.MethodGet, "/api/predictions", s.predictionsHandler)
	router.HandlerFunc(http.MethodGet, "/api/ticket-sales", s.ticketSalesHandler)
	router.HandlerFunc(http.MethodGet, "/api/gps-logs", s.gpsLogsHandler)
	router.HandlerFunc(http.MethodGet, "/api/schedule/comparison", s.scheduleComparisonHandler)
	router.HandlerFunc(http.MethodGet, "/api/ridership/comparison", s.ridershipComparisonHandler)
	router.HandlerFunc(http.MethodGet, "/api/stats", s.statsHandler)

	router.HandlerFunc(http.MethodGet, "/api/simulation/speed", s.speedHandler)
	router.Handler(http.MethodPut, "/api/simulation/speed", s.limiter.wrap(http.HandlerFunc(s.setSpeedHandler)))
	router.Handler(http.MethodPost, "/api/simulation/reset", s.limiter.wrap(http.HandlerFunc(s.resetHandler)))

	router.HandlerFunc(http.MethodGet, "/api/notifications", s.notificationsHandler)
	router.HandlerFunc(http.MethodGet, "/api/notifications/stats", s.notificationStatsHandler)
	router.Handler(http.MethodPost, "/api/notifications/:id/read", s.limiter.wrap(http.HandlerFunc(s.readNotificationHandler)))
	router.Handler(http.MethodDelete, "/api/notifications/:id", s.limiter.wrap(http.HandlerFunc(s.dismissNotificationHandler)))

	router.HandlerFunc(http.MethodGet, "/feeds/gtfs-rt/vehicle-positions", s.vehiclePositionsFeedHandler)
	router.HandlerFunc(http.MethodGet, "/feeds/gtfs-rt/alerts", s.alertsFeedHandler)
	router.HandlerFunc(http.MethodGet, "/feeds/siri-vm", s.siriFeedHandler)

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, r, http.StatusNotFound, "resource not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		logging.FromContext(r.Context()).Error("handler panic", slog.String("path", r.URL.Path), slog.Any("panic", v))
		s.errorResponse(w, r, http.StatusInternalServerError, "internal server error")
	}

	compressed := newCompressionMiddleware(s.config.CompressionMinSize)(router)
	return otelhttp.NewHandler(newRequestLogger(s.logger)(compressed), "fleetsim-api")
}

// ListenAndServe serves until ctx is cancelled and then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("API listening", slog.String("addr", s.config.Addr))
		errChan <- srv.ListenAndServe()
	}()

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go s.limiter.cleanup(cleanupCtx, 5*time.Minute)

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("API stopped")
	return nil
}
