package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"fleetsim/pkg/clock"
	"fleetsim/pkg/metrics"
	"fleetsim/pkg/types"

	"github.com/google/uuid"
)

// Listener receives the active notifications after each change.
type Listener func([]types.Notification)

type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		TTL:           time.Hour,
		SweepInterval: time.Second,
	}
}

// Center owns the notification lifecycle: created, read, then dismissed or
// expired. It is safe for concurrent use.
type Center struct {
	config Config
	clock  clock.Clock
	logger *slog.Logger

	mu            sync.Mutex
	notifications []*types.Notification
	listeners     map[int]Listener
	nextListener  int
}

func NewCenter(config Config, clk clock.Clock, logger *slog.Logger) *Center {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultConfig().SweepInterval
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		config:    config,
		clock:     clk,
		logger:    logger.With(slog.String("component", "notifications")),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (c *Center) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Add stores a new unread notification, filling id, timestamp and expiry,
// and returns it.
func (c *Center) Add(n types.Notification) types.Notification {
	now := c.clock.Now()
	n.ID = uuid.NewString()
	n.Timestamp = now
	n.AutoExpiry = now.Add(c.config.TTL)
	n.IsRead = false
	n.IsActive = true

	c.mu.Lock()
	stored := n
	c.notifications = append([]*types.Notification{&stored}, c.notifications...)
	c.mu.Unlock()

	c.logger.Debug("notification added",
		slog.String("id", n.ID),
		slog.String("bus", n.BusID),
		slog.String("severity", string(n.Severity)))

	c.notify()
	return n
}

// AlertRaised converts a newly created engine alert into a notification.
func (c *Center) AlertRaised(alert types.Alert, bus types.Bus) {
	n := types.Notification{
		BusID:       bus.LicensePlate,
		RouteNumber: fmt.Sprintf("Route %d", alert.RouteID),
		AlertType:   notificationType(alert.Type),
		Severity:    notificationSeverity(alert.Severity),
		Message:     alert.Message,
		Location:    bus.LastStop,
	}

	var resolveIn time.Duration
	switch alert.Type {
	case types.AlertBreakdown:
		resolveIn = 30 * time.Minute
	case types.AlertDelay, types.AlertWeather, types.AlertTraffic:
		if d := bus.Schedule.DelayMinutes; d > 0 && d < types.BreakdownDelayMinutes {
			resolveIn = time.Duration(d) * time.Minute
		}
	}
	if resolveIn > 0 {
		eta := c.clock.Now().Add(resolveIn)
		n.EstimatedResolution = &eta
	}

	c.Add(n)
}

func notificationSeverity(s types.Severity) types.NotificationSeverity {
	switch s {
	case types.SeverityCritical:
		return types.NotificationCritical
	case types.SeverityHigh:
		return types.NotificationMajor
	default:
		return types.NotificationMinor
	}
}

func notificationType(t types.AlertType) types.AlertType {
	switch t {
	case types.AlertDelay, types.AlertBreakdown, types.AlertMaintenance, types.AlertTraffic, types.AlertWeather:
		return t
	case types.AlertCongestion:
		return types.AlertTraffic
	default:
		return types.AlertDelay
	}
}

// Notifications returns the active notifications, newest first.
func (c *Center) Notifications() []types.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Center) snapshotLocked() []types.Notification {
	out := make([]types.Notification, 0, len(c.notifications))
	for _, n := range c.notifications {
		cp := *n
		if n.EstimatedResolution != nil {
			eta := *n.EstimatedResolution
			cp.EstimatedResolution = &eta
		}
		out = append(out, cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (c *Center) Stats() types.NotificationStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats types.NotificationStats
	for _, n := range c.notifications {
		stats.Total++
		switch n.Severity {
		case types.NotificationCritical:
			stats.Critical++
		case types.NotificationMajor:
			stats.Major++
		case types.NotificationMinor:
			stats.Minor++
		}
		if !n.IsRead {
			stats.Unread++
		}
	}
	return stats
}

// MarkAsRead flags one notification as read. It reports whether id exists.
func (c *Center) MarkAsRead(id string) bool {
	c.mu.Lock()
	found := false
	for _, n := range c.notifications {
		if n.ID == id {
			n.IsRead = true
			found = true
			break
		}
	}
	c.mu.Unlock()

	if found {
		c.notify()
	}
	return found
}

func (c *Center) MarkAllAsRead() {
	c.mu.Lock()
	for _, n := range c.notifications {
		n.IsRead = true
	}
	c.mu.Unlock()
	c.notify()
}

// Dismiss removes a notification immediately. It reports whether id existed.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	found := false
	for i, n := range c.notifications {
		if n.ID == id {
			c.notifications = append(c.notifications[:i], c.notifications[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()

	if found {
		c.notify()
	}
	return found
}

// Sweep drops notifications past their expiry, read or not. Listeners are
// only told when something was removed.
func (c *Center) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	kept := c.notifications[:0]
	for _, n := range c.notifications {
		if now.After(n.AutoExpiry) {
			continue
		}
		kept = append(kept, n)
	}
	removed := len(c.notifications) - len(kept)
	for i := len(kept); i < len(c.notifications); i++ {
		c.notifications[i] = nil
	}
	c.notifications = kept
	c.mu.Unlock()

	if removed > 0 {
		metrics.RecordNotificationsExpired(context.Background(), removed)
		c.logger.Debug("expired notifications", slog.Int("count", removed))
		c.notify()
	}
	return removed
}

// Run sweeps on the configured interval until ctx is cancelled.
func (c *Center) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Center) notify() {
	c.mu.Lock()
	snapshot := c.snapshotLocked()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}
