package alerts

import (
	"testing"
	"time"

	"fleetsim/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

func weatherAlert(busID int, sev types.Severity) types.Alert {
	return types.Alert{
		Type:             types.AlertWeather,
		Severity:         sev,
		Title:            "Weather Alert",
		Message:          "Bus affected by weather",
		RouteID:          1,
		BusID:            busID,
		WeatherCondition: "rain",
	}
}

func TestRaise_CreatesThenSupersedes(t *testing.T) {
	b := NewBook(5 * time.Minute)

	first, created := b.Raise(weatherAlert(3, types.SeverityHigh), now)
	require.True(t, created)
	assert.Equal(t, "weather_3_1", first.ID)

	second, created := b.Raise(weatherAlert(3, types.SeverityCritical), now.Add(time.Minute))
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, types.SeverityCritical, second.Severity)
	assert.Equal(t, now.Add(time.Minute), second.Timestamp)

	active := b.Active()
	require.Len(t, active, 1)
	assert.Equal(t, types.SeverityCritical, active[0].Severity)
}

func TestRaise_SameTickAtMostOnePerKey(t *testing.T) {
	b := NewBook(5 * time.Minute)

	for i := 0; i < 4; i++ {
		b.Raise(weatherAlert(2, types.SeverityHigh), now)
	}
	b.Raise(weatherAlert(5, types.SeverityHigh), now)
	b.Raise(types.Alert{Type: types.AlertTraffic, BusID: 2, Severity: types.SeverityMedium}, now)

	counts := make(map[Key]int)
	for _, a := range b.Active() {
		counts[KeyOf(a)]++
	}
	assert.Len(t, counts, 3)
	for key, n := range counts {
		assert.Equal(t, 1, n, "key %+v", key)
	}
}

func TestResolve(t *testing.T) {
	b := NewBook(5 * time.Minute)
	a, _ := b.Raise(weatherAlert(1, types.SeverityHigh), now)

	assert.True(t, b.Resolve(a.ID))
	assert.Empty(t, b.Active())
	require.Len(t, b.All(), 1)
	assert.True(t, b.All()[0].Resolved)

	assert.True(t, b.Resolve(a.ID), "resolving twice is idempotent")
	assert.False(t, b.Resolve("missing"))

	// a fresh trigger after resolution opens a new alert
	again, created := b.Raise(weatherAlert(1, types.SeverityHigh), now.Add(time.Minute))
	assert.True(t, created)
	assert.NotEqual(t, a.ID, again.ID)
}

func TestDismiss(t *testing.T) {
	b := NewBook(5 * time.Minute)
	a, _ := b.Raise(weatherAlert(1, types.SeverityHigh), now)

	assert.True(t, b.Dismiss(a.ID))
	assert.Empty(t, b.All())
	_, ok := b.Lookup(KeyOf(a))
	assert.False(t, ok)
	assert.False(t, b.Dismiss(a.ID))
}

func TestExpire(t *testing.T) {
	b := NewBook(5 * time.Minute)

	old, _ := b.Raise(weatherAlert(1, types.SeverityHigh), now)
	resolved, _ := b.Raise(weatherAlert(2, types.SeverityHigh), now)
	b.Resolve(resolved.ID)
	b.Raise(weatherAlert(3, types.SeverityHigh), now.Add(4*time.Minute))

	removed := b.Expire(now.Add(6 * time.Minute))
	assert.Equal(t, 2, removed)

	all := b.All()
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].BusID)

	_, ok := b.Lookup(KeyOf(old))
	assert.False(t, ok)
}

func TestExpire_RetriggerKeepsAlertAlive(t *testing.T) {
	b := NewBook(5 * time.Minute)
	b.Raise(weatherAlert(1, types.SeverityHigh), now)
	b.Raise(weatherAlert(1, types.SeverityHigh), now.Add(4*time.Minute))

	assert.Zero(t, b.Expire(now.Add(6*time.Minute)))
	assert.Len(t, b.Active(), 1)
}

func TestActive_ReturnsCopies(t *testing.T) {
	b := NewBook(5 * time.Minute)
	a := weatherAlert(1, types.SeverityCritical)
	a.Type = types.AlertBreakdown
	a.AffectedStops = []string{"Gandhi Ashram", "Airport"}
	b.Raise(a, now)

	got := b.Active()
	got[0].AffectedStops[0] = "changed"
	got[0].Message = "changed"

	again := b.Active()
	assert.Equal(t, "Gandhi Ashram", again[0].AffectedStops[0])
	assert.Equal(t, "Bus affected by weather", again[0].Message)
}
