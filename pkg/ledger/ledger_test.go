package ledger

import (
	"testing"
	"time"

	"fleetsim/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

func TestAppend_AssignsSequentialIDs(t *testing.T) {
	l := New(0, 0)

	a := l.AppendTicket(types.TicketSale{RouteID: 1, PassengerCount: 2, Timestamp: base})
	b := l.AppendTicket(types.TicketSale{RouteID: 1, PassengerCount: 1, Timestamp: base})
	assert.Equal(t, 1, a.TicketID)
	assert.Equal(t, 2, b.TicketID)

	g := l.AppendGPS(types.GPSLog{BusID: 1, Latitude: 23.0225, Longitude: 72.5714, Timestamp: base})
	assert.Equal(t, 1, g.LogID)
	assert.Len(t, g.Geohash, GeohashPrecision)
	assert.Equal(t, "ts5dgrh", g.Geohash)
}

func TestTicketSales_TimeFilter(t *testing.T) {
	l := New(0, 0)
	l.AppendTicket(types.TicketSale{Timestamp: base.Add(-3 * time.Hour)})
	l.AppendTicket(types.TicketSale{Timestamp: base.Add(-30 * time.Minute)})
	l.AppendTicket(types.TicketSale{Timestamp: base})

	assert.Len(t, l.TicketSales(base.Add(-time.Hour)), 2)
	assert.Len(t, l.TicketSales(base.Add(-24*time.Hour)), 3)
	assert.Empty(t, l.TicketSales(base.Add(time.Minute)))
	assert.NotNil(t, l.TicketSales(base.Add(time.Minute)))
}

func TestGPSLogs_FiltersByTimeAndCell(t *testing.T) {
	l := New(0, 0)
	near := l.AppendGPS(types.GPSLog{Latitude: 23.0225, Longitude: 72.5714, Timestamp: base})
	l.AppendGPS(types.GPSLog{Latitude: 51.4545, Longitude: -2.5879, Timestamp: base})
	l.AppendGPS(types.GPSLog{Latitude: 23.0225, Longitude: 72.5714, Timestamp: base.Add(-2 * time.Hour)})

	assert.Len(t, l.GPSLogs(base.Add(-time.Hour), ""), 2)

	cell := near.Geohash[:5]
	got := l.GPSLogs(base.Add(-time.Hour), cell)
	require.Len(t, got, 1)
	assert.Equal(t, near.LogID, got[0].LogID)

	assert.Len(t, l.GPSLogs(base.Add(-3*time.Hour), cell), 2)
}

func TestGPSLogsAfter(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 5; i++ {
		l.AppendGPS(types.GPSLog{BusID: i, Timestamp: base})
	}

	got := l.GPSLogsAfter(3)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].LogID)
	assert.Equal(t, 5, got[1].LogID)
	assert.Empty(t, l.GPSLogsAfter(5))
}

func TestPassengers(t *testing.T) {
	l := New(0, 0)
	l.AppendTicket(types.TicketSale{RouteID: 1, PassengerCount: 2, Timestamp: base})
	l.AppendTicket(types.TicketSale{RouteID: 1, PassengerCount: 3, Timestamp: base.Add(59 * time.Minute)})
	l.AppendTicket(types.TicketSale{RouteID: 1, PassengerCount: 9, Timestamp: base.Add(time.Hour)})
	l.AppendTicket(types.TicketSale{RouteID: 2, PassengerCount: 4, Timestamp: base.Add(10 * time.Minute)})

	assert.Equal(t, 5, l.Passengers(1, base, base.Add(time.Hour)))
	assert.Equal(t, 4, l.Passengers(2, base, base.Add(time.Hour)))
	assert.Equal(t, 0, l.Passengers(3, base, base.Add(time.Hour)))
	assert.Equal(t, 9, l.TotalPassengers(base, base.Add(time.Hour)))
}

func TestPrune(t *testing.T) {
	l := New(24*time.Hour, time.Hour)
	l.AppendTicket(types.TicketSale{Timestamp: base.Add(-48 * time.Hour)})
	l.AppendTicket(types.TicketSale{Timestamp: base.Add(-time.Hour)})
	l.AppendGPS(types.GPSLog{Timestamp: base.Add(-2 * time.Hour)})
	l.AppendGPS(types.GPSLog{Timestamp: base.Add(-10 * time.Minute)})

	tickets, samples := l.Prune(base)
	assert.Equal(t, 1, tickets)
	assert.Equal(t, 1, samples)

	nt, ng := l.Len()
	assert.Equal(t, 1, nt)
	assert.Equal(t, 1, ng)
}

func TestPrune_ZeroRetentionKeepsEverything(t *testing.T) {
	l := New(0, 0)
	l.AppendTicket(types.TicketSale{Timestamp: base.AddDate(-1, 0, 0)})

	tickets, samples := l.Prune(base)
	assert.Zero(t, tickets)
	assert.Zero(t, samples)
}

func TestReset_KeepsIDsMonotonic(t *testing.T) {
	l := New(0, 0)
	l.AppendGPS(types.GPSLog{Timestamp: base})
	l.Reset()

	g := l.AppendGPS(types.GPSLog{Timestamp: base})
	assert.Equal(t, 2, g.LogID)
	_, n := l.Len()
	assert.Equal(t, 1, n)
}
