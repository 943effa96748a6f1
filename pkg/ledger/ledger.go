package ledger

import (
	"strings"
	"time"

	"fleetsim/pkg/types"

	"github.com/mmcloughlin/geohash"
)

// GeohashPrecision is the cell size stamped on every GPS sample (~150m).
const GeohashPrecision = 7

// Ledger is an append-only store of ticket sales and GPS samples. Records are
// never mutated once appended. It is not safe for concurrent use; the engine
// serialises access.
type Ledger struct {
	tickets []types.TicketSale
	gps     []types.GPSLog

	nextTicketID int
	nextGPSID    int

	ticketRetention time.Duration
	gpsRetention    time.Duration
}

// New creates a ledger. A zero retention keeps records forever.
func New(ticketRetention, gpsRetention time.Duration) *Ledger {
	return &Ledger{
		nextTicketID:    1,
		nextGPSID:       1,
		ticketRetention: ticketRetention,
		gpsRetention:    gpsRetention,
	}
}

// AppendTicket assigns the next ticket id and stores the sale.
func (l *Ledger) AppendTicket(sale types.TicketSale) types.TicketSale {
	sale.TicketID = l.nextTicketID
	l.nextTicketID++
	l.tickets = append(l.tickets, sale)
	return sale
}

// AppendGPS assigns the next log id, stamps the geohash and stores the sample.
func (l *Ledger) AppendGPS(sample types.GPSLog) types.GPSLog {
	sample.LogID = l.nextGPSID
	l.nextGPSID++
	sample.Geohash = geohash.EncodeWithPrecision(sample.Latitude, sample.Longitude, GeohashPrecision)
	l.gps = append(l.gps, sample)
	return sample
}

// TicketSales returns sales with a timestamp at or after since.
func (l *Ledger) TicketSales(since time.Time) []types.TicketSale {
	out := make([]types.TicketSale, 0)
	for _, t := range l.tickets {
		if !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out
}

// GPSLogs returns samples at or after since whose geohash starts with
// cellPrefix. An empty prefix matches every cell.
func (l *Ledger) GPSLogs(since time.Time, cellPrefix string) []types.GPSLog {
	out := make([]types.GPSLog, 0)
	for _, g := range l.gps {
		if g.Timestamp.Before(since) {
			continue
		}
		if !strings.HasPrefix(g.Geohash, cellPrefix) {
			continue
		}
		out = append(out, g)
	}
	return out
}

// GPSLogsAfter returns samples whose id is greater than afterID, in append order.
func (l *Ledger) GPSLogsAfter(afterID int) []types.GPSLog {
	out := make([]types.GPSLog, 0)
	for _, g := range l.gps {
		if g.LogID > afterID {
			out = append(out, g)
		}
	}
	return out
}

// Passengers sums passenger counts for a route within [from, to).
func (l *Ledger) Passengers(routeID int, from, to time.Time) int {
	total := 0
	for _, t := range l.tickets {
		if t.RouteID != routeID || t.Timestamp.Before(from) || !t.Timestamp.Before(to) {
			continue
		}
		total += t.PassengerCount
	}
	return total
}

// TotalPassengers sums passenger counts across all routes within [from, to).
func (l *Ledger) TotalPassengers(from, to time.Time) int {
	total := 0
	for _, t := range l.tickets {
		if !t.Timestamp.Before(from) && t.Timestamp.Before(to) {
			total += t.PassengerCount
		}
	}
	return total
}

// Prune drops records older than their retention window.
func (l *Ledger) Prune(now time.Time) (tickets, samples int) {
	if l.ticketRetention > 0 {
		cutoff := now.Add(-l.ticketRetention)
		kept := l.tickets[:0]
		for _, t := range l.tickets {
			if !t.Timestamp.Before(cutoff) {
				kept = append(kept, t)
			}
		}
		tickets = len(l.tickets) - len(kept)
		l.tickets = kept
	}

	if l.gpsRetention > 0 {
		cutoff := now.Add(-l.gpsRetention)
		kept := l.gps[:0]
		for _, g := range l.gps {
			if !g.Timestamp.Before(cutoff) {
				kept = append(kept, g)
			}
		}
		samples = len(l.gps) - len(kept)
		l.gps = kept
	}

	return tickets, samples
}

func (l *Ledger) Len() (tickets, samples int) {
	return len(l.tickets), len(l.gps)
}

// Reset drops every record. Ids keep increasing so export cursors stay valid.
func (l *Ledger) Reset() {
	l.tickets = nil
	l.gps = nil
}
