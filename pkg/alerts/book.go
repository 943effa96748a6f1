package alerts

import (
	"fmt"
	"time"

	"fleetsim/pkg/types"
)

// Key identifies the condition an alert reports on.
type Key struct {
	Type  types.AlertType
	BusID int
}

func KeyOf(a types.Alert) Key {
	return Key{Type: a.Type, BusID: a.BusID}
}

// Book holds alerts with at most one active (unresolved) entry per Key.
// It is not safe for concurrent use.
type Book struct {
	ttl    time.Duration
	seq    int
	alerts []*types.Alert
	active map[Key]*types.Alert
}

func NewBook(ttl time.Duration) *Book {
	return &Book{
		ttl:    ttl,
		active: make(map[Key]*types.Alert),
	}
}

// Raise records an alert at now. When an unresolved alert with the same key
// exists it is superseded in place: the id is kept and the payload and
// timestamp are replaced. created reports whether a new alert was added.
func (b *Book) Raise(a types.Alert, now time.Time) (out types.Alert, created bool) {
	key := KeyOf(a)
	a.Timestamp = now
	a.Resolved = false

	if existing, ok := b.active[key]; ok {
		a.ID = existing.ID
		*existing = a.Clone()
		return existing.Clone(), false
	}

	b.seq++
	a.ID = fmt.Sprintf("%s_%d_%d", a.Type, a.BusID, b.seq)
	stored := a.Clone()
	b.alerts = append(b.alerts, &stored)
	b.active[key] = &stored
	return stored.Clone(), true
}

// Resolve marks an alert resolved. It reports whether the id was found.
func (b *Book) Resolve(id string) bool {
	for _, a := range b.alerts {
		if a.ID != id {
			continue
		}
		if !a.Resolved {
			a.Resolved = true
			delete(b.active, KeyOf(*a))
		}
		return true
	}
	return false
}

// Dismiss removes an alert immediately.
func (b *Book) Dismiss(id string) bool {
	for i, a := range b.alerts {
		if a.ID != id {
			continue
		}
		if cur, ok := b.active[KeyOf(*a)]; ok && cur == a {
			delete(b.active, KeyOf(*a))
		}
		b.alerts = append(b.alerts[:i], b.alerts[i+1:]...)
		return true
	}
	return false
}

// Expire drops every alert whose last trigger is older than the TTL, resolved
// or not, and returns how many were removed.
func (b *Book) Expire(now time.Time) int {
	if b.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-b.ttl)

	kept := b.alerts[:0]
	removed := 0
	for _, a := range b.alerts {
		if a.Timestamp.Before(cutoff) {
			if cur, ok := b.active[KeyOf(*a)]; ok && cur == a {
				delete(b.active, KeyOf(*a))
			}
			removed++
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(b.alerts); i++ {
		b.alerts[i] = nil
	}
	b.alerts = kept
	return removed
}

// Active returns unresolved alerts, oldest first.
func (b *Book) Active() []types.Alert {
	out := make([]types.Alert, 0, len(b.active))
	for _, a := range b.alerts {
		if !a.Resolved {
			out = append(out, a.Clone())
		}
	}
	return out
}

// All returns every retained alert including resolved ones.
func (b *Book) All() []types.Alert {
	out := make([]types.Alert, 0, len(b.alerts))
	for _, a := range b.alerts {
		out = append(out, a.Clone())
	}
	return out
}

// Lookup returns the active alert for key.
func (b *Book) Lookup(key Key) (types.Alert, bool) {
	a, ok := b.active[key]
	if !ok {
		return types.Alert{}, false
	}
	return a.Clone(), true
}

func (b *Book) Reset() {
	b.alerts = nil
	b.active = make(map[Key]*types.Alert)
}
