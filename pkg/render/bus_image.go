package render

import (
	"encoding/base64"
	"fmt"
	"html"
	"strconv"
	"strings"

	"fleetsim/pkg/types"
)

const dataURIPrefix = "data:image/svg+xml;base64,"

type statusStyle struct {
	color string
	label string
	shape string
}

var statusStyles = map[types.BusStatus]statusStyle{
	types.StatusOnTime:      {"#28a745", "ON TIME", `<circle cx="50" cy="25" r="2.5" fill="#28a745"/>`},
	types.StatusDelayed:     {"#f39c12", "DELAYED", `<polygon points="47,27 50,21 53,27" fill="#f39c12"/>`},
	types.StatusCancelled:   {"#6c757d", "CANCELLED", `<rect x="47.5" y="22.5" width="5" height="5" fill="#6c757d"/>`},
	types.StatusBreakdown:   {"#dc3545", "BREAKDOWN", `<polygon points="47,22 53,28 53,22 47,28" fill="#dc3545" stroke="#dc3545"/>`},
	types.StatusMaintenance: {"#6f42c1", "MAINT", `<rect x="47.5" y="22.5" width="5" height="5" fill="#6f42c1" rx="1"/>`},
}

// BadgeGenerator draws small SVG bus badges for map markers and log lines.
type BadgeGenerator struct{}

func NewBadgeGenerator() *BadgeGenerator {
	return &BadgeGenerator{}
}

// BusBadge returns a 90x45 SVG of the bus in its route colour with the route
// number, a status marker and an occupancy bar.
func (g *BadgeGenerator) BusBadge(bus types.Bus) string {
	body := RouteColor(bus.Route.Color, bus.RouteID)
	style, ok := statusStyles[bus.Status]
	if !ok {
		style = statusStyle{"#6c757d", strings.ToUpper(string(bus.Status)), `<circle cx="50" cy="25" r="2" fill="#6c757d"/>`}
	}

	fill := bus.OccupancyPercentage
	if fill < 0 {
		fill = 0
	}
	if fill > 100 {
		fill = 100
	}
	barWidth := 32 * float64(fill) / 100

	return fmt.Sprintf(`<svg width="90" height="45" xmlns="http://www.w3.org/2000/svg">
  <rect width="90" height="45" fill="white" stroke="#dee2e6" stroke-width="1" rx="6"/>
  <rect x="8" y="12" width="32" height="18" fill="%s" rx="3"/>
  <rect x="6" y="14" width="3" height="14" fill="%s" rx="1"/>
  <rect x="10" y="14" width="5" height="4" fill="#87CEEB" rx="1"/>
  <rect x="16" y="14" width="5" height="4" fill="#87CEEB" rx="1"/>
  <rect x="22" y="14" width="5" height="4" fill="#87CEEB" rx="1"/>
  <rect x="28" y="14" width="5" height="4" fill="#87CEEB" rx="1"/>
  <rect x="34" y="14" width="4" height="4" fill="#87CEEB" rx="1"/>
  <circle cx="15" cy="32" r="3" fill="#2C3E50"/>
  <circle cx="31" cy="32" r="3" fill="#2C3E50"/>
  <rect x="8" y="38" width="32" height="3" fill="#e9ecef" rx="1"/>
  <rect x="8" y="38" width="%.1f" height="3" fill="%s" rx="1"/>
  <rect x="45" y="8" width="38" height="12" fill="%s" rx="2"/>
  <text x="64" y="17" font-family="Arial, sans-serif" font-size="9" font-weight="bold" fill="white" text-anchor="middle">R%d</text>
  %s
  <text x="64" y="38" font-family="Arial, sans-serif" font-size="6" font-weight="bold" fill="%s" text-anchor="middle">%s</text>
</svg>`, body, body, barWidth, occupancyColor(fill), body, bus.RouteID, style.shape, style.color, html.EscapeString(style.label))
}

// StatusBadge returns a pill-shaped SVG reading e.g. "R3 DELAYED".
func (g *BadgeGenerator) StatusBadge(routeID int, status types.BusStatus) string {
	style, ok := statusStyles[status]
	if !ok {
		style = statusStyle{color: "#6c757d", label: strings.ToUpper(string(status))}
	}

	return fmt.Sprintf(`<svg width="110" height="24" xmlns="http://www.w3.org/2000/svg">
  <rect width="110" height="24" fill="%s" rx="12"/>
  <text x="55" y="16" font-family="Arial, sans-serif" font-size="11" font-weight="bold" fill="white" text-anchor="middle">R%d %s</text>
</svg>`, style.color, routeID, html.EscapeString(style.label))
}

// DataURI wraps an SVG document as a base64 data URI.
func DataURI(svg string) string {
	return dataURIPrefix + base64.StdEncoding.EncodeToString([]byte(svg))
}

// RouteColor returns the catalog colour when it looks like a hex colour and
// otherwise derives a stable hue from the route id.
func RouteColor(color string, routeID int) string {
	if isHexColor(color) {
		return color
	}

	hash := 0
	for _, c := range strconv.Itoa(routeID) {
		hash = int(c) + ((hash << 5) - hash)
	}
	hue := (hash*47%360 + 360) % 360
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", hue)
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func occupancyColor(percent int) string {
	switch {
	case percent >= 90:
		return "#dc3545"
	case percent >= 70:
		return "#f39c12"
	default:
		return "#28a745"
	}
}
