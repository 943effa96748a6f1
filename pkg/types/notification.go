package types

import "time"

type NotificationSeverity string

const (
	NotificationCritical NotificationSeverity = "critical"
	NotificationMajor    NotificationSeverity = "major"
	NotificationMinor    NotificationSeverity = "minor"
)

// Notification is the UI-facing projection of an alert.
type Notification struct {
	ID                  string               `json:"id"`
	BusID               string               `json:"busId"`
	RouteNumber         string               `json:"routeNumber"`
	AlertType           AlertType            `json:"alertType"`
	Severity            NotificationSeverity `json:"severity"`
	Message             string               `json:"message"`
	Timestamp           time.Time            `json:"timestamp"`
	Location            string               `json:"location,omitempty"`
	EstimatedResolution *time.Time           `json:"estimatedResolution,omitempty"`
	IsRead              bool                 `json:"isRead"`
	IsActive            bool                 `json:"isActive"`
	AutoExpiry          time.Time            `json:"autoExpiry"`
}

type NotificationStats struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Unread   int `json:"unread"`
}
