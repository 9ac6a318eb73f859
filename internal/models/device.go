package models

import "time"

// Device is a provisioned telemetry emitter. Rows are created by the
// provisioning tooling; the ingest path only reads them and updates
// last-seen state.
type Device struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Identifier string    `gorm:"size:255;uniqueIndex;not null" json:"identifier"`
	Name       string    `gorm:"size:255" json:"name"`
	LastSeen   time.Time `gorm:"not null" json:"last_seen"`
	// MaxOffline is the maximum allowed gap between reports, stored as
	// HH:MM:SS text (e.g. "00:30:00").
	MaxOffline string   `gorm:"size:32;not null;default:'00:30:00'" json:"max_offline"`
	LastLat    *float64 `json:"last_lat,omitempty"`
	LastLon    *float64 `json:"last_lon,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName implements the GORM tabler interface.
func (Device) TableName() string { return "devices" }

// HasPosition reports whether the device has ever reported coordinates.
func (d *Device) HasPosition() bool {
	return d.LastLat != nil && d.LastLon != nil
}
