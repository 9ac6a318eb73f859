package models

import "time"

// ErrorRecord is an append-only audit row for rejected or anomalous
// reports. DeviceID is null when the reporting identifier is unknown;
// Identifier is always kept so unknown devices remain traceable.
type ErrorRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DeviceID    *uint     `gorm:"index" json:"device_id,omitempty"`
	Identifier  string    `gorm:"size:255;not null" json:"identifier"`
	Description string    `gorm:"size:1024;not null" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName implements the GORM tabler interface.
func (ErrorRecord) TableName() string { return "error_records" }
