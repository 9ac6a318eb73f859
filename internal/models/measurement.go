package models

import "time"

// Measurement is one accepted position report. Immutable once
// persisted; created only by the ingestion service.
type Measurement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  uint      `gorm:"index:idx_device_time,priority:1;not null" json:"device_id"`
	Device    Device    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Timestamp time.Time `gorm:"index:idx_device_time,priority:2;not null" json:"timestamp"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	// Distance is the great-circle distance in meters from the device's
	// previous known position; 0 for the first report.
	Distance float64  `gorm:"not null" json:"distance"`
	Sensor1  *float64 `json:"sensor_1,omitempty"`
	Sensor2  *float64 `json:"sensor_2,omitempty"`
	Sensor3  *float64 `json:"sensor_3,omitempty"`
	Sensor4  *float64 `json:"sensor_4,omitempty"`
	Sensor5  *float64 `json:"sensor_5,omitempty"`
}

// TableName implements the GORM tabler interface.
func (Measurement) TableName() string { return "measurements" }
