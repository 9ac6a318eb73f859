package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ukydev/telemetry-ingest/internal/models"
)

// ErrDeviceNotFound is returned when no device row matches an
// identifier.
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository defines the durable operations the ingest pipeline
// needs: device lookup, measurement inserts, the error/audit trail and
// the best-effort last-seen update.
type DeviceRepository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Device, error)
	InsertMeasurement(ctx context.Context, m *models.Measurement) (uint, error)
	InsertError(ctx context.Context, rec *models.ErrorRecord) error
	UpdateLastSeen(ctx context.Context, deviceID uint, seen time.Time, lat, lon float64) error
}

// GormRepository implements DeviceRepository on a GORM connection.
type GormRepository struct {
	DB *gorm.DB
}

// NewGormRepository wraps a GORM connection.
func NewGormRepository(gdb *gorm.DB) *GormRepository {
	return &GormRepository{DB: gdb}
}

// FindByIdentifier looks a device up by its stable identifier.
// Returns ErrDeviceNotFound when no row matches.
func (r *GormRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Device, error) {
	var device models.Device
	err := r.DB.WithContext(ctx).Where("identifier = ?", identifier).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// InsertMeasurement persists one accepted report and returns the new
// row id. A zero timestamp is defaulted to the current time.
func (r *GormRepository) InsertMeasurement(ctx context.Context, m *models.Measurement) (uint, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if err := r.DB.WithContext(ctx).Create(m).Error; err != nil {
		return 0, err
	}
	return m.ID, nil
}

// InsertError appends one audit row. Audit rows are never updated or
// deleted by the ingest path.
func (r *GormRepository) InsertError(ctx context.Context, rec *models.ErrorRecord) error {
	return r.DB.WithContext(ctx).Create(rec).Error
}

// UpdateLastSeen refreshes a device's last-seen timestamp and last
// known coordinates. Last-write-wins; staleness here is tolerated.
func (r *GormRepository) UpdateLastSeen(ctx context.Context, deviceID uint, seen time.Time, lat, lon float64) error {
	return r.DB.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", deviceID).
		Updates(map[string]interface{}{
			"last_seen": seen,
			"last_lat":  lat,
			"last_lon":  lon,
		}).Error
}
