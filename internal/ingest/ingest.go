// Package ingest orchestrates the processing of one telemetry report:
// device resolution (cache-aside), offline-duration check, distance
// computation, durable persistence and cache refresh.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/telemetry-ingest/internal/cache"
	"github.com/ukydev/telemetry-ingest/internal/db"
	"github.com/ukydev/telemetry-ingest/internal/geo"
	"github.com/ukydev/telemetry-ingest/internal/models"
)

// Code classifies the terminal outcome of one report.
type Code string

const (
	// CodeOK means the measurement was durably persisted.
	CodeOK Code = "OK"
	// CodeDeviceNotFound means the identifier matched no provisioned
	// device. Terminal and non-retryable for the message.
	CodeDeviceNotFound Code = "DEVICE_NOT_FOUND"
)

// Result is the outcome of processing one report.
type Result struct {
	Code          Code     `json:"code"`
	MeasurementID uint     `json:"measurement_id,omitempty"`
	Distance      float64  `json:"distance"`
	Warnings      []string `json:"warnings,omitempty"`
}

// snapshot is the device state read before any write. The offline
// check and the distance computation must both run against this prior
// state; the cache overwrite in ProcessReport happens strictly after,
// otherwise the distance would be computed against the report's own
// coordinates.
type snapshot struct {
	deviceID   uint
	identifier string
	lastSeen   time.Time
	maxOffline string
	lat, lon   *float64
}

// Service runs the ingest pipeline for decoded reports.
type Service struct {
	repo    db.DeviceRepository
	devices *cache.DeviceCache
	geo     *geo.Calculator
	now     func() time.Time
}

// NewService wires the ingestion service.
func NewService(repo db.DeviceRepository, devices *cache.DeviceCache, calc *geo.Calculator) *Service {
	if calc == nil {
		calc = geo.NewCalculator()
	}
	return &Service{
		repo:    repo,
		devices: devices,
		geo:     calc,
		now:     time.Now,
	}
}

// ProcessReport runs the full pipeline for one validated report.
// A non-nil error means the durable write failed and the message is
// lost; every other failure is either a terminal Result code or a
// logged best-effort miss.
func (s *Service) ProcessReport(ctx context.Context, report *models.Report) (*Result, error) {
	now := s.now().UTC()

	snap, result, err := s.resolve(ctx, report, now)
	if result != nil || err != nil {
		return result, err
	}

	warnings := s.checkOffline(snap, now)

	distance := 0.0
	if snap.lat != nil && snap.lon != nil {
		distance = s.geo.Distance(*snap.lat, *snap.lon, report.Latitude, report.Longitude)
	}

	sensors := report.Sensors()
	measurementID, err := s.repo.InsertMeasurement(ctx, &models.Measurement{
		DeviceID:  snap.deviceID,
		Timestamp: now,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Distance:  distance,
		Sensor1:   sensors[0],
		Sensor2:   sensors[1],
		Sensor3:   sensors[2],
		Sensor4:   sensors[3],
		Sensor5:   sensors[4],
	})
	if err != nil {
		return nil, fmt.Errorf("persist measurement for %s: %w", report.Identifier, err)
	}

	// The snapshot has been consumed; from here on the cache and the
	// catalog are moved to the new state, best effort.
	lat, lon := report.Latitude, report.Longitude
	if err := s.devices.Put(ctx, report.Identifier, &cache.DeviceProjection{
		DeviceID:   snap.deviceID,
		Identifier: report.Identifier,
		LastSeen:   now,
		MaxOffline: snap.maxOffline,
		Lat:        &lat,
		Lon:        &lon,
	}); err != nil {
		log.WithError(err).WithField("identifier", report.Identifier).
			Warn("failed to refresh device cache")
	}

	if err := s.repo.UpdateLastSeen(ctx, snap.deviceID, now, lat, lon); err != nil {
		log.WithError(err).WithField("identifier", report.Identifier).
			Warn("failed to update device last-seen")
	}

	for _, warning := range warnings {
		deviceID := snap.deviceID
		if err := s.repo.InsertError(ctx, &models.ErrorRecord{
			DeviceID:    &deviceID,
			Identifier:  report.Identifier,
			Description: warning,
		}); err != nil {
			log.WithError(err).WithField("identifier", report.Identifier).
				Warn("failed to audit offline warning")
		}
	}

	return &Result{
		Code:          CodeOK,
		MeasurementID: measurementID,
		Distance:      distance,
		Warnings:      warnings,
	}, nil
}

// resolve finds the device behind an identifier: cache first, then the
// repository with a cache fill. A freshly filled entry keeps nil
// coordinates so only positions that actually passed through the
// pipeline feed distance computations after a cache hit.
func (s *Service) resolve(ctx context.Context, report *models.Report, now time.Time) (*snapshot, *Result, error) {
	if proj, ok := s.devices.Get(ctx, report.Identifier); ok {
		return &snapshot{
			deviceID:   proj.DeviceID,
			identifier: proj.Identifier,
			lastSeen:   proj.LastSeen,
			maxOffline: proj.MaxOffline,
			lat:        proj.Lat,
			lon:        proj.Lon,
		}, nil, nil
	}

	device, err := s.repo.FindByIdentifier(ctx, report.Identifier)
	if errors.Is(err, db.ErrDeviceNotFound) {
		if auditErr := s.repo.InsertError(ctx, &models.ErrorRecord{
			Identifier:  report.Identifier,
			Description: "device not found",
		}); auditErr != nil {
			log.WithError(auditErr).WithField("identifier", report.Identifier).
				Warn("failed to audit unknown device")
		}
		return nil, &Result{Code: CodeDeviceNotFound}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve device %s: %w", report.Identifier, err)
	}

	if err := s.devices.Put(ctx, device.Identifier, &cache.DeviceProjection{
		DeviceID:   device.ID,
		Identifier: device.Identifier,
		LastSeen:   device.LastSeen,
		MaxOffline: device.MaxOffline,
	}); err != nil {
		log.WithError(err).WithField("identifier", device.Identifier).
			Warn("failed to fill device cache")
	}

	return &snapshot{
		deviceID:   device.ID,
		identifier: device.Identifier,
		lastSeen:   device.LastSeen,
		maxOffline: device.MaxOffline,
		lat:        device.LastLat,
		lon:        device.LastLon,
	}, nil, nil
}

// checkOffline compares the gap since the device's last report with
// its allowed window. An exceeded window is a warning, never a block.
func (s *Service) checkOffline(snap *snapshot, now time.Time) []string {
	if snap.lastSeen.IsZero() {
		return nil
	}
	window, err := models.ParseWindow(snap.maxOffline)
	if err != nil {
		log.WithError(err).WithField("identifier", snap.identifier).
			Warn("unparseable max-offline window, skipping offline check")
		return nil
	}

	elapsed := now.Sub(snap.lastSeen)
	if elapsed <= window {
		return nil
	}
	return []string{fmt.Sprintf(
		"device %s was offline for %s, exceeding the allowed %s",
		snap.identifier, elapsed.Round(time.Second), window,
	)}
}
