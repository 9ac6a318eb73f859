package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/telemetry-ingest/internal/ingest"
	"github.com/ukydev/telemetry-ingest/internal/middleware"
	"github.com/ukydev/telemetry-ingest/internal/models"
	"github.com/ukydev/telemetry-ingest/internal/ratelimit"
	"github.com/ukydev/telemetry-ingest/internal/validate"
)

// TelemetryHandler exposes the ingest pipeline over HTTP. It runs the
// same validate → rate-limit → ingest sequence as the consumer, keyed
// by client address instead of device id.
type TelemetryHandler struct {
	Validator *validate.Validator
	Limiter   *ratelimit.Limiter
	Ingest    *ingest.Service
}

type telemetryResponse struct {
	MeasurementID uint     `json:"measurement_id"`
	Distance      float64  `json:"distance"`
	Warnings      []string `json:"warnings,omitempty"`
}

// ServeHTTP handles POST /api/telemetry.
func (h *TelemetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var record map[string]interface{}
	if err := json.Unmarshal(body, &record); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if !h.Validator.HasMinimumRequiredFields(record) {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	record = h.Validator.Sanitize(record)
	if fieldErrs := h.Validator.Validate(record); len(fieldErrs) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"errors": fieldErrs})
		return
	}

	key := middleware.ClientIP(r)
	if !h.Limiter.Allow(r.Context(), key) || !h.Limiter.CheckQuota(r.Context(), key) {
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	report, err := models.ReportFromMap(record)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.Ingest.ProcessReport(r.Context(), report)
	if err != nil {
		log.WithError(err).WithField("identifier", report.Identifier).
			Error("Failed to persist report")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if result.Code == ingest.CodeDeviceNotFound {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(telemetryResponse{
		MeasurementID: result.MeasurementID,
		Distance:      result.Distance,
		Warnings:      result.Warnings,
	})
}

// Healthz responds to health check probes.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
