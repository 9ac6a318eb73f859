package consumer

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/telemetry-ingest/internal/archive"
	"github.com/ukydev/telemetry-ingest/internal/db"
	"github.com/ukydev/telemetry-ingest/internal/ingest"
	"github.com/ukydev/telemetry-ingest/internal/models"
	"github.com/ukydev/telemetry-ingest/internal/ratelimit"
	"github.com/ukydev/telemetry-ingest/internal/validate"
)

// Pipeline chains validation, admission control and ingestion for each
// inbound frame. Every outcome is logged; none terminates the consumer.
type Pipeline struct {
	Validator *validate.Validator
	Limiter   *ratelimit.Limiter
	Ingest    *ingest.Service
	Repo      db.DeviceRepository
	Archiver  archive.Archiver // optional

	// Timeout bounds one message's worth of downstream i/o.
	Timeout time.Duration
}

// Handler returns the per-message entry point for the consumer.
func (p *Pipeline) Handler() Handler {
	return func(msg Message) {
		ctx := context.Background()
		var cancel context.CancelFunc
		if p.Timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		p.process(ctx, msg)
	}
}

func (p *Pipeline) process(ctx context.Context, msg Message) {
	if p.Archiver != nil {
		_ = p.Archiver.Archive(ctx, archive.Frame{
			Topic:      msg.Topic,
			Payload:    msg.Payload,
			ReceivedAt: time.Now().UTC(),
		})
	}

	var record map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		// Undecodable payload: logged and dropped, no audit row.
		log.WithFields(log.Fields{
			"topic":   msg.Topic,
			"payload": Truncate(msg.Payload, 100),
		}).WithError(err).Warn("Dropping malformed message")
		return
	}

	if !p.Validator.HasMinimumRequiredFields(record) {
		identifier := models.CoerceIdentifier(record[validate.FieldIdentifier])
		log.WithFields(log.Fields{
			"topic":   msg.Topic,
			"payload": Truncate(msg.Payload, 100),
		}).Warn("Dropping message with missing required fields")
		if identifier != "" {
			p.audit(ctx, identifier, "missing required fields")
		}
		return
	}

	record = p.Validator.Sanitize(record)
	if fieldErrs := p.Validator.Validate(record); len(fieldErrs) > 0 {
		identifier := models.CoerceIdentifier(record[validate.FieldIdentifier])
		log.WithFields(log.Fields{
			"topic":      msg.Topic,
			"identifier": identifier,
			"errors":     fieldErrs,
		}).Warn("Dropping message that failed validation")
		p.audit(ctx, identifier, validationSummary(fieldErrs))
		return
	}

	report, err := models.ReportFromMap(record)
	if err != nil {
		log.WithFields(log.Fields{
			"topic":   msg.Topic,
			"payload": Truncate(msg.Payload, 100),
		}).WithError(err).Warn("Dropping message that could not be decoded")
		return
	}

	if !p.Limiter.Allow(ctx, report.Identifier) || !p.Limiter.CheckQuota(ctx, report.Identifier) {
		// Rate limiting is policy, not a business error: no audit row.
		log.WithFields(log.Fields{
			"topic":      msg.Topic,
			"identifier": report.Identifier,
		}).Info("Dropping rate-limited message")
		return
	}

	result, err := p.Ingest.ProcessReport(ctx, report)
	if err != nil {
		log.WithFields(log.Fields{
			"topic":      msg.Topic,
			"identifier": report.Identifier,
			"payload":    Truncate(msg.Payload, 100),
		}).WithError(err).Error("Failed to persist report, message dropped")
		return
	}

	switch result.Code {
	case ingest.CodeDeviceNotFound:
		log.WithFields(log.Fields{
			"topic":      msg.Topic,
			"identifier": report.Identifier,
		}).Warn("Report from unknown device rejected")
	default:
		fields := log.Fields{
			"topic":          msg.Topic,
			"identifier":     report.Identifier,
			"measurement_id": result.MeasurementID,
			"distance":       result.Distance,
		}
		if len(result.Warnings) > 0 {
			fields["warnings"] = result.Warnings
		}
		log.WithFields(fields).Info("Report ingested")
		p.Limiter.ApplyDelay()
	}
}

func (p *Pipeline) audit(ctx context.Context, identifier, description string) {
	if err := p.Repo.InsertError(ctx, &models.ErrorRecord{
		Identifier:  identifier,
		Description: description,
	}); err != nil {
		log.WithError(err).WithField("identifier", identifier).
			Warn("Failed to write audit record")
	}
}

func validationSummary(errs []validate.FieldError) string {
	summary := "validation failed:"
	for _, e := range errs {
		summary += " " + e.Error() + ";"
	}
	return summary[:len(summary)-1]
}
