package validate

import (
	"fmt"
	"strings"

	"github.com/ukydev/telemetry-ingest/internal/geo"
	"github.com/ukydev/telemetry-ingest/internal/models"
)

const (
	FieldIdentifier = "Identificador"
	FieldLatitude   = "Latitud"
	FieldLongitude  = "Longitud"
)

// DefaultMaxIdentifierLength bounds the device identifier.
const DefaultMaxIdentifierLength = 255

// FieldError describes one failed validation check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator checks inbound report payloads. The zero value is not
// usable; construct with New.
type Validator struct {
	required      []string
	optional      []string
	maxIdentifier int
}

// Option configures a Validator.
type Option func(*Validator)

// WithRequiredFields overrides the required field set.
func WithRequiredFields(fields ...string) Option {
	return func(v *Validator) { v.required = fields }
}

// WithMaxIdentifierLength overrides the identifier length limit.
func WithMaxIdentifierLength(n int) Option {
	return func(v *Validator) { v.maxIdentifier = n }
}

// New returns a Validator with the default field configuration:
// Identificador, Latitud and Longitud required, Sensor_1..Sensor_5
// optional numeric.
func New(opts ...Option) *Validator {
	v := &Validator{
		required:      []string{FieldIdentifier, FieldLatitude, FieldLongitude},
		optional:      []string{"Sensor_1", "Sensor_2", "Sensor_3", "Sensor_4", "Sensor_5"},
		maxIdentifier: DefaultMaxIdentifierLength,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HasMinimumRequiredFields reports whether every required field is
// present and non-empty. This is the cheap pre-check that separates
// "missing data" from "malformed data" before the full pass runs.
func (v *Validator) HasMinimumRequiredFields(record map[string]interface{}) bool {
	for _, field := range v.required {
		raw, ok := record[field]
		if !ok || raw == nil {
			return false
		}
		if s, isStr := raw.(string); isStr && strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

// Validate runs every check and returns the full set of field errors;
// an empty slice means the record is valid. Checks are not
// short-circuited so callers can report everything wrong at once.
func (v *Validator) Validate(record map[string]interface{}) []FieldError {
	var errs []FieldError

	for _, field := range v.required {
		raw, ok := record[field]
		if !ok || raw == nil {
			errs = append(errs, FieldError{Field: field, Message: "required field is missing"})
			continue
		}
		if s, isStr := raw.(string); isStr && strings.TrimSpace(s) == "" {
			errs = append(errs, FieldError{Field: field, Message: "required field is empty"})
		}
	}

	if raw, ok := record[FieldIdentifier]; ok && raw != nil {
		id := models.CoerceIdentifier(raw)
		if id == "" {
			errs = append(errs, FieldError{Field: FieldIdentifier, Message: "identifier is empty"})
		} else if len(id) > v.maxIdentifier {
			errs = append(errs, FieldError{
				Field:   FieldIdentifier,
				Message: fmt.Sprintf("identifier exceeds %d characters", v.maxIdentifier),
			})
		}
	}

	lat, latOK, latErr := numericField(record, FieldLatitude)
	lon, lonOK, lonErr := numericField(record, FieldLongitude)
	if latErr != nil {
		errs = append(errs, *latErr)
	}
	if lonErr != nil {
		errs = append(errs, *lonErr)
	}
	if latOK && lonOK && !geo.ValidCoordinates(lat, lon) {
		if lat < -90 || lat > 90 {
			errs = append(errs, FieldError{Field: FieldLatitude, Message: "latitude out of range [-90, 90]"})
		}
		if lon < -180 || lon > 180 {
			errs = append(errs, FieldError{Field: FieldLongitude, Message: "longitude out of range [-180, 180]"})
		}
	}

	for _, field := range v.optional {
		raw, ok := record[field]
		if !ok || raw == nil {
			continue
		}
		if _, err := models.CoerceNumber(raw); err != nil {
			errs = append(errs, FieldError{Field: field, Message: "must be numeric"})
		}
	}

	return errs
}

// Sanitize returns a copy of the record containing only the configured
// required and optional fields, with string values trimmed. The input
// map is not modified.
func (v *Validator) Sanitize(record map[string]interface{}) map[string]interface{} {
	allowed := make(map[string]struct{}, len(v.required)+len(v.optional))
	for _, f := range v.required {
		allowed[f] = struct{}{}
	}
	for _, f := range v.optional {
		allowed[f] = struct{}{}
	}

	out := make(map[string]interface{}, len(allowed))
	for key, val := range record {
		if _, ok := allowed[key]; !ok {
			continue
		}
		if s, isStr := val.(string); isStr {
			out[key] = strings.TrimSpace(s)
		} else {
			out[key] = val
		}
	}
	return out
}

func numericField(record map[string]interface{}, field string) (float64, bool, *FieldError) {
	raw, ok := record[field]
	if !ok || raw == nil {
		// Absence is already reported by the required-field pass.
		return 0, false, nil
	}
	val, err := models.CoerceNumber(raw)
	if err != nil {
		return 0, false, &FieldError{Field: field, Message: "must be numeric"}
	}
	return val, true, nil
}
