package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Report is the decoded inbound telemetry payload. The wire format is
// a JSON object with Spanish field names kept for compatibility with
// the deployed device firmware.
type Report struct {
	Identifier string   `json:"Identificador"`
	Latitude   float64  `json:"Latitud"`
	Longitude  float64  `json:"Longitud"`
	Sensor1    *float64 `json:"Sensor_1,omitempty"`
	Sensor2    *float64 `json:"Sensor_2,omitempty"`
	Sensor3    *float64 `json:"Sensor_3,omitempty"`
	Sensor4    *float64 `json:"Sensor_4,omitempty"`
	Sensor5    *float64 `json:"Sensor_5,omitempty"`
}

// Sensors returns the optional sensor readings in order.
func (r *Report) Sensors() [5]*float64 {
	return [5]*float64{r.Sensor1, r.Sensor2, r.Sensor3, r.Sensor4, r.Sensor5}
}

// ReportFromMap builds a typed Report from a sanitized payload map.
// Identifiers sent as JSON numbers are coerced to their decimal string
// form so the catalog key is always a string.
func ReportFromMap(m map[string]interface{}) (*Report, error) {
	r := &Report{}

	id, ok := m["Identificador"]
	if !ok {
		return nil, fmt.Errorf("missing Identificador")
	}
	r.Identifier = CoerceIdentifier(id)

	lat, err := CoerceNumber(m["Latitud"])
	if err != nil {
		return nil, fmt.Errorf("Latitud: %w", err)
	}
	r.Latitude = lat

	lon, err := CoerceNumber(m["Longitud"])
	if err != nil {
		return nil, fmt.Errorf("Longitud: %w", err)
	}
	r.Longitude = lon

	sensors := []**float64{&r.Sensor1, &r.Sensor2, &r.Sensor3, &r.Sensor4, &r.Sensor5}
	for i, dst := range sensors {
		key := fmt.Sprintf("Sensor_%d", i+1)
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		v, err := CoerceNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		*dst = &v
	}
	return r, nil
}

// CoerceIdentifier renders a wire identifier (string or number) as a
// string. Whole-valued floats lose the trailing ".0" that JSON decoding
// into interface{} would otherwise introduce.
func CoerceIdentifier(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// CoerceNumber converts a decoded JSON value to float64, accepting
// numeric strings from devices that quote their readings.
func CoerceNumber(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", t)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}
