package models

import (
	"testing"
	"time"
)

func TestReportFromMap(t *testing.T) {
	m := map[string]interface{}{
		"Identificador": "D1",
		"Latitud":       -34.603722,
		"Longitud":      -58.381592,
		"Sensor_2":      12.5,
	}
	r, err := ReportFromMap(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Identifier != "D1" {
		t.Errorf("expected identifier D1, got %s", r.Identifier)
	}
	if r.Latitude != -34.603722 || r.Longitude != -58.381592 {
		t.Errorf("coordinates not carried through: %f, %f", r.Latitude, r.Longitude)
	}
	if r.Sensor1 != nil {
		t.Error("Sensor1 should be absent")
	}
	if r.Sensor2 == nil || *r.Sensor2 != 12.5 {
		t.Errorf("Sensor2 not carried through: %v", r.Sensor2)
	}
}

func TestReportFromMapNumericIdentifier(t *testing.T) {
	// JSON numbers decode to float64; a whole-valued device id must not
	// come out as "42.0".
	r, err := ReportFromMap(map[string]interface{}{
		"Identificador": float64(42),
		"Latitud":       1.0,
		"Longitud":      2.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Identifier != "42" {
		t.Errorf("expected identifier \"42\", got %q", r.Identifier)
	}
}

func TestReportFromMapStringCoordinates(t *testing.T) {
	r, err := ReportFromMap(map[string]interface{}{
		"Identificador": "D1",
		"Latitud":       "10.5",
		"Longitud":      "-20.25",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Latitude != 10.5 || r.Longitude != -20.25 {
		t.Errorf("string coordinates not coerced: %f, %f", r.Latitude, r.Longitude)
	}
}

func TestReportFromMapBadSensor(t *testing.T) {
	_, err := ReportFromMap(map[string]interface{}{
		"Identificador": "D1",
		"Latitud":       1.0,
		"Longitud":      2.0,
		"Sensor_3":      "not-a-number",
	})
	if err == nil {
		t.Fatal("expected error for non-numeric sensor")
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:30:00", 30 * time.Minute, false},
		{"01:00:00", time.Hour, false},
		{"00:00:45", 45 * time.Second, false},
		{"26:00:00", 26 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"", 0, true},
		{"00:99:00", 0, true},
		{"banana", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseWindow(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseWindow(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWindow(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindow(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDeviceHasPosition(t *testing.T) {
	d := &Device{}
	if d.HasPosition() {
		t.Error("fresh device should have no position")
	}
	lat, lon := 1.0, 2.0
	d.LastLat, d.LastLon = &lat, &lon
	if !d.HasPosition() {
		t.Error("device with coordinates should report a position")
	}
}
