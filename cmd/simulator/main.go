package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

type location struct {
	Lat float64
	Lon float64
}

// Seed positions for simulated devices.
var cities = []location{
	{Lat: -34.6037, Lon: -58.3816}, // Buenos Aires
	{Lat: 51.5074, Lon: -0.1278},   // London
	{Lat: 40.7128, Lon: -74.0060},  // New York
	{Lat: 40.4168, Lon: -3.7038},   // Madrid
	{Lat: 48.8566, Lon: 2.3522},    // Paris
	{Lat: 35.6762, Lon: 139.6503},  // Tokyo
	{Lat: -23.5505, Lon: -46.6333}, // São Paulo
	{Lat: 19.0760, Lon: 72.8777},   // Mumbai
}

func jitter(base location, meters float64) location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

type deviceState struct {
	Identifier string
	Position   location
}

func (d *deviceState) report() map[string]interface{} {
	d.Position = jitter(d.Position, 50)
	payload := map[string]interface{}{
		"Identificador": d.Identifier,
		"Latitud":       d.Position.Lat,
		"Longitud":      d.Position.Lon,
	}
	// Most devices carry only a subset of the sensor slots.
	for i := 1; i <= 5; i++ {
		if rand.Float64() < 0.6 {
			payload[fmt.Sprintf("Sensor_%d", i)] = math.Round(rand.Float64()*10000) / 100
		}
	}
	return payload
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	brokerURL := envOr("MQTT_BROKER_URL", "tcp://localhost:1883")
	topic := envOr("MQTT_TOPIC", "devices/telemetry")
	deviceCount, _ := strconv.Atoi(envOr("SIM_DEVICES", "5"))
	interval, err := time.ParseDuration(envOr("SIM_INTERVAL", "2s"))
	if err != nil {
		log.WithError(err).Fatal("Invalid SIM_INTERVAL")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("telemetry-sim-%d", os.Getpid()))
	if user := os.Getenv("MQTT_USERNAME"); user != "" {
		opts.SetUsername(user)
		opts.SetPassword(os.Getenv("MQTT_PASSWORD"))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).WithField("broker", brokerURL).
			Fatal("Failed to connect to MQTT broker")
	}
	defer client.Disconnect(250)

	devices := make([]*deviceState, 0, deviceCount)
	for i := 0; i < deviceCount; i++ {
		devices = append(devices, &deviceState{
			Identifier: fmt.Sprintf("SIM-%03d", i+1),
			Position:   jitter(cities[rand.Intn(len(cities))], 500),
		})
	}

	log.WithFields(log.Fields{
		"broker":   brokerURL,
		"topic":    topic,
		"devices":  deviceCount,
		"interval": interval.String(),
	}).Info("Simulator started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		for _, device := range devices {
			data, err := json.Marshal(device.report())
			if err != nil {
				log.WithError(err).Error("Failed to marshal report")
				continue
			}
			token := client.Publish(topic, 1, false, data)
			token.Wait()
			if token.Error() != nil {
				log.WithError(token.Error()).WithField("identifier", device.Identifier).
					Error("Failed to publish report")
				continue
			}
			log.WithFields(log.Fields{
				"identifier": device.Identifier,
				"lat":        device.Position.Lat,
				"lon":        device.Position.Lon,
			}).Debug("Published report")
		}
	}
}
