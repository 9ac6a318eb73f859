package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/telemetry-ingest/internal/archive"
	"github.com/ukydev/telemetry-ingest/internal/cache"
	"github.com/ukydev/telemetry-ingest/internal/db"
	"github.com/ukydev/telemetry-ingest/internal/ingest"
	"github.com/ukydev/telemetry-ingest/internal/models"
	"github.com/ukydev/telemetry-ingest/internal/ratelimit"
	"github.com/ukydev/telemetry-ingest/internal/validate"
)

type pipelineRepo struct {
	devices      map[string]*models.Device
	measurements []*models.Measurement
	errorRecords []*models.ErrorRecord
}

func (r *pipelineRepo) FindByIdentifier(_ context.Context, identifier string) (*models.Device, error) {
	device, ok := r.devices[identifier]
	if !ok {
		return nil, db.ErrDeviceNotFound
	}
	copied := *device
	return &copied, nil
}

func (r *pipelineRepo) InsertMeasurement(_ context.Context, m *models.Measurement) (uint, error) {
	r.measurements = append(r.measurements, m)
	return uint(len(r.measurements)), nil
}

func (r *pipelineRepo) InsertError(_ context.Context, rec *models.ErrorRecord) error {
	r.errorRecords = append(r.errorRecords, rec)
	return nil
}

func (r *pipelineRepo) UpdateLastSeen(context.Context, uint, time.Time, float64, float64) error {
	return nil
}

type countingArchiver struct {
	frames []archive.Frame
}

func (a *countingArchiver) Archive(_ context.Context, frame archive.Frame) error {
	a.frames = append(a.frames, frame)
	return nil
}

func testPipeline(t *testing.T) (*Pipeline, *pipelineRepo) {
	t.Helper()
	repo := &pipelineRepo{devices: map[string]*models.Device{
		"D1": {ID: 1, Identifier: "D1", LastSeen: time.Now().UTC(), MaxOffline: "00:30:00"},
	}}
	devices := cache.NewDeviceCache(cache.NewMemoryStore("test"), 0)

	limiter := ratelimit.New(cache.NewMemoryStore("rate"))
	limiter.Enabled = false

	return &Pipeline{
		Validator: validate.New(),
		Limiter:   limiter,
		Ingest:    ingest.NewService(repo, devices, nil),
		Repo:      repo,
	}, repo
}

func handle(p *Pipeline, payload string) {
	p.Handler()(Message{Topic: "devices/D1/telemetry", Payload: []byte(payload)})
}

func TestPipelineMalformedJSON(t *testing.T) {
	p, repo := testPipeline(t)
	handle(p, "{not json")

	assert.Empty(t, repo.errorRecords, "malformed payloads are not audited")
	assert.Empty(t, repo.measurements)
}

func TestPipelineMissingFieldsWithIdentifier(t *testing.T) {
	p, repo := testPipeline(t)
	handle(p, `{"Identificador":"D1"}`)

	require.Len(t, repo.errorRecords, 1, "missing fields audited when identifier is present")
	assert.Equal(t, "D1", repo.errorRecords[0].Identifier)
	assert.Empty(t, repo.measurements)
}

func TestPipelineMissingFieldsWithoutIdentifier(t *testing.T) {
	p, repo := testPipeline(t)
	handle(p, `{"Latitud":1.0}`)

	assert.Empty(t, repo.errorRecords, "no identifier means nothing to audit against")
	assert.Empty(t, repo.measurements)
}

func TestPipelineValidationFailure(t *testing.T) {
	p, repo := testPipeline(t)
	handle(p, `{"Identificador":"D1","Latitud":200.0,"Longitud":2.0}`)

	require.Len(t, repo.errorRecords, 1)
	assert.Contains(t, repo.errorRecords[0].Description, "Latitud")
	assert.Empty(t, repo.measurements)
}

func TestPipelineRateLimited(t *testing.T) {
	p, repo := testPipeline(t)
	p.Limiter.Enabled = true
	p.Limiter.MaxPerMinute = 1

	handle(p, `{"Identificador":"D1","Latitud":1.0,"Longitud":2.0}`)

	// Inside the spacing delay: silently dropped, no audit row.
	handle(p, `{"Identificador":"D1","Latitud":1.0,"Longitud":2.0}`)

	assert.Len(t, repo.measurements, 1)
	assert.Empty(t, repo.errorRecords)
}

func TestPipelineSuccess(t *testing.T) {
	p, repo := testPipeline(t)
	handle(p, `{"Identificador":"D1","Latitud":-34.603722,"Longitud":-58.381592,"Sensor_1":5.5,"extra":"stripped"}`)

	require.Len(t, repo.measurements, 1)
	m := repo.measurements[0]
	assert.Equal(t, -34.603722, m.Latitude)
	assert.Equal(t, 0.0, m.Distance)
	require.NotNil(t, m.Sensor1)
	assert.Equal(t, 5.5, *m.Sensor1)
	assert.Empty(t, repo.errorRecords)
}

func TestPipelineUnknownDevice(t *testing.T) {
	p, repo := testPipeline(t)
	handle(p, `{"Identificador":"ghost","Latitud":1.0,"Longitud":2.0}`)

	require.Len(t, repo.errorRecords, 1)
	assert.Nil(t, repo.errorRecords[0].DeviceID)
	assert.Equal(t, "device not found", repo.errorRecords[0].Description)
	assert.Empty(t, repo.measurements)
}

func TestPipelineArchivesEveryFrame(t *testing.T) {
	p, _ := testPipeline(t)
	archiver := &countingArchiver{}
	p.Archiver = archiver

	handle(p, "{not json")
	handle(p, `{"Identificador":"D1","Latitud":1.0,"Longitud":2.0}`)

	require.Len(t, archiver.frames, 2, "raw frames archived before any decoding")
	assert.Equal(t, "devices/D1/telemetry", archiver.frames[0].Topic)
}
