package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitgeo/transitgeo/pkg/config"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/protobuf/proto"
)

var routeRecords = []transit.GeometryRecord{
	{Key: "1;A", Geometry: "LINESTRING(21.0 52.0, 21.1 52.1)"},
	{Key: "2;B", Geometry: "LINESTRING(21.2 52.2, 21.3 52.3)"},
}

type failingSink struct {
	*MemorySink
}

func (f *failingSink) Name() string { return "failing" }

func (f *failingSink) ReplacePositions(ctx context.Context, table string, records []transit.GeometryRecord) error {
	return errors.New("unavailable")
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	memory := NewMemorySink()

	require.NoError(t, memory.AppendRoutes(ctx, "routes", routeRecords[:1]))
	require.NoError(t, memory.AppendRoutes(ctx, "routes", routeRecords[1:]))
	assert.Equal(t, routeRecords, memory.Records("routes"))

	require.NoError(t, memory.ReplacePositions(ctx, "bus_positions", routeRecords))
	require.NoError(t, memory.ReplacePositions(ctx, "bus_positions", nil))
	assert.Empty(t, memory.Records("bus_positions"))
	assert.Equal(t, 2, memory.Writes("bus_positions"))

	assert.Equal(t, []string{"bus_positions", "routes"}, memory.Tables())
}

func TestFanOutContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	healthy := NewMemorySink()
	fanOut := NewFanOut(&failingSink{MemorySink: NewMemorySink()}, healthy)

	err := fanOut.ReplacePositions(ctx, "bus_positions", routeRecords)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, routeRecords, healthy.Records("bus_positions"))
	assert.Equal(t, "failing+memory", fanOut.Name())
}

func TestNewSingleMemoryBackend(t *testing.T) {
	s, err := New(context.Background(), config.SinkConfig{Backends: []string{"memory"}})
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())

	_, err = New(context.Background(), config.SinkConfig{Backends: []string{"bigquery"}})
	assert.Error(t, err)
}

func TestCSVSinkAppend(t *testing.T) {
	ctx := context.Background()
	directory := t.TempDir()
	csvSink, err := NewCSVSink(directory)
	require.NoError(t, err)

	require.NoError(t, csvSink.AppendRoutes(ctx, "routes", routeRecords[:1]))
	require.NoError(t, csvSink.AppendRoutes(ctx, "routes", routeRecords[1:]))

	content, err := os.ReadFile(filepath.Join(directory, "routes.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "route,linestring"))

	records, err := ReadCSV(filepath.Join(directory, "routes.csv"))
	require.NoError(t, err)
	assert.Equal(t, routeRecords, records)
}

func TestCSVSinkReplace(t *testing.T) {
	ctx := context.Background()
	directory := t.TempDir()
	csvSink, err := NewCSVSink(directory)
	require.NoError(t, err)

	positions := []transit.GeometryRecord{{Key: "523", Geometry: "LINESTRING(1.0 1.0, 2.0 2.0)", Description: "Trasa: 523, o godzinie: 2023-06-01 12:00:00"}}
	require.NoError(t, csvSink.ReplacePositions(ctx, "bus_positions", positions))
	require.NoError(t, csvSink.ReplacePositions(ctx, "bus_positions", positions))

	records, err := ReadCSV(filepath.Join(directory, "bus_positions.csv"))
	require.NoError(t, err)
	assert.Equal(t, positions, records)

	require.NoError(t, csvSink.ReplacePositions(ctx, "bus_positions", nil))
	records, err = ReadCSV(filepath.Join(directory, "bus_positions.csv"))
	require.NoError(t, err)
	assert.Empty(t, records)

	entries, err := os.ReadDir(directory)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGTFSRTSink(t *testing.T) {
	ctx := context.Background()
	directory := t.TempDir()
	gtfsSink, err := NewGTFSRTSink(directory)
	require.NoError(t, err)
	gtfsSink.now = func() time.Time { return time.Unix(1685620800, 0) }

	position := &transit.VehiclePosition{
		Class:         transit.VehicleClassBuses,
		Line:          "523",
		Brigade:       "4",
		VehicleNumber: "1234",
		Time:          time.Unix(1685620790, 0),
		Lat:           52.2,
		Lon:           21.0,
	}
	records := []transit.GeometryRecord{
		{Key: "523", Geometry: "LINESTRING(21.0 52.2, 21.0 52.2)", Position: position},
		{Key: "ignored"},
	}

	require.NoError(t, gtfsSink.ReplacePositions(ctx, "bus_positions", records))
	require.NoError(t, gtfsSink.AppendRoutes(ctx, "routes", routeRecords))

	data, err := os.ReadFile(filepath.Join(directory, "bus_positions.pb"))
	require.NoError(t, err)

	feed := &gtfs.FeedMessage{}
	require.NoError(t, proto.Unmarshal(data, feed))

	assert.Equal(t, uint64(1685620800), feed.GetHeader().GetTimestamp())
	require.Len(t, feed.GetEntity(), 1)

	vehicle := feed.GetEntity()[0].GetVehicle()
	assert.Equal(t, "buses:1234", feed.GetEntity()[0].GetId())
	assert.Equal(t, "523", vehicle.GetTrip().GetRouteId())
	assert.Equal(t, "4", vehicle.GetVehicle().GetLabel())
	assert.InDelta(t, 52.2, vehicle.GetPosition().GetLatitude(), 1e-5)
	assert.Equal(t, uint64(1685620790), vehicle.GetTimestamp())

	_, err = os.Stat(filepath.Join(directory, "routes.pb"))
	assert.True(t, os.IsNotExist(err))
}

func TestPostgresStatementsQuoteTables(t *testing.T) {
	assert.Equal(t, `INSERT INTO "bus_positions" (route, linestring, info) VALUES ($1, $2, $3)`, insertStatement("bus_positions"))
	assert.Equal(t, `DELETE FROM "weird""name"`, deleteStatement(`weird"name`))
	assert.Contains(t, createTableStatement("routes"), `CREATE TABLE IF NOT EXISTS "routes"`)
}

func TestMongoReplaceModels(t *testing.T) {
	models := replaceModels(routeRecords)
	require.Len(t, models, 3)
	assert.IsType(t, &mongo.DeleteManyModel{}, models[0])
	assert.IsType(t, &mongo.InsertOneModel{}, models[1])

	assert.Len(t, replaceModels(nil), 1)
	assert.Len(t, documents(routeRecords), 2)
}
