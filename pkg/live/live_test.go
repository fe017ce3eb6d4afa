package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitgeo/transitgeo/pkg/events"
	"github.com/transitgeo/transitgeo/pkg/queue"
	"github.com/transitgeo/transitgeo/pkg/sink"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"github.com/transitgeo/transitgeo/pkg/ztmapi"
)

var warsaw, _ = time.LoadLocation("Europe/Warsaw")

var processingTime = time.Date(2023, time.June, 1, 12, 0, 0, 0, warsaw)

func vehicleJSON(line string, lat float64, lon float64, reported time.Time) string {
	return fmt.Sprintf(`{"Lines":%q,"Lon":%v,"Lat":%v,"Time":%q,"VehicleNumber":"1000","Brigade":"2"}`,
		line, lon, lat, reported.In(warsaw).Format(transit.VehicleTimeFormat))
}

func snapshotJSON(vehicles ...string) []byte {
	return []byte("[" + strings.Join(vehicles, ",") + "]")
}

type recorded struct {
	results []events.CycleResult
}

func (r *recorded) Record(result events.CycleResult) {
	r.results = append(r.results, result)
}

func newProcessor(t *testing.T, broker *queue.MemoryBroker) (*Processor, *sink.MemorySink, *recorded) {
	consumer, err := broker.Subscribe("buses")
	require.NoError(t, err)

	memory := sink.NewMemorySink()
	recorder := &recorded{}

	return &Processor{
		Class:        transit.VehicleClassBuses,
		Topic:        "buses",
		Table:        "bus_positions",
		Consumer:     consumer,
		Sink:         memory,
		GeometryType: transit.GeometryTypeLineString,
		PollTimeout:  50 * time.Millisecond,
		Window:       60 * time.Second,
		Location:     warsaw,
		Recorder:     recorder,
		Now:          func() time.Time { return processingTime },
	}, memory, recorder
}

func TestDecodeSnapshot(t *testing.T) {
	payload := []byte(`[
		{"Lines":"523","Lon":21.0,"Lat":52.2,"Time":"2023-06-01 11:59:30","VehicleNumber":"1000","Brigade":"2"},
		{"Lines":"180","Lon":null,"Lat":52.2,"Time":"2023-06-01 11:59:30","VehicleNumber":"1001","Brigade":"3"},
		{"Lines":"190","Lon":21.0,"Lat":52.2,"Time":"yesterday","VehicleNumber":"1002","Brigade":"4"}
	]`)

	snapshot, err := DecodeSnapshot(payload, transit.VehicleClassBuses, warsaw)
	require.NoError(t, err)

	require.Len(t, snapshot.Positions, 1)
	assert.Equal(t, 2, snapshot.Dropped)

	position := snapshot.Positions[0]
	assert.Equal(t, "523", position.Line)
	assert.Equal(t, "2", position.Brigade)
	assert.True(t, position.Time.Equal(time.Date(2023, time.June, 1, 9, 59, 30, 0, time.UTC)))
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"not":"a list"}`), transit.VehicleClassTrams, warsaw)
	assert.Error(t, err)
}

func TestInWindowBoundary(t *testing.T) {
	positions := []transit.VehiclePosition{
		{Line: "old", Time: processingTime.Add(-61 * time.Second)},
		{Line: "edge", Time: processingTime.Add(-60 * time.Second)},
		{Line: "fresh", Time: processingTime.Add(-59 * time.Second)},
	}

	kept := InWindow(positions, processingTime, 60*time.Second)

	require.Len(t, kept, 2)
	assert.Equal(t, "edge", kept[0].Line)
	assert.Equal(t, "fresh", kept[1].Line)
}

func TestFilter(t *testing.T) {
	filter, err := NewFilter(`Line == "523" && Age < 30`)
	require.NoError(t, err)

	matched, err := filter.Match(transit.VehiclePosition{Line: "523", Time: processingTime.Add(-10 * time.Second)}, processingTime)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = filter.Match(transit.VehiclePosition{Line: "523", Time: processingTime.Add(-40 * time.Second)}, processingTime)
	require.NoError(t, err)
	assert.False(t, matched)

	_, err = NewFilter(`Line +`)
	assert.Error(t, err)

	var none *Filter
	matched, err = none.Match(transit.VehiclePosition{}, processingTime)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestProcessorWritesShapes(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	processor, memory, recorder := newProcessor(t, broker)

	payload := snapshotJSON(
		vehicleJSON("523", 52.2, 21.0, processingTime.Add(-59*time.Second)),
		vehicleJSON("180", 52.3, 21.1, processingTime.Add(-61*time.Second)),
	)
	require.NoError(t, broker.Publish(ctx, "buses", payload))

	result := processor.Cycle(ctx)
	require.Equal(t, events.StatusOK, result.Status, result.Err)
	assert.Equal(t, 1, result.Records)
	assert.Equal(t, 1, result.Dropped)

	records := memory.Records("bus_positions")
	require.Len(t, records, 1)
	assert.Equal(t, "523", records[0].Key)
	assert.Equal(t, "Trasa: 523, o godzinie: 2023-06-01 11:59:01", records[0].Description)
	assert.True(t, strings.HasPrefix(records[0].Geometry, "LINESTRING("))
	assert.Equal(t, 21, strings.Count(records[0].Geometry, ",")+1)
	require.NotNil(t, records[0].Position)
	assert.Equal(t, "1000", records[0].Position.VehicleNumber)

	assert.Equal(t, 1, broker.Acked("buses"))
	require.Len(t, recorder.results, 1)
}

func TestProcessorReplacesWithEmptyBatch(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	processor, memory, _ := newProcessor(t, broker)

	require.NoError(t, memory.ReplacePositions(ctx, "bus_positions", []transit.GeometryRecord{{Key: "stale"}}))
	require.NoError(t, broker.Publish(ctx, "buses", snapshotJSON(vehicleJSON("523", 52.2, 21.0, processingTime.Add(-5*time.Minute)))))

	result := processor.Cycle(ctx)
	assert.Equal(t, events.StatusOK, result.Status)
	assert.Empty(t, memory.Records("bus_positions"))
	assert.Equal(t, 2, memory.Writes("bus_positions"))
}

func TestProcessorSkipsSentinel(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	processor, memory, _ := newProcessor(t, broker)

	sentinel, err := json.Marshal(ztmapi.Sentinel)
	require.NoError(t, err)
	require.NoError(t, broker.Publish(ctx, "buses", sentinel))

	result := processor.Cycle(ctx)
	assert.Equal(t, events.StatusSkipped, result.Status)
	assert.Equal(t, "no data", result.Reason)
	assert.Equal(t, 0, memory.Writes("bus_positions"))
	assert.Equal(t, 1, broker.Acked("buses"))
}

func TestProcessorPollTimeoutSkips(t *testing.T) {
	processor, memory, recorder := newProcessor(t, queue.NewMemoryBroker())

	result := processor.Cycle(context.Background())
	assert.Equal(t, events.StatusSkipped, result.Status)
	assert.Equal(t, "poll timeout", result.Reason)
	assert.Equal(t, 0, memory.Writes("bus_positions"))
	require.Len(t, recorder.results, 1)
}

func TestProcessorRejectsUndecodable(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	processor, memory, _ := newProcessor(t, broker)

	require.NoError(t, broker.Publish(ctx, "buses", []byte(`<html>`)))

	result := processor.Cycle(ctx)
	assert.Equal(t, events.StatusError, result.Status)
	assert.Equal(t, "decode", result.Reason)
	assert.Len(t, broker.Rejected("buses"), 1)
	assert.Equal(t, 0, memory.Writes("bus_positions"))

	// the loop carries on with the next snapshot
	require.NoError(t, broker.Publish(ctx, "buses", snapshotJSON()))
	assert.Equal(t, events.StatusOK, processor.Cycle(ctx).Status)
}

// slowConsumer moves the clock forward while it waits, like a poll that blocks until a
// snapshot arrives.
type slowConsumer struct {
	queue.Consumer
	clock *time.Time
	wait  time.Duration
}

func (c *slowConsumer) Poll(ctx context.Context, timeout time.Duration) (queue.Message, error) {
	*c.clock = c.clock.Add(c.wait)
	return c.Consumer.Poll(ctx, timeout)
}

func TestProcessorWindowStartsAtProcessing(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	processor, memory, _ := newProcessor(t, broker)

	clock := processingTime
	processor.Now = func() time.Time { return clock }
	processor.Consumer = &slowConsumer{Consumer: processor.Consumer, clock: &clock, wait: 30 * time.Second}

	// fresh when the poll starts, 80s old once the snapshot is handled
	require.NoError(t, broker.Publish(ctx, "buses", snapshotJSON(
		vehicleJSON("523", 52.2, 21.0, processingTime.Add(-50*time.Second)),
		vehicleJSON("180", 52.3, 21.1, processingTime.Add(-20*time.Second)),
	)))

	result := processor.Cycle(ctx)
	require.Equal(t, events.StatusOK, result.Status, result.Err)
	assert.Equal(t, 1, result.Records)
	assert.Equal(t, 1, result.Dropped)
	assert.True(t, result.Timestamp.Equal(processingTime))

	records := memory.Records("bus_positions")
	require.Len(t, records, 1)
	assert.Equal(t, "180", records[0].Key)
}

func TestProcessorPolygonGeometry(t *testing.T) {
	processor, _, _ := newProcessor(t, queue.NewMemoryBroker())
	processor.GeometryType = transit.GeometryTypePolygon

	records, dropped := processor.BuildRecords([]transit.VehiclePosition{
		{Line: "17", Time: processingTime, Lat: 52.2, Lon: 21.0},
	}, processingTime)

	assert.Equal(t, 0, dropped)
	require.Len(t, records, 1)
	assert.True(t, strings.HasPrefix(records[0].Geometry, "POLYGON(("))
}

type fakeVehicles struct {
	payloads map[transit.VehicleClass]string
	failures map[transit.VehicleClass]error
}

func (f *fakeVehicles) FetchVehicles(ctx context.Context, class transit.VehicleClass) (json.RawMessage, error) {
	if err := f.failures[class]; err != nil {
		return nil, err
	}
	return json.RawMessage(f.payloads[class]), nil
}

func TestEmitterPublishesVerbatim(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	sentinel, _ := json.Marshal(ztmapi.Sentinel)

	emitter := &Emitter{
		Source: &fakeVehicles{payloads: map[transit.VehicleClass]string{
			transit.VehicleClassBuses: `[{"Lines":"523"}]`,
			transit.VehicleClassTrams: string(sentinel),
		}},
		Publisher: broker,
		Classes:   transit.VehicleClasses,
		Topics: map[transit.VehicleClass]string{
			transit.VehicleClassBuses: "buses",
			transit.VehicleClassTrams: "trams",
		},
	}

	results := emitter.Cycle(ctx)
	require.Len(t, results, 2)

	buses, _ := broker.Subscribe("buses")
	message, err := buses.Poll(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, `[{"Lines":"523"}]`, string(message.Payload()))

	trams, _ := broker.Subscribe("trams")
	message, err = trams.Poll(ctx, time.Second)
	require.NoError(t, err)
	assert.True(t, ztmapi.IsSentinel(message.Payload()))
}

func TestEmitterFailuresAreIndependent(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	recorder := &recorded{}

	emitter := &Emitter{
		Source: &fakeVehicles{
			payloads: map[transit.VehicleClass]string{transit.VehicleClassTrams: `[]`},
			failures: map[transit.VehicleClass]error{transit.VehicleClassBuses: errors.New("timeout")},
		},
		Publisher: broker,
		Classes:   transit.VehicleClasses,
		Recorder:  recorder,
	}

	results := emitter.Cycle(ctx)
	require.Len(t, results, 2)
	assert.Equal(t, events.StatusError, results[0].Status)
	assert.Equal(t, "fetch", results[0].Reason)
	assert.Equal(t, events.StatusOK, results[1].Status)
	assert.Len(t, recorder.results, 2)

	trams, _ := broker.Subscribe("trams")
	_, err := trams.Poll(ctx, time.Second)
	assert.NoError(t, err)
}

func TestEmitterRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	recorder := &recorded{}

	emitter := &Emitter{
		Source:    &fakeVehicles{payloads: map[transit.VehicleClass]string{transit.VehicleClassBuses: `[]`}},
		Publisher: queue.NewMemoryBroker(),
		Classes:   []transit.VehicleClass{transit.VehicleClassBuses},
		Interval:  time.Hour,
		Recorder: events.RecorderFunc(func(result events.CycleResult) {
			recorder.Record(result)
			cancel()
		}),
	}

	done := make(chan error)
	go func() { done <- emitter.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("emitter did not stop")
	}
	assert.Len(t, recorder.results, 1)
}

func TestRunAllEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := queue.NewMemoryBroker()
	memory := sink.NewMemorySink()

	now := time.Now()
	emitter := &Emitter{
		Source: &fakeVehicles{payloads: map[transit.VehicleClass]string{
			transit.VehicleClassBuses: string(snapshotJSON(vehicleJSON("523", 52.2, 21.0, now))),
		}},
		Publisher: broker,
		Classes:   []transit.VehicleClass{transit.VehicleClassBuses},
		Topics:    map[transit.VehicleClass]string{transit.VehicleClassBuses: "buses"},
		Interval:  time.Hour,
	}

	consumer, err := broker.Subscribe("buses")
	require.NoError(t, err)

	processor := &Processor{
		Class:       transit.VehicleClassBuses,
		Topic:       "buses",
		Table:       "bus_positions",
		Consumer:    consumer,
		Sink:        memory,
		PollTimeout: 20 * time.Millisecond,
		Location:    warsaw,
		Recorder: events.RecorderFunc(func(result events.CycleResult) {
			if result.Status == events.StatusOK {
				cancel()
			}
		}),
	}

	done := make(chan error)
	go func() { done <- RunAll(ctx, emitter, []*Processor{processor}) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	records := memory.Records("bus_positions")
	require.Len(t, records, 1)
	assert.Equal(t, "523", records[0].Key)
}
