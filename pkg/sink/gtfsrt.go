package sink

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"google.golang.org/protobuf/proto"
)

// GTFSRTSink publishes live tables as GTFS-Realtime VehiclePositions feeds, one
// <table>.pb file per table. Route tables have no GTFS-RT representation.
type GTFSRTSink struct {
	Directory string

	now func() time.Time
}

func NewGTFSRTSink(directory string) (*GTFSRTSink, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, err
	}
	return &GTFSRTSink{Directory: directory, now: time.Now}, nil
}

func (g *GTFSRTSink) Name() string {
	return "gtfsrt"
}

func (g *GTFSRTSink) AppendRoutes(ctx context.Context, table string, records []transit.GeometryRecord) error {
	log.Debug().Str("table", table).Msg("GTFS-RT sink ignores route tables")
	return nil
}

func (g *GTFSRTSink) ReplacePositions(ctx context.Context, table string, records []transit.GeometryRecord) error {
	data, err := proto.Marshal(g.FeedMessage(records))
	if err != nil {
		return err
	}

	path := filepath.Join(g.Directory, table+".pb")
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

func (g *GTFSRTSink) FeedMessage(records []transit.GeometryRecord) *gtfs.FeedMessage {
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(g.now().Unix())),
		},
		Entity: make([]*gtfs.FeedEntity, 0, len(records)),
	}

	for _, record := range records {
		position := record.Position
		if position == nil {
			continue
		}

		feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
			Id: proto.String(string(position.Class) + ":" + position.VehicleNumber),
			Vehicle: &gtfs.VehiclePosition{
				Trip: &gtfs.TripDescriptor{
					RouteId: proto.String(position.Line),
				},
				Vehicle: &gtfs.VehicleDescriptor{
					Id:    proto.String(position.VehicleNumber),
					Label: proto.String(position.Brigade),
				},
				Position: &gtfs.Position{
					Latitude:  proto.Float32(float32(position.Lat)),
					Longitude: proto.Float32(float32(position.Lon)),
				},
				Timestamp: proto.Uint64(uint64(position.Time.Unix())),
			},
		})
	}

	return feed
}

func (g *GTFSRTSink) Close(ctx context.Context) error {
	return nil
}
