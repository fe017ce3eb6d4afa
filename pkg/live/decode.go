package live

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/transitgeo/transitgeo/pkg/transit"
	"github.com/transitgeo/transitgeo/pkg/ztmapi"
)

// vehicleRecord is one entry of a live snapshot. Coordinates are pointers so a missing
// coordinate can be told apart from zero.
type vehicleRecord struct {
	Lines         ztmapi.FlexString `json:"Lines"`
	Lon           *float64          `json:"Lon"`
	Lat           *float64          `json:"Lat"`
	Time          string            `json:"Time"`
	VehicleNumber ztmapi.FlexString `json:"VehicleNumber"`
	Brigade       ztmapi.FlexString `json:"Brigade"`
}

type Snapshot struct {
	Positions []transit.VehiclePosition

	// Dropped counts entries without coordinates or with an unparsable time.
	Dropped int
}

// DecodeSnapshot parses a published snapshot. Times are read in the feed's time zone.
func DecodeSnapshot(payload []byte, class transit.VehicleClass, location *time.Location) (Snapshot, error) {
	var records []vehicleRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s snapshot: %w", class, err)
	}

	snapshot := Snapshot{
		Positions: make([]transit.VehiclePosition, 0, len(records)),
	}

	for _, record := range records {
		if record.Lat == nil || record.Lon == nil {
			snapshot.Dropped++
			continue
		}

		timestamp, err := time.ParseInLocation(transit.VehicleTimeFormat, strings.TrimSpace(record.Time), location)
		if err != nil {
			snapshot.Dropped++
			continue
		}

		snapshot.Positions = append(snapshot.Positions, transit.VehiclePosition{
			Class:         class,
			Line:          strings.TrimSpace(string(record.Lines)),
			Brigade:       strings.TrimSpace(string(record.Brigade)),
			VehicleNumber: strings.TrimSpace(string(record.VehicleNumber)),
			Time:          timestamp,
			Lat:           *record.Lat,
			Lon:           *record.Lon,
		})
	}

	return snapshot, nil
}

// InWindow keeps positions reported no earlier than window before now.
func InWindow(positions []transit.VehiclePosition, now time.Time, window time.Duration) []transit.VehiclePosition {
	cutoff := now.Add(-window)

	kept := make([]transit.VehiclePosition, 0, len(positions))
	for _, position := range positions {
		if !position.Time.Before(cutoff) {
			kept = append(kept, position)
		}
	}
	return kept
}
