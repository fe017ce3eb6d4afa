package transit

import (
	"fmt"
	"time"
)

type VehicleClass string

const (
	VehicleClassBuses VehicleClass = "buses"
	VehicleClassTrams VehicleClass = "trams"
)

var VehicleClasses = []VehicleClass{VehicleClassBuses, VehicleClassTrams}

// FeedType is the value of the live feed "type" parameter for the class.
func (c VehicleClass) FeedType() int {
	switch c {
	case VehicleClassTrams:
		return 2
	default:
		return 1
	}
}

func ParseVehicleClass(value string) (VehicleClass, error) {
	switch VehicleClass(value) {
	case VehicleClassBuses, VehicleClassTrams:
		return VehicleClass(value), nil
	default:
		return "", fmt.Errorf("unknown vehicle class %q", value)
	}
}

const VehicleTimeFormat = "2006-01-02 15:04:05"

type VehiclePosition struct {
	Class VehicleClass

	Line          string
	Brigade       string
	VehicleNumber string

	Time time.Time

	Lat float64
	Lon float64
}

func (v *VehiclePosition) Point() Point {
	return Point{Lon: v.Lon, Lat: v.Lat}
}

func (v *VehiclePosition) Description() string {
	return fmt.Sprintf("Trasa: %s, o godzinie: %s", v.Line, v.Time.Format(VehicleTimeFormat))
}
