package transit

import (
	"fmt"

	"github.com/transitgeo/transitgeo/pkg/util"
)

// PostIDWidth is the width of the zero padded post identifier used as the stop table key.
const PostIDWidth = 2

// StopKey identifies a single post (platform) within a stop group.
type StopKey struct {
	GroupID string
	PostID  string
}

func NewStopKey(groupID string, postID string) StopKey {
	return StopKey{
		GroupID: groupID,
		PostID:  NormalisePostID(postID),
	}
}

func (k StopKey) String() string {
	return fmt.Sprintf("%s:%s", k.GroupID, k.PostID)
}

// NormalisePostID zero pads a post identifier so "1" and "01" join to the same stop.
func NormalisePostID(postID string) string {
	return util.PadLeft(postID, PostIDWidth, "0")
}

type Stop struct {
	Key StopKey

	Name      string
	StreetID  string
	Direction string

	Lat float64
	Lon float64

	Lines []string
}

func (s *Stop) Point() Point {
	return Point{Lon: s.Lon, Lat: s.Lat}
}
