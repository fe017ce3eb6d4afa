package ztmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/transitgeo/transitgeo/pkg/transit"
)

// FetchVehicles returns the raw "result" member of the live feed for a vehicle class.
// The sentinel is returned as-is so consumers can tell an empty feed from a failure.
func (c *Client) FetchVehicles(ctx context.Context, class transit.VehicleClass) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("resource_id", c.VehiclesResourceID)
	query.Set("type", strconv.Itoa(class.FeedType()))

	result, err := c.getResult(ctx, "busestrams_get", query)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", class, err)
	}

	return result, nil
}
