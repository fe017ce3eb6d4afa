package ztmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// RoutePoint is one ordinal entry of the route structure.
type RoutePoint struct {
	Distance FlexString `json:"odleglosc"`
	StreetID FlexString `json:"ulica_id"`
	GroupID  FlexString `json:"nr_zespolu"`
	StopType FlexString `json:"typ"`
	PostID   FlexString `json:"nr_przystanku"`
}

// RouteStructure is keyed line → variant → ordinal.
type RouteStructure map[string]map[string]map[string]RoutePoint

func (c *Client) FetchRouteStructure(ctx context.Context) (RouteStructure, error) {
	result, err := c.getResult(ctx, "public_transport_routes", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("fetch routes: %w", err)
	}
	if err := checkResult(result); err != nil {
		return nil, fmt.Errorf("fetch routes: %w", err)
	}

	var structure RouteStructure
	if err := json.Unmarshal(result, &structure); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}

	return structure, nil
}
