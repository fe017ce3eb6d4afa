package ztmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"golang.org/x/exp/slices"
)

// FetchStops returns the flat list of stop posts in the order the operator lists them.
// Entries without usable coordinates are left out.
func (c *Client) FetchStops(ctx context.Context) ([]transit.Stop, error) {
	query := url.Values{}
	query.Set("id", c.StopsResourceID)

	result, err := c.getResult(ctx, "dbstore_get", query)
	if err != nil {
		return nil, fmt.Errorf("fetch stops: %w", err)
	}
	if err := checkResult(result); err != nil {
		return nil, fmt.Errorf("fetch stops: %w", err)
	}

	var records []keyValueRecord
	if err := json.Unmarshal(result, &records); err != nil {
		return nil, fmt.Errorf("decode stops: %w", err)
	}

	stops := make([]transit.Stop, 0, len(records))
	for _, record := range records {
		values := record.Map()

		lat, latErr := FlexString(values["szer_geo"]).Float()
		lon, lonErr := FlexString(values["dlug_geo"]).Float()
		if latErr != nil || lonErr != nil {
			log.Debug().
				Str("group", values["zespol"]).
				Str("post", values["slupek"]).
				Msg("Skipping stop without coordinates")
			continue
		}

		stops = append(stops, transit.Stop{
			Key:       transit.NewStopKey(values["zespol"], values["slupek"]),
			Name:      values["nazwa_zespolu"],
			StreetID:  values["id_ulicy"],
			Direction: values["kierunek"],
			Lat:       lat,
			Lon:       lon,
		})
	}

	return stops, nil
}

// FetchStopLines returns the sorted, de-duplicated lines serving a post. A post the
// operator has no timetable for yields ErrInvalidParameters.
func (c *Client) FetchStopLines(ctx context.Context, key transit.StopKey) ([]string, error) {
	query := url.Values{}
	query.Set("id", c.TimetableResourceID)
	query.Set("busstopId", key.GroupID)
	query.Set("busstopNr", key.PostID)

	result, err := c.getResult(ctx, "dbtimetable_get", query)
	if err != nil {
		return nil, err
	}
	if err := checkResult(result); err != nil {
		return nil, err
	}

	var records []keyValueRecord
	if err := json.Unmarshal(result, &records); err != nil {
		return nil, fmt.Errorf("decode lines for %s: %w", key, err)
	}

	lines := []string{}
	for _, record := range records {
		for _, item := range record.Values {
			if item.Key == "linia" && item.Value != "" {
				lines = append(lines, string(item.Value))
			}
		}
	}

	slices.Sort(lines)
	return slices.Compact(lines), nil
}
