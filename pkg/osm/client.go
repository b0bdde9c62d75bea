package osm

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"wikimap/pkg/request"
)

// Overpass area ids for OSM relations are offset by this constant.
const relationAreaOffset = 3600000000

// Client fetches tagged elements for a region from an Overpass endpoint.
type Client struct {
	request  *request.Client
	Endpoint string
	Logger   *slog.Logger
}

// NewClient creates a new Overpass client.
func NewClient(r *request.Client, endpoint string, logger *slog.Logger) *Client {
	return &Client{
		request:  r,
		Endpoint: endpoint,
		Logger:   logger,
	}
}

// FetchArea retrieves every element carrying a wikidata-suffixed tag inside
// the given OSM area. areaID may be a relation id or an already-offset
// Overpass area id. It returns the parsed elements together with the raw
// payload so the caller can persist it for cache fallback.
func (c *Client) FetchArea(ctx context.Context, areaID int64) ([]Element, []byte, error) {
	query := BuildAreaQuery(areaID)

	form := url.Values{}
	form.Set("data", query)

	body, err := c.request.PostForm(ctx, c.Endpoint, form)
	if err != nil {
		return nil, nil, fmt.Errorf("overpass fetch for area %d failed: %w", areaID, err)
	}

	resp, err := ParseResponse(body)
	if err != nil {
		// A truncated or HTML error payload counts as a failed fetch
		return nil, nil, err
	}

	c.Logger.Debug("Overpass area fetched", "area", areaID, "elements", len(resp.Elements))
	return resp.Elements, body, nil
}

// BuildAreaQuery renders the Overpass QL query for one area. The regex key
// match picks up "wikidata" plus namespaced variants such as "brand:wikidata".
func BuildAreaQuery(areaID int64) string {
	if areaID < relationAreaOffset {
		areaID += relationAreaOffset
	}
	return fmt.Sprintf(`[out:json][timeout:180];
area(%d)->.a;
(
  nwr[~"wikidata$"~"."](area.a);
);
out tags;`, areaID)
}
