package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"wikimap/pkg/request"
)

// Client executes the per-region SPARQL query and parses the CSV result.
type Client struct {
	request        *request.Client
	SPARQLEndpoint string
	LabelLanguage  string
	Logger         *slog.Logger
}

// NewClient creates a new catalog client.
func NewClient(r *request.Client, endpoint, labelLanguage string, logger *slog.Logger) *Client {
	return &Client{
		request:        r,
		SPARQLEndpoint: endpoint,
		LabelLanguage:  labelLanguage,
		Logger:         logger,
	}
}

// FetchRegion returns every geolocated item under the given administrative
// root, one record per item.
func (c *Client) FetchRegion(ctx context.Context, rootQID string) ([]Record, error) {
	u, err := url.Parse(c.SPARQLEndpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Add("query", BuildRegionQuery(rootQID, c.LabelLanguage))
	u.RawQuery = q.Encode()

	headers := map[string]string{
		"Accept": "text/csv",
	}

	body, err := c.request.Get(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("sparql fetch for %s failed: %w", rootQID, err)
	}

	records, err := ParseRecords(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sparql result for %s unreadable: %w", rootQID, err)
	}

	c.Logger.Debug("Catalog fetched", "root", rootQID, "records", len(records))
	return records, nil
}

// BuildRegionQuery renders the SPARQL query for one region root. Items are
// everything located (P131*) under the root that has coordinates (P625);
// classification and parent count feed the broad-status heuristics.
func BuildRegionQuery(rootQID, labelLanguage string) string {
	return fmt.Sprintf(`SELECT DISTINCT ?qid ?lat ?lon ?label (SAMPLE(?classUri) AS ?class) (COUNT(DISTINCT ?parent) AS ?parents) WHERE {
  ?item wdt:P131* wd:%s ;
        wdt:P625 ?loc .
  BIND(STRAFTER(STR(?item), '/entity/') AS ?qid)
  BIND(geof:latitude(?loc) AS ?lat)
  BIND(geof:longitude(?loc) AS ?lon)
  OPTIONAL { ?item rdfs:label ?label . FILTER(lang(?label) = '%s') }
  OPTIONAL { ?item wdt:P31 ?classUri . }
  OPTIONAL { ?item wdt:P131 ?parent . }
}
GROUP BY ?qid ?lat ?lon ?label`, rootQID, labelLanguage)
}
