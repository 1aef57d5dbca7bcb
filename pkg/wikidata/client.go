package wikidata

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cgt.name/pkg/go-mwclient"
	"cgt.name/pkg/go-mwclient/params"
	"github.com/antonholmquist/jason"
	"github.com/knakk/sparql"

	"wikientity/pkg/cache"
	"wikientity/pkg/logging"
	"wikientity/pkg/request"
	"wikientity/pkg/tracker"
)

const (
	sparqlEndpoint = "https://query.wikidata.org/sparql"
	baseURI        = "https://www.wikidata.org"
	apiEndpoint    = "https://www.wikidata.org/w/api.php"

	// searchPageSize is the largest page wbsearchentities serves to anonymous clients.
	searchPageSize = 50
	// entityBatchSize is the wbgetentities id limit per request.
	entityBatchSize = 50
)

// Client is the query catalog: it renders SPARQL templates, runs them and parses
// their results, and talks to the entity data and search endpoints.
type Client struct {
	request        *request.Client
	SPARQLEndpoint string
	BaseURI        string
	APIEndpoint    string
	Language       string
	UserAgent      string
	Logger         *slog.Logger
	// Tracker, when set, counts queries that matched nothing.
	Tracker *tracker.Tracker

	mu       sync.Mutex
	searcher *mwclient.Client
}

// NewClient creates a new Wikidata client with the public endpoints.
func NewClient(r *request.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		request:        r,
		SPARQLEndpoint: sparqlEndpoint,
		BaseURI:        baseURI,
		APIEndpoint:    apiEndpoint,
		Language:       "en",
		UserAgent:      "wikientity",
		Logger:         logger,
	}
}

// Query renders the template tag with data, runs it and returns its solutions.
func (c *Client) Query(ctx context.Context, tag string, data any) ([]Row, error) {
	q, err := queryBank.Prepare(tag, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidQuery, tag, err)
	}
	return c.QuerySPARQL(ctx, q)
}

// QuerySPARQL runs a raw SPARQL query against the configured endpoint.
func (c *Client) QuerySPARQL(ctx context.Context, query string) ([]Row, error) {
	values := url.Values{}
	values.Set("format", "json")
	values.Set("query", query)

	headers := map[string]string{
		"Accept": "application/sparql-results+json",
	}

	logging.Trace(c.Logger, "SPARQL query", "endpoint", c.SPARQLEndpoint, "query", query)

	resp, err := c.request.Fetch(ctx, c.SPARQLEndpoint, values, headers, cache.Key(c.SPARQLEndpoint, values))
	if err != nil {
		return nil, err
	}

	rows, err := parseResults(resp.Body)
	if err != nil {
		c.Logger.Error(err.Error(),
			"endpoint", c.SPARQLEndpoint,
			"params", values,
			"status", resp.Status,
			"headers", resp.Header,
			"cached", resp.Cached)
		return nil, err
	}
	logging.Trace(c.Logger, "SPARQL response", "rows", len(rows), "bytes", len(resp.Body), "cached", resp.Cached)
	if len(rows) == 0 && c.Tracker != nil {
		c.Tracker.TrackAPIZero("wikidata")
	}
	return rows, nil
}

// parseResults checks for results.bindings before handing the body to the SPARQL decoder,
// so an HTML error page or a truncated document surfaces as ErrParse.
func parseResults(body []byte) ([]Row, error) {
	doc, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("%w: response is not JSON: %v", ErrParse, err)
	}
	if _, err := doc.GetObjectArray("results", "bindings"); err != nil {
		return nil, fmt.Errorf("%w: response has no results.bindings: %v", ErrParse, err)
	}

	res, err := sparql.ParseJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	solutions := res.Solutions()
	rows := make([]Row, 0, len(solutions))
	for _, s := range solutions {
		rows = append(rows, Row(s))
	}
	return rows, nil
}

// column collects the values of name from every row. A row without the binding is a parse error.
func column(rows []Row, tag, name string) ([]string, error) {
	out := make([]string, 0, len(rows))
	for i, r := range rows {
		v, ok := r.Value(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d has no ?%s", ErrMissingBinding, tag, i, name)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) entityColumn(ctx context.Context, tag, id, name string) ([]string, error) {
	rows, err := c.Query(ctx, tag, entityParams{ID: id, Lang: c.Language})
	if err != nil {
		return nil, err
	}
	return column(rows, tag, name)
}

// EntitiesByLabel returns the IRIs of items whose label equals label exactly.
func (c *Client) EntitiesByLabel(ctx context.Context, label string) ([]string, error) {
	rows, err := c.Query(ctx, tagEntityByLabel, labelParams{Label: escapeLiteral(label), Lang: c.Language})
	if err != nil {
		return nil, err
	}
	return column(rows, tagEntityByLabel, "item")
}

// InstanceOf returns the IRIs of the P31 values of id.
func (c *Client) InstanceOf(ctx context.Context, id string) ([]string, error) {
	return c.entityColumn(ctx, tagInstanceOf, id, "instance_of")
}

// SubclassOf returns the IRIs of the P279 values of id.
func (c *Client) SubclassOf(ctx context.Context, id string) ([]string, error) {
	return c.entityColumn(ctx, tagSubclassOf, id, "subclass_of")
}

// Label returns the first label of id. ok is false when the entity has no label in the language.
func (c *Client) Label(ctx context.Context, id string) (label string, ok bool, err error) {
	labels, err := c.entityColumn(ctx, tagLabel, id, "label")
	if err != nil || len(labels) == 0 {
		return "", false, err
	}
	return labels[0], true, nil
}

// Descriptions returns every description of id in the language.
func (c *Client) Descriptions(ctx context.Context, id string) ([]string, error) {
	return c.entityColumn(ctx, tagDescription, id, "description")
}

// Images returns the P18 values of id.
func (c *Client) Images(ctx context.Context, id string) ([]string, error) {
	return c.entityColumn(ctx, tagImage, id, "image")
}

// Neighbours returns the one-hop neighbours of id in direction dir, each with one class of the object.
func (c *Client) Neighbours(ctx context.Context, id string, dir Direction) ([]NeighbourRow, error) {
	tag := dir.tag()
	rows, err := c.Query(ctx, tag, entityParams{ID: id, Lang: c.Language})
	if err != nil {
		return nil, err
	}

	out := make([]NeighbourRow, 0, len(rows))
	for i, r := range rows {
		prop, ok := r.Value("property")
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d has no ?property", ErrMissingBinding, tag, i)
		}
		obj, ok := r.Value("object")
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d has no ?object", ErrMissingBinding, tag, i)
		}
		inst, _ := r.Value("instance_of")
		out = append(out, NeighbourRow{Property: prop, Object: obj, InstanceOf: inst})
	}
	return out, nil
}

// EntityData fetches the entity document of id from Special:EntityData.
func (c *Client) EntityData(ctx context.Context, id string) (*jason.Object, error) {
	u := c.BaseURI + "/wiki/Special:EntityData/" + url.PathEscape(id) + ".json"
	resp, err := c.request.Fetch(ctx, u, nil, map[string]string{"Accept": "application/json"}, cache.Key(u, nil))
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	doc, err := jason.NewObjectFromBytes(resp.Body)
	if err != nil {
		c.Logger.Error("Failed to decode entity data", "url", u, "status", resp.Status, "headers", resp.Header, "error", err)
		return nil, fmt.Errorf("%w: entity data for %s: %v", ErrParse, id, err)
	}
	entities, err := doc.GetObject("entities")
	if err != nil {
		c.Logger.Error("Entity data has no entities object", "url", u, "status", resp.Status, "headers", resp.Header, "error", err)
		return nil, fmt.Errorf("%w: entity data for %s has no entities: %v", ErrParse, id, err)
	}
	ent, err := entities.GetObject(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not in entity data", ErrNotFound, id)
	}
	return ent, nil
}

// Labels fetches the labels of ids in the configured language via wbgetentities, in chunks.
// Entities without a label in the language are absent from the result.
func (c *Client) Labels(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	// Sorted ids give stable cache keys.
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	for i := 0; i < len(sorted); i += entityBatchSize {
		end := min(i+entityBatchSize, len(sorted))

		values := url.Values{}
		values.Set("action", "wbgetentities")
		values.Set("format", "json")
		values.Set("ids", strings.Join(sorted[i:end], "|"))
		values.Set("props", "labels")
		values.Set("languages", c.Language)

		resp, err := c.request.Fetch(ctx, c.APIEndpoint, values, nil, cache.Key(c.APIEndpoint, values))
		if err != nil {
			return nil, err
		}
		if resp.Status >= 400 {
			return nil, fmt.Errorf("%w: wbgetentities: status %d", ErrUpstreamStatus, resp.Status)
		}

		doc, err := jason.NewObjectFromBytes(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: wbgetentities: %v", ErrParse, err)
		}
		entities, err := doc.GetObject("entities")
		if err != nil {
			return nil, fmt.Errorf("%w: wbgetentities has no entities: %v", ErrParse, err)
		}
		for id, v := range entities.Map() {
			ent, err := v.Object()
			if err != nil {
				continue
			}
			if label, err := ent.GetString("labels", c.Language, "value"); err == nil {
				out[id] = label
			}
		}
	}
	return out, nil
}

func (c *Client) searchClient() (*mwclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.searcher != nil {
		return c.searcher, nil
	}
	w, err := mwclient.New(c.APIEndpoint, c.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	c.searcher = w
	return w, nil
}

// Search runs wbsearchentities for term, following search-continue until the API stops
// offering more pages or maxResults hits were collected. maxResults <= 0 means no limit.
func (c *Client) Search(ctx context.Context, term string, maxResults int) ([]SearchResult, error) {
	w, err := c.searchClient()
	if err != nil {
		return nil, err
	}

	var out []SearchResult
	offset := int64(0)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := params.Values{
			"action":   "wbsearchentities",
			"language": c.Language,
			"search":   term,
			"format":   "json",
			"limit":    strconv.Itoa(searchPageSize),
		}
		if offset > 0 {
			p["continue"] = strconv.FormatInt(offset, 10)
		}

		resp, err := w.Get(p)
		if err != nil {
			if resp == nil {
				return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
			}
			// Warnings come with a usable response.
			c.Logger.Warn("Search API returned warnings", "term", term, "warnings", err)
		}
		if !searchSucceeded(resp) {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrSearchFailed, term, offset)
		}

		hits, err := resp.GetObjectArray("search")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		for _, h := range hits {
			id, err := h.GetString("id")
			if err != nil {
				continue
			}
			r := SearchResult{ID: id}
			r.Label, _ = h.GetString("label")
			r.Description, _ = h.GetString("description")
			r.ConceptURI, _ = h.GetString("concepturi")
			out = append(out, r)
			if maxResults > 0 && len(out) >= maxResults {
				return out, nil
			}
		}

		next, err := resp.GetInt64("search-continue")
		if err != nil || len(hits) == 0 {
			return out, nil
		}
		offset = next
	}
}

// searchSucceeded accepts both the numeric and the boolean form of the success flag.
func searchSucceeded(resp *jason.Object) bool {
	if n, err := resp.GetInt64("success"); err == nil {
		return n == 1
	}
	b, err := resp.GetBoolean("success")
	return err == nil && b
}
