// Package upstream implements the statistics-service client: the region
// catalog fetched once at startup, and per-region raw feature data shaped
// into series through pkg/aggregate.
package upstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/aonuma/popscope/internal/utils"
	"github.com/aonuma/popscope/pkg/aggregate"
	"github.com/aonuma/popscope/pkg/series"
	"github.com/aonuma/popscope/pkg/whttp"
)

// Error taxonomy. All errors returned by the client wrap one of these, so
// callers can classify with errors.Is.
var (
	// ErrNetwork is a transport-level failure (DNS, connect, timeout).
	ErrNetwork = errors.New("upstream: network failure")
	// ErrUpstream is a non-2xx answer from the service.
	ErrUpstream = errors.New("upstream: service error")
	// ErrParse is a 2xx answer whose body is not the expected shape.
	ErrParse = errors.New("upstream: unexpected response shape")
)

const (
	catalogPath  = "/api/v1/regions"
	featuresPath = "/api/v1/population/features"

	// Default property keys for the raw feature records. The upstream data
	// originates from geospatial exports, hence the odd vocabulary.
	DefaultNameKey  = "prefectureName"
	DefaultYearKey  = "year"
	DefaultValueKey = "value"
)

// Config holds connection settings. Zero-value property keys fall back to
// the defaults above.
type Config struct {
	BaseURL string
	Token   string // sent as X-API-KEY when set
	Proxy   string

	NameKey  string
	YearKey  string
	ValueKey string
}

// Client talks to the statistics service. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *retryablehttp.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream: base URL is required")
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.NameKey == "" {
		cfg.NameKey = DefaultNameKey
	}
	if cfg.YearKey == "" {
		cfg.YearKey = DefaultYearKey
	}
	if cfg.ValueKey == "" {
		cfg.ValueKey = DefaultValueKey
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = 3

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("upstream: invalid proxy URL: %w", err)
		}
		retryClient.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{cfg: cfg, http: retryClient}, nil
}

func (c *Client) headers() []whttp.Header {
	if c.cfg.Token == "" {
		return nil
	}
	return []whttp.Header{{Name: "X-API-KEY", Value: c.cfg.Token}}
}

// FetchRegionSeries resolves one region's year/value series. Raw features
// are filtered and summed by pkg/aggregate; an empty series is returned as
// such, not as an error, so the caller decides what emptiness means.
func (c *Client) FetchRegionSeries(ctx context.Context, code int, name string) (series.RegionSeries, error) {
	rs := series.RegionSeries{Code: code, Name: name}

	res, err := whttp.Send(ctx, &whttp.Request{
		Method:  "GET",
		URL:     c.cfg.BaseURL + featuresPath + "?regionCode=" + strconv.Itoa(code),
		Headers: c.headers(),
	}, c.http)
	if err != nil {
		return rs, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if res.StatusCode != http.StatusOK {
		return rs, statusError(res)
	}

	features := gjson.Get(res.Body, "result.features")
	if !features.IsArray() {
		return rs, fmt.Errorf("%w: missing result.features array", ErrParse)
	}

	readers := make([]aggregate.FeatureReader, 0, len(features.Array()))
	for _, f := range features.Array() {
		readers = append(readers, aggregate.JSONFeature{
			Props:    f.Get("properties"),
			NameKey:  c.cfg.NameKey,
			YearKey:  c.cfg.YearKey,
			ValueKey: c.cfg.ValueKey,
		})
	}

	agg := aggregate.Series(readers, name)
	if agg.Dropped > 0 {
		utils.Log.Debugf("region %d (%s): dropped %d malformed feature records", code, name, agg.Dropped)
	}

	rs.Points = agg.Points
	return rs, nil
}

// FetchCatalog retrieves the selectable region list. The service normally
// answers JSON; some deployments serve the region list as an HTML page
// instead, in which case the table is scraped.
func (c *Client) FetchCatalog(ctx context.Context) ([]series.Region, error) {
	res, err := whttp.Send(ctx, &whttp.Request{
		Method:  "GET",
		URL:     c.cfg.BaseURL + catalogPath,
		Headers: c.headers(),
	}, c.http)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, statusError(res)
	}

	var regions []series.Region
	if gjson.Valid(res.Body) {
		regions, err = parseCatalogJSON(res.Body)
	} else {
		regions, err = parseCatalogHTML(res.Body)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].Code < regions[j].Code })
	return regions, nil
}

func parseCatalogJSON(body string) ([]series.Region, error) {
	result := gjson.Get(body, "result")
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: missing result array", ErrParse)
	}

	var regions []series.Region
	for _, r := range result.Array() {
		code := int(r.Get("regionCode").Int())
		name := r.Get("regionName").Str
		if code <= 0 || name == "" {
			continue
		}
		regions = append(regions, series.Region{Code: code, Name: name})
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrParse)
	}
	return regions, nil
}

func parseCatalogHTML(body string) ([]series.Region, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var regions []series.Region
	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		code, err := strconv.Atoi(strings.TrimSpace(cells.Eq(0).Text()))
		if err != nil || code <= 0 {
			return
		}
		name := strings.TrimSpace(cells.Eq(1).Text())
		if name == "" {
			return
		}
		regions = append(regions, series.Region{Code: code, Name: name})
	})
	if len(regions) == 0 {
		return nil, fmt.Errorf("%w: no region table found in HTML catalog", ErrParse)
	}
	return regions, nil
}

func statusError(res *whttp.Response) error {
	if res.HTMLTitle != "" {
		return fmt.Errorf("%w: status %d (%s)", ErrUpstream, res.StatusCode, res.HTMLTitle)
	}
	return fmt.Errorf("%w: status %d", ErrUpstream, res.StatusCode)
}
