// Package mapper talks to the drone-imagery backend that serves a
// project's WMS capabilities, artifacts, index layers and bounding box.
package mapper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/wroge/wgs84"

	"github.com/joeblew999/plat-mapper/internal/timedim"
)

// MsgQuotaExceeded is shown to the user when index creation is refused
// for lack of storage.
const MsgQuotaExceeded = "No se pudo crear el índice. Su almacenamiento está lleno."

var (
	// ErrQuotaExceeded is returned by CreateIndex on HTTP 402.
	ErrQuotaExceeded = errors.New(MsgQuotaExceeded)
	// ErrInvalidFormula is returned by CheckFormula on HTTP 400.
	ErrInvalidFormula = errors.New("invalid index formula")
	// ErrBadBBox is returned when the bounding box cannot be projected.
	ErrBadBBox = errors.New("bounding box cannot be projected")
)

// Artifact types served by the backend.
const (
	ArtifactOrthomosaic = "ORTHOMOSAIC"
	ArtifactShapefile   = "SHAPEFILE"
	ArtifactIndex       = "INDEX"
)

// Artifact is a published layer of a project.
type Artifact struct {
	Name  string `json:"name"`
	Layer string `json:"layer"`
	Type  string `json:"type"`
}

// Index is a computed raster index layer.
type Index struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Layer string `json:"layer"`
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Body)
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client handles communication with the mapper backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a new backend client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: &http.Client{Timeout: opts.Timeout},
		log:        opts.Logger,
	}
}

// Workspace is the WMS workspace holding a project's layers.
func Workspace(project string) string {
	return "project_" + project
}

// CapabilitiesURL is the GetCapabilities request of a project's
// orthomosaic.
func (c *Client) CapabilitiesURL(project string) string {
	q := url.Values{}
	q.Set("service", "WMS")
	q.Set("version", "1.3.0")
	q.Set("request", "GetCapabilities")
	return c.baseURL + "/geoserver/geoserver/" + url.PathEscape(Workspace(project)) + "/mainortho/wms?" + q.Encode()
}

// WMSURL is the endpoint image layers are requested from.
func (c *Client) WMSURL() string {
	return c.baseURL + "/geoserver/geoserver/ows?version=1.3.0"
}

// WFSURL is the endpoint vector layers are requested from.
func (c *Client) WFSURL() string {
	return c.baseURL + "/geoserver/geoserver/ows?service=WFS&version=1.0.0&request=GetFeature&maxFeatures=50"
}

// Capabilities fetches the orthomosaic capabilities and returns its time
// dimension.
func (c *Client) Capabilities(ctx context.Context, project string) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.CapabilitiesURL(project), nil)
	if err != nil {
		return nil, fmt.Errorf("capabilities: %w", err)
	}
	defer resp.Body.Close()

	times, err := timedim.ParseCapabilities(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("capabilities: %w", err)
	}
	return times, nil
}

// Artifacts lists a project's published layers.
func (c *Client) Artifacts(ctx context.Context, project string) ([]Artifact, error) {
	var out struct {
		Artifacts []Artifact `json:"artifacts"`
	}
	if err := c.getJSON(ctx, "/mapper/"+url.PathEscape(project)+"/artifacts", &out); err != nil {
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	return out.Artifacts, nil
}

// Indices lists a project's computed index layers.
func (c *Client) Indices(ctx context.Context, project string) ([]Index, error) {
	var out struct {
		Indices []Index `json:"indices"`
	}
	if err := c.getJSON(ctx, "/mapper/"+url.PathEscape(project)+"/indices", &out); err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}
	return out.Indices, nil
}

// BBox returns the orthomosaic extent in EPSG:3857.
func (c *Client) BBox(ctx context.Context, project string) (orb.Bound, error) {
	var out struct {
		SRS  string `json:"srs"`
		BBox struct {
			MinX float64 `json:"minx"`
			MinY float64 `json:"miny"`
			MaxX float64 `json:"maxx"`
			MaxY float64 `json:"maxy"`
		} `json:"bbox"`
	}
	if err := c.getJSON(ctx, "/mapper/"+url.PathEscape(project)+"/bbox", &out); err != nil {
		return orb.Bound{}, fmt.Errorf("bbox: %w", err)
	}
	b := out.BBox
	return ToWebMercator(out.SRS, orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}})
}

// ToWebMercator reprojects a bound from an "EPSG:<code>" reference system.
func ToWebMercator(srs string, b orb.Bound) (orb.Bound, error) {
	code, err := epsgCode(srs)
	if err != nil {
		return orb.Bound{}, err
	}
	if code == 3857 {
		return b, nil
	}
	f := wgs84.EPSG().Transform(code, 3857)
	minX, minY, _ := f(b.Min[0], b.Min[1], 0)
	maxX, maxY, _ := f(b.Max[0], b.Max[1], 0)
	for _, v := range []float64{minX, minY, maxX, maxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return orb.Bound{}, fmt.Errorf("%w: from %s", ErrBadBBox, srs)
		}
	}
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}, nil
}

func epsgCode(srs string) (int, error) {
	s := strings.TrimSpace(srs)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: unknown srs %q", ErrBadBBox, srs)
	}
	return code, nil
}

// CreateIndex asks the backend to compute a raster index for the project.
func (c *Client) CreateIndex(ctx context.Context, project, index, formula string) error {
	body, err := json.Marshal(map[string]string{"index": index, "formula": formula})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/rastercalcs/"+url.PathEscape(project), body)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusPaymentRequired {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("create index %s: %w", index, err)
	}
	resp.Body.Close()
	c.log.Info().Str("project", project).Str("index", index).Msg("index created")
	return nil
}

// CheckFormula validates an index formula against the backend.
func (c *Client) CheckFormula(ctx context.Context, formula string) error {
	body, err := json.Marshal(map[string]string{"formula": formula})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/rastercalcs/check", body)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusBadRequest {
			return ErrInvalidFormula
		}
		return fmt.Errorf("check formula: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do sends a request with the no-cache headers and returns the response
// for 2xx statuses. Other statuses become a *StatusError.
func (c *Client) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.log.Debug().Str("method", method).Str("url", req.URL.Path).Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}
