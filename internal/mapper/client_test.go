package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCaps = `<WMS_Capabilities version="1.3.0"><Capability><Layer>
<Dimension name="time">2020-05-01T00:00:00Z,2020-06-01T00:00:00Z</Dimension>
</Layer></Capability></WMS_Capabilities>`

type backend struct {
	mux   *http.ServeMux
	calls []string
}

func newBackend(t *testing.T) (*backend, *Client) {
	t.Helper()
	b := &backend{mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.calls = append(b.calls, r.URL.Path)
		assert.Equal(t, "no-cache", r.Header.Get("Pragma"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		b.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return b, New(Options{BaseURL: srv.URL + "/", Token: "s3cret", Logger: zerolog.Nop()})
}

func (b *backend) handleProject(id string) {
	b.mux.HandleFunc("GET /geoserver/geoserver/project_"+id+"/mainortho/wms", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("request") != "GetCapabilities" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, testCaps)
	})
	b.mux.HandleFunc("GET /mapper/"+id+"/artifacts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"artifacts": []Artifact{
			{Name: "Ortho", Layer: "project_" + id + ":mainortho", Type: ArtifactOrthomosaic},
			{Name: "Lotes", Layer: "project_" + id + ":lotes", Type: ArtifactShapefile},
		}})
	})
	b.mux.HandleFunc("GET /mapper/"+id+"/indices", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"indices": []Index{
			{Name: "ndvi", Title: "NDVI", Layer: "project_" + id + ":ndvi"},
		}})
	})
	b.mux.HandleFunc("GET /mapper/"+id+"/bbox", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"srs":"EPSG:4326","bbox":{"minx":-80,"miny":-2,"maxx":-79,"maxy":-1}}`)
	})
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{BaseURL: "http://backend/"})
	assert.Equal(t, "http://backend", c.baseURL)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
}

func TestCapabilitiesURL(t *testing.T) {
	c := New(Options{BaseURL: "http://backend"})
	assert.Equal(t,
		"http://backend/geoserver/geoserver/project_abc/mainortho/wms?request=GetCapabilities&service=WMS&version=1.3.0",
		c.CapabilitiesURL("abc"))
}

func TestBootstrap(t *testing.T) {
	b, c := newBackend(t)
	b.handleProject("p1")

	p, err := c.Bootstrap(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "project_p1", p.Workspace)
	assert.Equal(t, []string{"2020-05-01", "2020-06-01"}, p.Times)
	assert.Len(t, p.Artifacts, 2)
	assert.Equal(t, []Artifact{{Name: "Lotes", Layer: "project_p1:lotes", Type: ArtifactShapefile}}, p.Shapefiles())
	assert.Equal(t, "NDVI", p.Indices[0].Title)

	want := project.Point(orb.Point{-80, -2}, project.WGS84.ToMercator)
	assert.InDelta(t, want.X(), p.Extent.Min.X(), 1)
	assert.InDelta(t, want.Y(), p.Extent.Min.Y(), 1)

	assert.Equal(t, []string{
		"/geoserver/geoserver/project_p1/mainortho/wms",
		"/mapper/p1/artifacts",
		"/mapper/p1/indices",
		"/mapper/p1/bbox",
	}, b.calls)
}

func TestBootstrap_StopsOnFirstFailure(t *testing.T) {
	b, c := newBackend(t)
	b.mux.HandleFunc("GET /geoserver/geoserver/project_p2/mainortho/wms", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "geoserver down", http.StatusBadGateway)
	})

	_, err := c.Bootstrap(context.Background(), "p2")
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Len(t, b.calls, 1)
}

func TestAuthorizationHeader(t *testing.T) {
	b, c := newBackend(t)
	var auth string
	b.mux.HandleFunc("GET /mapper/p/indices", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"indices":[]}`)
	})

	_, err := c.Indices(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "Token s3cret", auth)
}

func TestCreateIndex(t *testing.T) {
	b, c := newBackend(t)
	var got map[string]string
	b.mux.HandleFunc("POST /api/rastercalcs/ok", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	})
	b.mux.HandleFunc("POST /api/rastercalcs/full", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})
	b.mux.HandleFunc("POST /api/rastercalcs/mixed", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not all flights are multispectral!", http.StatusBadRequest)
	})
	ctx := context.Background()

	require.NoError(t, c.CreateIndex(ctx, "ok", "ndvi", "(nir-red)/(nir+red)"))
	assert.Equal(t, map[string]string{"index": "ndvi", "formula": "(nir-red)/(nir+red)"}, got)

	err := c.CreateIndex(ctx, "full", "ndvi", "x")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, MsgQuotaExceeded, err.Error())

	err = c.CreateIndex(ctx, "mixed", "ndvi", "x")
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
	assert.ErrorContains(t, err, "Not all flights are multispectral!")
}

func TestCheckFormula(t *testing.T) {
	b, c := newBackend(t)
	b.mux.HandleFunc("POST /api/rastercalcs/check", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		if in["formula"] != "red" {
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	assert.NoError(t, c.CheckFormula(context.Background(), "red"))
	assert.ErrorIs(t, c.CheckFormula(context.Background(), "red+"), ErrInvalidFormula)
}

func TestToWebMercator(t *testing.T) {
	b := orb.Bound{Min: orb.Point{1, 2}, Max: orb.Point{3, 4}}
	got, err := ToWebMercator("EPSG:3857", b)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = ToWebMercator("urn:bogus", b)
	assert.ErrorIs(t, err, ErrBadBBox)
}

func TestServerDown(t *testing.T) {
	c := New(Options{BaseURL: "http://localhost:59999", Timeout: time.Second})
	_, err := c.Artifacts(context.Background(), "p")
	assert.Error(t, err)
}
