package viewer

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapper/internal/measure"
	"github.com/joeblew999/plat-mapper/internal/service"
	"github.com/joeblew999/plat-mapper/internal/service/servicetest"
	"github.com/joeblew999/plat-mapper/internal/templates"
)

type fixture struct {
	mux  *http.ServeMux
	svc  *service.SessionService
	sess *service.Session
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	svc := servicetest.NewService(t, servicetest.NewBackend())
	sess, err := svc.Create(context.Background(), "p", "")
	require.NoError(t, err)

	r, err := templates.New("")
	require.NoError(t, err)

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("viewer", "1.0.0"))
	NewHandler(svc, r, zerolog.Nop()).RegisterRoutes(api)
	return fixture{mux: mux, svc: svc, sess: sess}
}

func (f fixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f fixture) url(suffix string) string {
	return "/api/v1/viewer/" + f.sess.ID + suffix
}

func TestControl_SaveSendsDownload(t *testing.T) {
	f := newFixture(t)
	servicetest.DrawLine(t, f.sess, "", servicetest.Merc(0, 0), servicetest.Merc(0.001, 0))

	rec := f.post(t, f.url("/controls/save"), `{"filename":"lindero"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, EventDownload)
	assert.Contains(t, body, "/api/v1/downloads/")
	assert.Equal(t, 1, f.svc.Downloads().Len())
}

func TestControl_SaveWithNothingAlerts(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, f.url("/controls/save"), `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), measure.MsgNothingToExport)
	assert.Zero(t, f.svc.Downloads().Len())
}

func TestControl_ToggleDraw(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, f.url("/controls/area"), `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, measure.ModePolygon.String(), f.sess.Info().Mode)
	assert.Contains(t, rec.Body.String(), `class="active"`)

	f.post(t, f.url("/controls/area"), `{}`)
	assert.Equal(t, "idle", f.sess.Info().State)
}

func TestControl_UnknownName(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, f.url("/controls/rotate"), `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEvent_DrawsMeasurement(t *testing.T) {
	f := newFixture(t)
	f.post(t, f.url("/controls/length"), `{}`)

	a, b := servicetest.Merc(0, 0), servicetest.Merc(0.0005, 0)
	line := `{"type":"LineString","coordinates":[[` + coord(a) + `],[` + coord(b) + `]]}`

	for _, ev := range []string{
		`{"event":{"type":"drawstart","geometry":{"type":"LineString","coordinates":[[` + coord(a) + `]]}}}`,
		`{"event":{"type":"change","geometry":` + line + `}}`,
		`{"event":{"type":"drawend","name":"fence"}}`,
	} {
		rec := f.post(t, f.url("/events"), ev)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	ms := f.sess.Measurements()
	require.Len(t, ms, 1)
	assert.Equal(t, "55.66 m", ms[0].Label)
	assert.Equal(t, "fence", ms[0].Properties["name"])
}

func TestEvent_Rejected(t *testing.T) {
	f := newFixture(t)

	for name, body := range map[string]string{
		"missing":    `{}`,
		"bad type":   `{"event":{"type":"wheel"}}`,
		"coordinate": `{"event":{"type":"pointermove","coordinate":[1]}}`,
		"geometry":   `{"event":{"type":"change","geometry":{"type":"Nope"}}}`,
		"multi":      `{"event":{"type":"drawend","geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]}}}`,
		"empty ring": `{"event":{"type":"change","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]],[]]}}}`,
		"no rings":   `{"event":{"type":"change","geometry":{"type":"Polygon","coordinates":[]}}}`,
		"not json":   `{`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.post(t, f.url("/events"), body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestTime(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, f.url("/time"), `{"time":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2021-02-01")
	assert.Equal(t, 1, f.sess.Info().TimeIndex)

	rec = f.post(t, f.url("/time"), `{"time":9}`)
	assert.Contains(t, rec.Body.String(), "out of range")
	assert.Equal(t, 1, f.sess.Info().TimeIndex)

	rec = f.post(t, f.url("/time"), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLayer(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, f.url("/layers"), `{"layer":"openstreetmap","visible":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, l := range f.sess.Layers() {
		if l.ID == "openstreetmap" {
			assert.True(t, l.Visible)
		}
	}

	rec = f.post(t, f.url("/layers"), `{"layer":"nope","visible":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/api/v1/viewer/missing/events", `{"event":{"type":"pointerout"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+f.url("/stream"), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	waitFor := func(s string) {
		t.Helper()
		for lines.Scan() {
			if strings.Contains(lines.Text(), s) {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", s, lines.Err())
	}

	waitFor(`id="viewer"`)
	require.Eventually(t, func() bool { return f.svc.Bus().Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	servicetest.DrawLine(t, f.sess, "", servicetest.Merc(0, 0), servicetest.Merc(0.0005, 0))
	waitFor("55.66 m")

	require.NoError(t, f.svc.Close(f.sess.ID))
	waitFor(EventSessionClosed)
}

func TestGroupLayers(t *testing.T) {
	groups := groupLayers([]service.MapLayer{
		{ID: "a", Group: service.GroupBasemaps},
		{ID: "b", Group: service.GroupImages},
		{ID: "c", Group: service.GroupBasemaps},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, service.GroupBasemaps, groups[0].Name)
	assert.Len(t, groups[0].Layers, 2)
	assert.Equal(t, "b", groups[1].Layers[0].ID)
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent(map[string]any{"event": map[string]any{
		"type": "keydown", "key": "Delete",
	}})
	require.NoError(t, err)
	assert.Equal(t, measure.Event{Type: measure.EventKeyDown, Key: measure.KeyDelete}, ev)

	ev, err = decodeEvent(map[string]any{"event": map[string]any{
		"type": "select", "featureId": 3.0, "coordinate": []any{1.0, 2.0},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, ev.FeatureID)
	assert.Equal(t, orb.Point{1, 2}, ev.Coordinate)
	assert.Nil(t, ev.Geometry)
}

func coord(p orb.Point) string {
	return strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64)
}
