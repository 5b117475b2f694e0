// Package servicetest provides an in-memory mapper backend and session
// helpers for handler tests.
package servicetest

import (
	"context"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapper/internal/mapper"
	"github.com/joeblew999/plat-mapper/internal/measure"
	"github.com/joeblew999/plat-mapper/internal/service"
)

// Backend is a canned mapper backend.
type Backend struct {
	Project   mapper.Project
	Err       error
	CreateErr error

	mu      sync.Mutex
	indices []mapper.Index
}

// Merc converts lon/lat to EPSG:3857.
func Merc(lon, lat float64) orb.Point {
	return project.Point(orb.Point{lon, lat}, project.WGS84.ToMercator)
}

// NewBackend returns a backend serving a five-date project with one
// shapefile.
func NewBackend() *Backend {
	return &Backend{Project: mapper.Project{
		Workspace: "project_p",
		Times:     []string{"2021-01-01", "2021-02-01", "2021-03-01", "2021-04-01", "2021-05-01"},
		Artifacts: []mapper.Artifact{{Name: "Lotes", Layer: "project_p:lotes", Type: mapper.ArtifactShapefile}},
		Extent:    orb.Bound{Min: Merc(-79.01, -2.01), Max: Merc(-79, -2)},
	}}
}

func (b *Backend) Bootstrap(_ context.Context, id string) (*mapper.Project, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	p := b.Project
	p.ID = id
	return &p, nil
}

func (b *Backend) Indices(context.Context, string) ([]mapper.Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]mapper.Index(nil), b.indices...), nil
}

func (b *Backend) CreateIndex(_ context.Context, _, index, _ string) error {
	if b.CreateErr != nil {
		return b.CreateErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indices = append(b.indices, mapper.Index{Name: index, Title: index, Layer: "project_p:" + index})
	return nil
}

func (b *Backend) WMSURL() string { return "http://backend/wms" }
func (b *Backend) WFSURL() string { return "http://backend/wfs" }

// NewService returns a session service on backend, shut down with the test.
func NewService(t testing.TB, backend service.Backend) *service.SessionService {
	t.Helper()
	svc := service.NewSessionService(service.Options{
		Backend:     backend,
		ProjectName: "Finca",
		Logger:      zerolog.Nop(),
	})
	t.Cleanup(svc.Shutdown)
	return svc
}

// DrawLine measures a line through pts and names it.
func DrawLine(t testing.TB, s *service.Session, name string, pts ...orb.Point) {
	t.Helper()
	_, err := s.Trigger(measure.ControlLength, measure.Input{})
	require.NoError(t, err)
	require.NoError(t, s.Dispatch(measure.Event{Type: measure.EventDrawStart, Geometry: orb.LineString{pts[0]}}))
	require.NoError(t, s.Dispatch(measure.Event{Type: measure.EventChange, Geometry: orb.LineString(pts)}))
	require.NoError(t, s.Dispatch(measure.Event{Type: measure.EventDrawEnd, Name: name}))
}
