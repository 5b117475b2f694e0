package measure

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSaver struct {
	saved []Download
	err   error
}

func (s *recordingSaver) Save(d Download) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, d)
	return nil
}

type recordingNotifier struct{ alerts []string }

func (n *recordingNotifier) Alert(msg string) { n.alerts = append(n.alerts, msg) }

type fixture struct {
	v        *Viewer
	surface  *MemorySurface
	saver    *recordingSaver
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		surface:  NewMemorySurface(),
		saver:    &recordingSaver{},
		notifier: &recordingNotifier{},
	}
	f.v = New(Options{
		Surface:     f.surface,
		Saver:       f.saver,
		Notifier:    f.notifier,
		Logger:      zerolog.Nop(),
		ProjectName: "Finca Norte",
	})
	f.v.Init()
	t.Cleanup(f.v.Dispose)
	return f
}

func (f *fixture) dispatch(t *testing.T, ev Event) {
	t.Helper()
	require.NoError(t, f.v.Dispatch(ev))
}

func (f *fixture) drawLine(t *testing.T, name string, pts ...orb.Point) int {
	t.Helper()
	f.v.Activate(ModeLine)
	f.dispatch(t, Event{Type: EventDrawStart, Geometry: orb.LineString{pts[0]}})
	for i := 2; i <= len(pts); i++ {
		f.dispatch(t, Event{Type: EventChange, Geometry: orb.LineString(pts[:i])})
	}
	id := f.v.NextID()
	f.dispatch(t, Event{Type: EventDrawEnd, Name: name})
	return id
}

func (f *fixture) drawPolygon(t *testing.T, name string, ring orb.Ring) int {
	t.Helper()
	f.v.Activate(ModePolygon)
	f.dispatch(t, Event{Type: EventDrawStart, Geometry: orb.Polygon{ring[:1]}})
	f.dispatch(t, Event{Type: EventChange, Geometry: orb.Polygon{ring}})
	id := f.v.NextID()
	f.dispatch(t, Event{Type: EventDrawEnd, Name: name})
	return id
}

func (f *fixture) drawPoint(t *testing.T, name string, p orb.Point) int {
	t.Helper()
	f.v.Activate(ModePoint)
	id := f.v.NextID()
	f.dispatch(t, Event{Type: EventDrawEnd, Geometry: p, Name: name})
	return id
}

var square = orb.Ring{{0, 0}, {200, 0}, {200, 200}, {0, 200}, {0, 0}}

func TestViewer_DispatchBeforeInit(t *testing.T) {
	v := New(Options{Logger: zerolog.Nop()})
	err := v.Dispatch(Event{Type: EventPointerMove})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, v.Trigger(ControlArea, Input{}), ErrNotInitialized)
}

func TestViewer_ActivateAttachesInteractionAndHelp(t *testing.T) {
	f := newFixture(t)

	f.v.Activate(ModeLine)

	assert.Equal(t, StateDrawing, f.v.State())
	assert.Equal(t, ModeLine, f.v.Mode())
	require.Len(t, f.surface.Interactions(), 1)
	it := f.surface.Interactions()[0]
	assert.Equal(t, ModeLine, it.Mode)
	assert.Equal(t, DefaultDraftStyle.LineDash, it.Style.LineDash)

	help := f.surface.OverlaysOf(OverlayHelp)
	require.Len(t, help, 1)
	assert.False(t, help[0].Visible)
	assert.Equal(t, 1, f.v.ListenerCount(EventPointerMove))
}

func TestViewer_HelpFollowsPointer(t *testing.T) {
	f := newFixture(t)
	f.v.Activate(ModePolygon)

	f.dispatch(t, Event{Type: EventPointerMove, Coordinate: orb.Point{5, 6}})
	help := f.surface.OverlaysOf(OverlayHelp)[0]
	assert.True(t, help.Visible)
	assert.Equal(t, orb.Point{5, 6}, help.Position)
	assert.Equal(t, HelpStart, help.Text)

	f.dispatch(t, Event{Type: EventDrawStart, Geometry: orb.Polygon{{{0, 0}}}})
	f.dispatch(t, Event{Type: EventPointerMove, Coordinate: orb.Point{7, 8}})
	help = f.surface.OverlaysOf(OverlayHelp)[0]
	assert.Equal(t, HelpContinue, help.Text)

	f.dispatch(t, Event{Type: EventPointerOut})
	help = f.surface.OverlaysOf(OverlayHelp)[0]
	assert.False(t, help.Visible)
}

func TestViewer_PointerMoveWhileIdleIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.dispatch(t, Event{Type: EventPointerMove, Coordinate: orb.Point{1, 1}})
	assert.Empty(t, f.surface.Overlays())
}

func TestViewer_LiveTooltipTracksGeometry(t *testing.T) {
	f := newFixture(t)
	f.v.Activate(ModeLine)

	f.dispatch(t, Event{Type: EventDrawStart, Geometry: orb.LineString{merc(0, 0)}})
	f.dispatch(t, Event{Type: EventChange, Geometry: orb.LineString{merc(0, 0), merc(0.0005, 0)}})

	tips := f.surface.OverlaysOf(OverlayMeasure)
	require.Len(t, tips, 1)
	assert.Equal(t, ClassMeasure, tips[0].Class)
	assert.Equal(t, "55.66 m", tips[0].Text)
	assert.Equal(t, merc(0.0005, 0), tips[0].Position)
	assert.Equal(t, 1, f.v.ListenerCount(EventChange))
}

func TestViewer_DrawEndFinalizes(t *testing.T) {
	f := newFixture(t)

	id := f.drawLine(t, "fence", merc(0, 0), merc(0.0005, 0))

	assert.Equal(t, 1, id)
	assert.Equal(t, StateIdle, f.v.State())
	assert.Empty(t, f.surface.Interactions())
	assert.Empty(t, f.surface.OverlaysOf(OverlayHelp))
	assert.Equal(t, 0, f.v.ListenerCount(EventChange))
	assert.Equal(t, 0, f.v.ListenerCount(EventPointerMove))

	feat, ok := f.v.Registry().Get(1)
	require.True(t, ok)
	assert.Equal(t, "fence", feat.Properties["name"])
	assert.Equal(t, "LineString", feat.Kind())

	tip, ok := f.v.Registry().Overlay(1)
	require.True(t, ok)
	assert.Equal(t, ClassStatic, tip.Class)
	assert.Equal(t, [2]int{0, -7}, tip.Offset)
	assert.Equal(t, 1, tip.FeatureID)
	assert.Equal(t, "55.66 m", tip.Text)
}

func TestViewer_DrawEndWithoutName(t *testing.T) {
	f := newFixture(t)
	f.drawPolygon(t, "", square)

	feat, _ := f.v.Registry().Get(1)
	_, named := feat.Properties["name"]
	assert.False(t, named)
}

func TestViewer_PointHasHiddenOverlay(t *testing.T) {
	f := newFixture(t)
	id := f.drawPoint(t, "well", orb.Point{1, 2})

	tip, ok := f.v.Registry().Overlay(id)
	require.True(t, ok)
	assert.False(t, tip.Visible)
	assert.Empty(t, tip.Text)
	assert.Len(t, f.surface.OverlaysOf(OverlayMeasure), 1)
}

func TestViewer_IdentifiersAreDenseAcrossCancels(t *testing.T) {
	f := newFixture(t)

	var ids []int
	for i := 0; i < 5; i++ {
		// abandoned sketch: started, then toggled off
		f.v.Activate(ModeLine)
		f.dispatch(t, Event{Type: EventDrawStart, Geometry: orb.LineString{{0, 0}}})
		f.v.Activate(ModeLine)

		ids = append(ids, f.drawLine(t, "", orb.Point{0, 0}, orb.Point{float64(i + 1), 0}))
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids)
	got := make([]int, 0, 5)
	for _, feat := range f.v.Registry().Features() {
		got = append(got, feat.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestViewer_IdentifiersNeverReused(t *testing.T) {
	f := newFixture(t)
	f.drawLine(t, "", orb.Point{0, 0}, orb.Point{1, 0})
	f.drawLine(t, "", orb.Point{0, 0}, orb.Point{2, 0})
	f.v.Registry().Delete(2)
	f.v.ClearAll()

	id := f.drawLine(t, "", orb.Point{0, 0}, orb.Point{3, 0})
	assert.Equal(t, 3, id)
}

func TestViewer_ToggleSameModeCancels(t *testing.T) {
	f := newFixture(t)
	f.v.Activate(ModePolygon)
	f.dispatch(t, Event{Type: EventDrawStart, Geometry: orb.Polygon{{{0, 0}}}})

	f.v.Activate(ModePolygon)

	assert.Equal(t, StateIdle, f.v.State())
	assert.Empty(t, f.surface.Interactions())
	assert.Empty(t, f.surface.Overlays(), "partial tooltip and help overlay must go")
	assert.Equal(t, 0, f.v.Registry().Len())
	assert.Equal(t, 1, f.v.NextID())
}

func TestViewer_SingleActiveSession(t *testing.T) {
	f := newFixture(t)

	f.v.Activate(ModeLine)
	f.v.Activate(ModePolygon)

	require.Len(t, f.surface.Interactions(), 1)
	assert.Equal(t, ModePolygon, f.surface.Interactions()[0].Mode)
	assert.Equal(t, ModePolygon, f.v.Mode())
	assert.Len(t, f.surface.OverlaysOf(OverlayHelp), 1)
	assert.Equal(t, 1, f.v.ListenerCount(EventPointerMove))
	assert.Equal(t, 1, f.v.ListenerCount(EventDrawEnd))

	f.v.Activate(ModePoint)
	require.Len(t, f.surface.Interactions(), 1)
	assert.Equal(t, ModePoint, f.surface.Interactions()[0].Mode)
}

func TestViewer_DrawStartClearsSelection(t *testing.T) {
	f := newFixture(t)
	id := f.drawLine(t, "a", orb.Point{0, 0}, orb.Point{1, 0})
	f.dispatch(t, Event{Type: EventSelect, FeatureID: id})
	require.Equal(t, id, f.v.Registry().Selected())

	f.v.Activate(ModeLine)
	f.dispatch(t, Event{Type: EventDrawStart, Geometry: orb.LineString{{0, 0}}})

	assert.Equal(t, 0, f.v.Registry().Selected())
	assert.Equal(t, 0, f.v.ListenerCount(EventKeyDown))
	assert.Empty(t, f.surface.OverlaysOf(OverlayPopup))
}

func TestViewer_SelectIgnoredWhileSketching(t *testing.T) {
	f := newFixture(t)
	id := f.drawLine(t, "a", orb.Point{0, 0}, orb.Point{1, 0})

	f.v.Activate(ModeLine)
	f.dispatch(t, Event{Type: EventDrawStart, Geometry: orb.LineString{{0, 0}}})
	f.dispatch(t, Event{Type: EventSelect, FeatureID: id})

	assert.Equal(t, 0, f.v.Registry().Selected())
}

func TestViewer_PolygonWithEmptyHole(t *testing.T) {
	f := newFixture(t)
	f.v.Activate(ModePolygon)
	holed := orb.Polygon{square, {}}

	f.dispatch(t, Event{Type: EventDrawStart, Geometry: holed})
	assert.Equal(t, 1, f.v.ListenerCount(EventChange))
	f.dispatch(t, Event{Type: EventChange, Geometry: holed})
	f.dispatch(t, Event{Type: EventDrawEnd})

	tip, ok := f.v.Registry().Overlay(1)
	require.True(t, ok)
	assert.Contains(t, tip.Text, "ha)")
}

func TestViewer_MismatchedGeometryIgnored(t *testing.T) {
	f := newFixture(t)
	f.v.Activate(ModeLine)

	// a point from the pointer coordinate is not a line
	f.dispatch(t, Event{Type: EventDrawStart, Coordinate: orb.Point{1, 1}})
	assert.Equal(t, 0, f.v.ListenerCount(EventChange))
	assert.Empty(t, f.surface.OverlaysOf(OverlayMeasure))

	f.dispatch(t, Event{Type: EventDrawStart, Geometry: orb.LineString{{0, 0}}})
	f.dispatch(t, Event{Type: EventChange, Geometry: orb.Polygon{square}})
	f.dispatch(t, Event{Type: EventDrawEnd, Geometry: orb.MultiPolygon{{square}}})

	assert.Equal(t, StateDrawing, f.v.State(), "drawing continues")
	assert.Equal(t, 0, f.v.Registry().Len())

	f.dispatch(t, Event{Type: EventDrawEnd, Geometry: orb.LineString{{0, 0}, {1, 0}}})
	feat, ok := f.v.Registry().Get(1)
	require.True(t, ok)
	assert.Equal(t, "LineString", feat.Kind())
}

func TestViewer_LineDrawEndWithoutSketchIgnored(t *testing.T) {
	f := newFixture(t)
	f.v.Activate(ModeLine)

	f.dispatch(t, Event{Type: EventDrawEnd, Coordinate: orb.Point{3, 4}})

	assert.Equal(t, StateDrawing, f.v.State())
	assert.Equal(t, 0, f.v.Registry().Len())
	assert.Equal(t, 1, f.v.NextID())
}

func TestModeAccepts(t *testing.T) {
	assert.True(t, ModePoint.Accepts(orb.Point{}))
	assert.True(t, ModeLine.Accepts(orb.LineString{}))
	assert.True(t, ModePolygon.Accepts(orb.Polygon{}))
	assert.False(t, ModeLine.Accepts(orb.MultiLineString{}))
	assert.False(t, ModePolygon.Accepts(nil))
	assert.False(t, ModeNone.Accepts(orb.Point{}))
}

type failingSurface struct{ *MemorySurface }

func (failingSurface) AttachOverlay(*Overlay) error         { return errors.New("map gone") }
func (failingSurface) AttachInteraction(*Interaction) error { return errors.New("map gone") }

func TestViewer_SurfaceErrorsAreSwallowed(t *testing.T) {
	v := New(Options{Surface: failingSurface{NewMemorySurface()}, Logger: zerolog.Nop()})
	v.Init()
	defer v.Dispose()

	v.Activate(ModeLine)
	require.NoError(t, v.Dispatch(Event{Type: EventDrawStart, Geometry: orb.LineString{{0, 0}}}))
	require.NoError(t, v.Dispatch(Event{Type: EventDrawEnd, Geometry: orb.LineString{{0, 0}, {1, 0}}}))

	assert.Equal(t, StateIdle, v.State())
	assert.Equal(t, 1, v.Registry().Len())
}

func TestViewer_DisposeTearsDown(t *testing.T) {
	f := newFixture(t)
	f.drawLine(t, "", orb.Point{0, 0}, orb.Point{1, 0})
	f.v.Activate(ModePolygon)

	f.v.Dispose()

	assert.False(t, f.v.Ready())
	assert.Empty(t, f.surface.Overlays())
	assert.Empty(t, f.surface.Interactions())
	assert.Equal(t, 0, f.v.ListenerCount(EventSelect))
	assert.Empty(t, f.v.Controls())
}
