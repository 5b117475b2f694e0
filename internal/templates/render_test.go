package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type overlayData struct {
	Key         string
	Kind        string
	FeatureID   int
	Class       string
	Text        string
	Lines       []string
	Position    orb.Point
	Offset      [2]int
	Positioning string
	Visible     bool
}

func TestEmbeddedOverlay(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	html, err := r.Render("overlay", overlayData{
		Key: "m1", Kind: "measure", FeatureID: 1, Class: "ol-tooltip ol-tooltip-static",
		Text: "55.66 m", Position: orb.Point{12.345, 6.789}, Offset: [2]int{0, -7},
		Positioning: "bottom-center", Visible: true,
	})
	require.NoError(t, err)
	assert.Contains(t, html, `id="overlay-m1"`)
	assert.Contains(t, html, `data-feature="1"`)
	assert.Contains(t, html, `data-x="12.35"`)
	assert.Contains(t, html, `data-offset="0,-7"`)
	assert.Contains(t, html, "55.66 m")
	assert.NotContains(t, html, "hidden")
}

func TestEmbeddedPopupLines(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	html, err := r.Render("overlay", overlayData{
		Key: "popup", Kind: "popup", Class: "ol-popup",
		Lines: []string{"crop ⟶ wheat", "name ⟶ <b>"},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "<p>crop ⟶ wheat</p>")
	assert.Contains(t, html, "&lt;b&gt;", "attribute values are escaped")
	assert.Contains(t, html, "hidden")
}

func TestEmptyState(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)
	html, err := r.Render("empty-state", map[string]string{"Title": "Nada", "Message": "Vacío"})
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>Nada</strong>")
	assert.Contains(t, html, "Vacío")
}

func TestRenderUnknown(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)
	_, err = r.Render("missing", nil)
	assert.Error(t, err)
}

func TestReloadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.html"), []byte(`{{define "greet"}}hola {{.}}{{end}}`), 0o644))

	r, err := New("")
	require.NoError(t, err)
	require.NoError(t, r.Reload(dir))

	got, err := r.Render("greet", "mundo")
	require.NoError(t, err)
	assert.Equal(t, "hola mundo", got)

	_, err = r.Render("toolbar", nil)
	assert.Error(t, err, "reload replaces the embedded set")

	assert.Error(t, r.Reload(filepath.Join(dir, "missing")))
}

func TestPageLoadsMapBridge(t *testing.T) {
	r, err := New("")
	require.NoError(t, err)

	html, err := r.Render("page", map[string]string{"Session": "s1", "Title": "Finca"})
	require.NoError(t, err)
	assert.Contains(t, html, `const session = "s1";`)
	assert.Contains(t, html, "/api/v1/viewer/${session}/events")
	assert.Contains(t, html, "new ol.interaction.Draw")
	for _, typ := range []string{"pointermove", "pointerout", "drawstart", "change", "drawend", "select", "keydown"} {
		assert.Contains(t, html, `type: "`+typ+`"`, typ)
	}
	assert.Contains(t, html, `data-init="@get('/api/v1/viewer/s1/stream')"`)
}
