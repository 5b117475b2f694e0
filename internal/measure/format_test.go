package measure

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
)

func merc(lon, lat float64) orb.Point {
	return project.Point(orb.Point{lon, lat}, project.WGS84.ToMercator)
}

func TestFormatLength(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{0, "0.00 m"},
		{12.345, "12.35 m"},
		{100.00, "100.00 m"},
		{100.01, "0.10 km"},
		{1534.2, "1.53 km"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLength(tt.meters))
	}
}

func TestFormatArea(t *testing.T) {
	tests := []struct {
		squareMeters float64
		want         string
	}{
		{0, "0.00 m²"},
		{950.5, "950.50 m²"},
		{10000, "10000.00 m²"},
		{10000.01, "0.01 km² (1.00 ha)"},
		{2500000, "2.50 km² (250.00 ha)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatArea(tt.squareMeters))
	}
}

func TestLabel_LineString(t *testing.T) {
	ls := orb.LineString{merc(0, 0), merc(0.0005, 0)}

	got, ok := Label(ls)
	assert.True(t, ok)
	assert.Equal(t, "55.66 m", got)

	// labels are recomputed from scratch on every change
	again, _ := Label(ls)
	assert.Equal(t, got, again)
}

func TestLabel_LineStringKilometres(t *testing.T) {
	ls := orb.LineString{merc(0, 0), merc(0.001, 0), merc(0.002, 0)}

	got, ok := Label(ls)
	assert.True(t, ok)
	assert.Equal(t, "0.22 km", got)
}

func TestLabel_Polygon(t *testing.T) {
	small := orb.Polygon{orb.Ring{merc(0, 0), merc(0.0005, 0), merc(0.0005, 0.0005), merc(0, 0.0005), merc(0, 0)}}
	got, ok := Label(small)
	assert.True(t, ok)
	assert.Contains(t, got, " m²")
	assert.NotContains(t, got, "ha")

	large := orb.Polygon{orb.Ring{merc(0, 0), merc(0.01, 0), merc(0.01, 0.01), merc(0, 0.01), merc(0, 0)}}
	got, ok = Label(large)
	assert.True(t, ok)
	assert.Contains(t, got, "km²")
	assert.Contains(t, got, "ha)")
}

func TestLabel_PointHasNone(t *testing.T) {
	got, ok := Label(merc(10, 10))
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestAnchor(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 0}, {10, 10}}
	assert.Equal(t, orb.Point{10, 10}, Anchor(ls))
	assert.Equal(t, orb.Point{3, 4}, Anchor(orb.Point{3, 4}))

	// U shape whose centroid falls in the notch
	u := orb.Polygon{orb.Ring{{0, 0}, {30, 0}, {30, 30}, {20, 30}, {20, 10}, {10, 10}, {10, 30}, {0, 30}, {0, 0}}}
	p := Anchor(u)
	assert.True(t, planar.PolygonContains(u, p), "anchor %v outside polygon", p)
}

func TestAnchor_DegenerateRings(t *testing.T) {
	tri := orb.Ring{{0, 0}, {10, 0}, {10, 10}}
	cases := map[string]orb.Polygon{
		"empty hole":      {tri, {}},
		"two point hole":  {tri, {{1, 1}, {2, 2}}},
		"empty shell":     {{}},
		"no rings":        {},
		"collinear shell": {{{0, 0}, {5, 0}, {10, 0}}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() { Anchor(p) })
		})
	}
	p := Anchor(orb.Polygon{tri, {}})
	assert.True(t, planar.PolygonContains(orb.Polygon{tri}, p), "anchor %v outside polygon", p)
}
