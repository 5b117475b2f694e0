package service

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

// Zoom limits of the map view.
const (
	MinZoom = 2
	MaxZoom = 19
)

const tilePixels = 256

// MapView is a center and zoom in EPSG:3857.
type MapView struct {
	Center [2]float64 `json:"center" doc:"View center in EPSG:3857"`
	Zoom   int        `json:"zoom" doc:"Zoom level"`
}

// FitView returns the deepest zoom at which the extent fits in a viewport
// of the given pixel size.
func FitView(extent orb.Bound, width, height int) MapView {
	v := MapView{Center: [2]float64(extent.Center()), Zoom: MinZoom}
	if extent.IsEmpty() || width <= 0 || height <= 0 {
		return v
	}

	sw := project.Point(extent.Min, project.Mercator.ToWGS84)
	ne := project.Point(extent.Max, project.Mercator.ToWGS84)
	for z := maptile.Zoom(MaxZoom); z >= MinZoom; z-- {
		a := maptile.At(sw, z)
		b := maptile.At(ne, z)
		cols := int(b.X) - int(a.X) + 1
		rows := int(a.Y) - int(b.Y) + 1
		if cols*tilePixels <= width && rows*tilePixels <= height {
			v.Zoom = int(z)
			return v
		}
	}
	return v
}
