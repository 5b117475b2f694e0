// Package service holds map sessions: one measurement viewer, layer set
// and time dimension per open map, plus staged export downloads.
package service

import (
	"maps"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapper/internal/measure"
)

// MapLayer is a layer of the session's map.
type MapLayer struct {
	ID        string            `json:"id" doc:"Layer identifier" example:"mainortho"`
	Name      string            `json:"name" doc:"Display name" example:"Ortomosaico RGB"`
	Group     string            `json:"group" doc:"Layer tree group" example:"Imágenes"`
	Kind      string            `json:"kind" enum:"xyz,osm,wms,wfs" doc:"Source kind"`
	URL       string            `json:"url,omitempty" doc:"Source endpoint"`
	Params    map[string]string `json:"params,omitempty" doc:"Request parameters"`
	TimeAware bool              `json:"timeAware" doc:"Whether the TIME parameter follows the slider"`
	Visible   bool              `json:"visible" doc:"Whether the layer is shown"`
}

func (l *MapLayer) clone() MapLayer {
	c := *l
	if l.Params != nil {
		c.Params = maps.Clone(l.Params)
	}
	return c
}

// SessionInfo summarizes a session.
type SessionInfo struct {
	ID           string    `json:"id" doc:"Session identifier"`
	Project      string    `json:"project" doc:"Backend project identifier"`
	Name         string    `json:"name" doc:"Project display name"`
	Created      time.Time `json:"created" doc:"Creation time"`
	Measurements int       `json:"measurements" doc:"Number of registered measurements"`
	State        string    `json:"state" enum:"idle,drawing" doc:"Draw session state"`
	Mode         string    `json:"mode" doc:"Active draw mode"`
	Times        []string  `json:"times" doc:"Time dimension values"`
	TimeIndex    int       `json:"timeIndex" doc:"Applied time index"`
	Extent       []float64 `json:"extent" doc:"Project extent in EPSG:3857 (minx,miny,maxx,maxy)"`
	View         MapView   `json:"view" doc:"Initial view fitted to the extent"`
}

// Measurement is a registered annotation as exposed over the API.
type Measurement struct {
	ID         int            `json:"id" doc:"Measurement identifier"`
	Kind       string         `json:"kind" enum:"Point,LineString,Polygon" doc:"Geometry type"`
	Label      string         `json:"label,omitempty" doc:"Formatted length or area"`
	Properties map[string]any `json:"properties" doc:"Attributes"`
	Geometry   orb.Geometry   `json:"-"`
}

// Snapshot is everything needed to redraw a session's overlays and
// toolbar. It is taken under the session lock.
type Snapshot struct {
	Session      string
	State        measure.State
	Mode         measure.Mode
	Controls     []measure.ControlView
	Overlays     []measure.Overlay
	Interactions []measure.Interaction
	Layers       []MapLayer
	Times        []string
	TimeIndex    int
	TimeLabel    string
	Alerts       []string
	Measurements int
}
