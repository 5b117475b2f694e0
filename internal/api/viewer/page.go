package viewer

import (
	"github.com/joeblew999/plat-mapper/internal/measure"
	"github.com/joeblew999/plat-mapper/internal/service"
)

// page is the template data of the viewer fragments.
type page struct {
	Session      string
	State        string
	Mode         string
	Controls     []measure.ControlView
	Overlays     []measure.Overlay
	Groups       []layerGroup
	Times        []string
	TimeIndex    int
	TimeLabel    string
	Alerts       []string
	Measurements int
}

type layerGroup struct {
	Name   string
	Layers []service.MapLayer
}

func newPage(s service.Snapshot) page {
	return page{
		Session:      s.Session,
		State:        s.State.String(),
		Mode:         s.Mode.String(),
		Controls:     s.Controls,
		Overlays:     s.Overlays,
		Groups:       groupLayers(s.Layers),
		Times:        s.Times,
		TimeIndex:    s.TimeIndex,
		TimeLabel:    s.TimeLabel,
		Alerts:       s.Alerts,
		Measurements: s.Measurements,
	}
}

// groupLayers keeps layer order within a group and orders groups by
// their first layer.
func groupLayers(layers []service.MapLayer) []layerGroup {
	var groups []layerGroup
	index := map[string]int{}
	for _, l := range layers {
		i, ok := index[l.Group]
		if !ok {
			i = len(groups)
			index[l.Group] = i
			groups = append(groups, layerGroup{Name: l.Group})
		}
		groups[i].Layers = append(groups[i].Layers, l)
	}
	return groups
}
