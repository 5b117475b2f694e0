package service

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/joeblew999/plat-mapper/internal/mapper"
	"github.com/joeblew999/plat-mapper/internal/timedim"
)

// Layer groups as shown in the layer tree.
const (
	GroupBasemaps   = "Mapas base"
	GroupImages     = "Imágenes"
	GroupShapefiles = "Shapefiles"
)

// Layer kinds.
const (
	KindXYZ = "xyz"
	KindOSM = "osm"
	KindWMS = "wms"
	KindWFS = "wfs"
)

// ErrLayerNotFound is returned for unknown layer IDs.
var ErrLayerNotFound = errors.New("layer not found")

const esriImagery = "https://services.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"

// LayerSet holds the map layers of one session in display order.
type LayerSet struct {
	layers map[string]*MapLayer
	order  []string
	mu     sync.RWMutex
}

// NewLayerSet builds the initial layers of a project: base maps, the
// time-aware RGB orthomosaic, one time-aware layer per computed index and
// one vector layer per shapefile.
func NewLayerSet(p *mapper.Project, wmsURL, wfsURL string) *LayerSet {
	s := &LayerSet{layers: make(map[string]*MapLayer)}

	s.add(MapLayer{Name: "Satélite (ArcGIS/ESRI)", Group: GroupBasemaps, Kind: KindXYZ, URL: esriImagery, Visible: true})
	s.add(MapLayer{Name: "OpenStreetMap", Group: GroupBasemaps, Kind: KindOSM})
	s.add(MapLayer{
		ID: "mainortho", Name: "Ortomosaico RGB", Group: GroupImages, Kind: KindWMS, URL: wmsURL,
		Params: map[string]string{"LAYERS": p.Workspace + ":mainortho"}, TimeAware: true, Visible: true,
	})
	for _, idx := range p.Indices {
		s.add(indexLayer(idx, wmsURL))
	}
	for _, shp := range p.Shapefiles() {
		s.add(MapLayer{
			Name: shp.Name, Group: GroupShapefiles, Kind: KindWFS, URL: wfsURL,
			Params: map[string]string{"typeName": shp.Layer, "outputFormat": "application/json"}, Visible: true,
		})
	}
	return s
}

func indexLayer(idx mapper.Index, wmsURL string) MapLayer {
	name := idx.Title
	if name == "" {
		name = strings.ToUpper(idx.Name)
	}
	return MapLayer{
		ID: "index_" + generateID(indexKey(idx)), Name: name, Group: GroupImages, Kind: KindWMS, URL: wmsURL,
		Params: map[string]string{"LAYERS": idx.Layer}, TimeAware: true,
	}
}

// indexKey names an index by its WMS layer without the workspace prefix.
// The backend does not always send a name.
func indexKey(idx mapper.Index) string {
	if _, layer, _ := strings.Cut(idx.Layer, ":"); layer != "" {
		return layer
	}
	for _, k := range []string{idx.Layer, idx.Name, idx.Title} {
		if k != "" {
			return k
		}
	}
	return ""
}

func (s *LayerSet) add(l MapLayer) bool {
	if l.ID == "" {
		l.ID = generateID(l.Name)
	}
	if _, exists := s.layers[l.ID]; exists {
		return false
	}
	s.layers[l.ID] = &l
	s.order = append(s.order, l.ID)
	return true
}

// List returns copies of all layers in display order.
func (s *LayerSet) List() []MapLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MapLayer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.layers[id].clone())
	}
	return out
}

// Get returns a layer by ID.
func (s *LayerSet) Get(id string) (MapLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.layers[id]
	if !ok {
		return MapLayer{}, false
	}
	return l.clone(), true
}

// AddIndices adds index layers not present yet and returns the added ones.
func (s *LayerSet) AddIndices(indices []mapper.Index, wmsURL string) []MapLayer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []MapLayer
	for _, idx := range indices {
		l := indexLayer(idx, wmsURL)
		if s.add(l) {
			added = append(added, l.clone())
		}
	}
	return added
}

// SetVisible shows or hides a layer.
func (s *LayerSet) SetVisible(id string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.layers[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}
	l.Visible = visible
	return nil
}

// TimeSources returns a source for every time-aware layer.
func (s *LayerSet) TimeSources() []timedim.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []timedim.Source
	for _, id := range s.order {
		if s.layers[id].TimeAware {
			out = append(out, layerSource{set: s, id: id})
		}
	}
	return out
}

// layerSource merges request parameters into one layer of a set.
type layerSource struct {
	set *LayerSet
	id  string
}

func (ls layerSource) UpdateParams(params map[string]string) {
	ls.set.mu.Lock()
	defer ls.set.mu.Unlock()

	l, ok := ls.set.layers[ls.id]
	if !ok {
		return
	}
	if l.Params == nil {
		l.Params = make(map[string]string, len(params))
	}
	maps.Copy(l.Params, params)
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	// Remove any characters that aren't alphanumeric or underscore
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
