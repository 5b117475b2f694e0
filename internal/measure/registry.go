package measure

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

// Feature is a finalized annotation.
type Feature struct {
	ID         int
	Geometry   orb.Geometry
	Properties map[string]any
}

// Kind returns the GeoJSON geometry type name.
func (f *Feature) Kind() string {
	if f.Geometry == nil {
		return ""
	}
	return f.Geometry.GeoJSONType()
}

// Registry owns finalized features and their measurement overlays.
type Registry struct {
	ov        *overlays
	events    *listeners
	features  map[int]*Feature
	tooltips  map[int]*Overlay
	selected  *Feature
	deleteKey ListenerKey
	popup     *Overlay
}

func newRegistry(ov *overlays, events *listeners) *Registry {
	return &Registry{
		ov:       ov,
		events:   events,
		features: make(map[int]*Feature),
		tooltips: make(map[int]*Overlay),
	}
}

// add registers a feature together with its overlay.
func (r *Registry) add(f *Feature, tooltip *Overlay) {
	r.features[f.ID] = f
	r.tooltips[f.ID] = tooltip
}

// Len returns the number of registered features.
func (r *Registry) Len() int { return len(r.features) }

// Get returns a registered feature.
func (r *Registry) Get(id int) (*Feature, bool) {
	f, ok := r.features[id]
	return f, ok
}

// Overlay returns the measurement overlay of a feature.
func (r *Registry) Overlay(id int) (*Overlay, bool) {
	o, ok := r.tooltips[id]
	return o, ok
}

// Features returns the registered features in ID order.
func (r *Registry) Features() []*Feature {
	out := make([]*Feature, 0, len(r.features))
	for _, f := range r.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Selected returns the ID of the selected feature, or 0.
func (r *Registry) Selected() int {
	if r.selected == nil {
		return 0
	}
	return r.selected.ID
}

// Popup returns the attribute popup while a feature is selected.
func (r *Registry) Popup() (*Overlay, bool) {
	return r.popup, r.popup != nil
}

// Select opens the attribute popup for a feature and arms the delete key
// for it. Selecting 0 or an unknown ID clears the selection.
func (r *Registry) Select(id int, at orb.Point) {
	r.clearSelection()
	f, ok := r.features[id]
	if !ok {
		return
	}
	r.selected = f
	r.popup = &Overlay{
		Key:         "popup",
		Kind:        OverlayPopup,
		FeatureID:   f.ID,
		Class:       ClassPopup,
		Lines:       attributeLines(f.Properties),
		Position:    at,
		Positioning: "bottom-center",
		Visible:     true,
	}
	r.ov.attach(r.popup)
	r.deleteKey = r.events.on(EventKeyDown, func(ev Event) {
		if ev.Key == KeyDelete && r.selected == f {
			r.Delete(f.ID)
		}
	})
}

// clearSelection drops the selection, then its delete-key listener.
func (r *Registry) clearSelection() {
	r.selected = nil
	if r.popup != nil {
		r.ov.detach(r.popup)
		r.popup = nil
	}
	r.deleteKey = r.events.off(r.deleteKey)
}

// Delete removes a feature and its overlay.
func (r *Registry) Delete(id int) bool {
	f, ok := r.features[id]
	if !ok {
		return false
	}
	if r.selected == f {
		r.clearSelection()
	}
	r.ov.detach(r.tooltips[id])
	delete(r.features, id)
	delete(r.tooltips, id)
	return true
}

// ClearAll removes every feature and overlay and clears the selection.
func (r *Registry) ClearAll() {
	r.clearSelection()
	for id, o := range r.tooltips {
		r.ov.detach(o)
		delete(r.tooltips, id)
	}
	clear(r.features)
}

func attributeLines(props map[string]any) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		if k == "geometry" || k == "bbox" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s ⟶ %v", k, props[k])
	}
	return lines
}
