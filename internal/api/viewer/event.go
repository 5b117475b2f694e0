package viewer

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-mapper/internal/humastar"
	"github.com/joeblew999/plat-mapper/internal/measure"
)

// inputEvent is the "event" signal posted by the map page. Geometry is a
// GeoJSON geometry in EPSG:3857.
type inputEvent struct {
	Type       string          `json:"type"`
	Coordinate []float64       `json:"coordinate,omitempty"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
	FeatureID  int             `json:"featureId,omitempty"`
	Key        string          `json:"key,omitempty"`
	Name       string          `json:"name,omitempty"`
}

var eventTypes = map[string]measure.EventType{
	string(measure.EventPointerMove): measure.EventPointerMove,
	string(measure.EventPointerOut):  measure.EventPointerOut,
	string(measure.EventDrawStart):   measure.EventDrawStart,
	string(measure.EventChange):      measure.EventChange,
	string(measure.EventDrawEnd):     measure.EventDrawEnd,
	string(measure.EventSelect):      measure.EventSelect,
	string(measure.EventKeyDown):     measure.EventKeyDown,
}

// decodeEvent turns the "event" signal into a viewer event.
func decodeEvent(signals humastar.Signals) (measure.Event, error) {
	var in inputEvent
	if err := signals.Decode("event", &in); err != nil {
		return measure.Event{}, err
	}

	typ, ok := eventTypes[in.Type]
	if !ok {
		return measure.Event{}, fmt.Errorf("unknown event type %q", in.Type)
	}
	ev := measure.Event{Type: typ, FeatureID: in.FeatureID, Key: in.Key, Name: in.Name}

	if len(in.Coordinate) > 0 {
		if len(in.Coordinate) != 2 {
			return measure.Event{}, fmt.Errorf("coordinate needs 2 values, got %d", len(in.Coordinate))
		}
		ev.Coordinate = orb.Point{in.Coordinate[0], in.Coordinate[1]}
	}
	if len(in.Geometry) > 0 && string(in.Geometry) != "null" {
		g, err := geojson.UnmarshalGeometry(in.Geometry)
		if err != nil {
			return measure.Event{}, fmt.Errorf("event geometry: %w", err)
		}
		if err := checkGeometry(g.Geometry()); err != nil {
			return measure.Event{}, fmt.Errorf("event geometry: %w", err)
		}
		ev.Geometry = g.Geometry()
	}
	return ev, nil
}

// checkGeometry admits the three kinds a draw interaction produces.
// Sketch rings may be short but never empty.
func checkGeometry(g orb.Geometry) error {
	switch g := g.(type) {
	case orb.Point, orb.LineString:
		return nil
	case orb.Polygon:
		if len(g) == 0 {
			return fmt.Errorf("polygon has no rings")
		}
		for i, r := range g {
			if len(r) == 0 {
				return fmt.Errorf("polygon ring %d is empty", i)
			}
		}
		return nil
	case nil:
		return fmt.Errorf("missing geometry")
	}
	return fmt.Errorf("unsupported geometry type %s", g.GeoJSONType())
}
