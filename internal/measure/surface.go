package measure

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"
)

// Mode is the geometry kind a draw interaction produces.
type Mode int

const (
	ModeNone Mode = iota
	ModePoint
	ModeLine
	ModePolygon
)

func (m Mode) String() string {
	switch m {
	case ModePoint:
		return "Point"
	case ModeLine:
		return "LineString"
	case ModePolygon:
		return "Polygon"
	}
	return "None"
}

// Accepts reports whether g is the geometry type this mode draws.
func (m Mode) Accepts(g orb.Geometry) bool {
	return m != ModeNone && g != nil && g.GeoJSONType() == m.String()
}

// DraftStyle is the look of a geometry while it is being drawn.
type DraftStyle struct {
	Fill         string  `json:"fill"`
	Stroke       string  `json:"stroke"`
	StrokeWidth  float64 `json:"strokeWidth"`
	LineDash     []int   `json:"lineDash"`
	VertexRadius float64 `json:"vertexRadius"`
	VertexStroke string  `json:"vertexStroke"`
	VertexFill   string  `json:"vertexFill"`
}

// DefaultDraftStyle is applied to every draw interaction.
var DefaultDraftStyle = DraftStyle{
	Fill:         "rgba(255, 255, 255, 0.2)",
	Stroke:       "rgba(0, 0, 0, 0.5)",
	StrokeWidth:  2,
	LineDash:     []int{10, 10},
	VertexRadius: 5,
	VertexStroke: "rgba(0, 0, 0, 0.7)",
	VertexFill:   "rgba(255, 255, 255, 0.2)",
}

// Interaction is a drawing interaction attached to the map.
type Interaction struct {
	Mode  Mode       `json:"mode"`
	Style DraftStyle `json:"style"`
}

// Surface is the host map the viewer drives. Implementations may fail on
// any call (for example when the map has been torn down); the viewer logs
// those failures and carries on.
type Surface interface {
	AttachInteraction(i *Interaction) error
	DetachInteraction(i *Interaction) error
	AttachOverlay(o *Overlay) error
	DetachOverlay(o *Overlay) error
}

// ErrDetached is returned by a MemorySurface after Close.
var ErrDetached = errors.New("map surface detached")

// MemorySurface keeps attached interactions and overlays in memory. The
// service renders its contents to the browser; tests inspect it directly.
type MemorySurface struct {
	mu           sync.RWMutex
	closed       bool
	interactions []*Interaction
	overlays     map[string]*Overlay
}

// NewMemorySurface creates an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{overlays: make(map[string]*Overlay)}
}

func (s *MemorySurface) AttachInteraction(i *Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDetached
	}
	s.interactions = append(s.interactions, i)
	return nil
}

func (s *MemorySurface) DetachInteraction(i *Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDetached
	}
	for n, cur := range s.interactions {
		if cur == i {
			s.interactions = append(s.interactions[:n], s.interactions[n+1:]...)
			return nil
		}
	}
	return fmt.Errorf("interaction %s not attached", i.Mode)
}

func (s *MemorySurface) AttachOverlay(o *Overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDetached
	}
	s.overlays[o.Key] = o
	return nil
}

func (s *MemorySurface) DetachOverlay(o *Overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDetached
	}
	if _, ok := s.overlays[o.Key]; !ok {
		return fmt.Errorf("overlay %s not attached", o.Key)
	}
	delete(s.overlays, o.Key)
	return nil
}

// Close makes every further call fail with ErrDetached.
func (s *MemorySurface) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Interactions returns the attached interactions.
func (s *MemorySurface) Interactions() []Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Interaction, len(s.interactions))
	for i, it := range s.interactions {
		out[i] = *it
	}
	return out
}

// Overlays returns copies of the attached overlays sorted by key.
func (s *MemorySurface) Overlays() []Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Overlay, 0, len(s.overlays))
	for _, o := range s.overlays {
		out = append(out, o.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// OverlaysOf returns the attached overlays of one kind.
func (s *MemorySurface) OverlaysOf(kind OverlayKind) []Overlay {
	var out []Overlay
	for _, o := range s.Overlays() {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}
