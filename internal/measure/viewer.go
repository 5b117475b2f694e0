// Package measure implements the measurement and annotation overlay of the
// map viewer: freehand drawing of points, lines and polygons, live length
// and area labels, a registry of finished annotations with selection and
// deletion, and GeoJSON export.
//
// A Viewer is driven by Events and by Control activations. It is not safe
// for concurrent use; callers serialize access per map.
package measure

import (
	"errors"

	"github.com/rs/zerolog"
)

// Options configure a Viewer.
type Options struct {
	Surface     Surface
	Saver       Saver
	Notifier    Notifier
	Logger      zerolog.Logger
	ProjectName string
}

// Viewer is the stateful controller behind one map instance.
type Viewer struct {
	surface     Surface
	saver       Saver
	notifier    Notifier
	log         zerolog.Logger
	projectName string

	events   *listeners
	ov       *overlays
	registry *Registry
	controls map[string]Control
	order    []string

	session *drawSession
	counter int
	baseKey []ListenerKey
	ready   bool
}

// ErrNotInitialized is returned when a viewer is used before Init or after
// Dispose.
var ErrNotInitialized = errors.New("viewer not initialized")

// New creates a viewer. Call Init before dispatching events.
func New(opts Options) *Viewer {
	if opts.Surface == nil {
		opts.Surface = NewMemorySurface()
	}
	if opts.Saver == nil {
		opts.Saver = discardSaver{}
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{log: opts.Logger}
	}
	events := newListeners()
	ov := &overlays{surface: opts.Surface, log: opts.Logger}
	return &Viewer{
		surface:     opts.Surface,
		saver:       opts.Saver,
		notifier:    opts.Notifier,
		log:         opts.Logger,
		projectName: opts.ProjectName,
		events:      events,
		ov:          ov,
		registry:    newRegistry(ov, events),
		controls:    make(map[string]Control),
	}
}

// Init wires the always-on listeners and registers the standard controls.
func (v *Viewer) Init() {
	if v.ready {
		return
	}
	v.baseKey = append(v.baseKey,
		v.events.on(EventPointerOut, v.onPointerOut),
		v.events.on(EventSelect, v.onSelect),
	)
	for _, c := range StandardControls(v) {
		v.AddControl(c)
	}
	v.ready = true
}

// Dispose cancels any draw session, removes every overlay and listener, and
// leaves the viewer unusable until Init is called again.
func (v *Viewer) Dispose() {
	if !v.ready {
		return
	}
	v.Deactivate()
	v.registry.ClearAll()
	for _, k := range v.baseKey {
		v.events.off(k)
	}
	v.baseKey = nil
	v.events.reset()
	v.controls = make(map[string]Control)
	v.order = nil
	v.ready = false
}

// Ready reports whether Init has run.
func (v *Viewer) Ready() bool { return v.ready }

// Dispatch delivers an input event to the registered listeners.
func (v *Viewer) Dispatch(ev Event) error {
	if !v.ready {
		return ErrNotInitialized
	}
	v.events.emit(ev)
	return nil
}

// Registry returns the measurement registry.
func (v *Viewer) Registry() *Registry { return v.registry }

// NextID returns the identifier the next finished drawing will receive.
// While a sketch is in progress that is the sketch's own tentative ID.
func (v *Viewer) NextID() int {
	if v.session != nil && v.session.feature != nil {
		return v.counter
	}
	return v.counter + 1
}

// ListenerCount returns the number of listeners for an event type.
func (v *Viewer) ListenerCount(typ EventType) int { return v.events.count(typ) }

// ClearAll removes every measurement.
func (v *Viewer) ClearAll() {
	v.registry.ClearAll()
	v.log.Debug().Msg("measurements cleared")
}

func (v *Viewer) onSelect(ev Event) {
	if v.session != nil && v.session.feature != nil {
		return
	}
	v.registry.Select(ev.FeatureID, ev.Coordinate)
}

type discardSaver struct{}

func (discardSaver) Save(Download) error { return nil }

type logNotifier struct{ log zerolog.Logger }

func (n logNotifier) Alert(msg string) { n.log.Warn().Msg(msg) }
