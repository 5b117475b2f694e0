package measure

import "github.com/paulmach/orb"

// State of the draw-session state machine.
type State int

const (
	StateIdle State = iota
	StateDrawing
)

func (s State) String() string {
	if s == StateDrawing {
		return "drawing"
	}
	return "idle"
}

// drawSession exists between Activate and drawend/Deactivate.
type drawSession struct {
	mode        Mode
	interaction *Interaction
	pointerKey  ListenerKey
	startKey    ListenerKey
	endKey      ListenerKey

	// set between drawstart and drawend
	feature   *Feature
	changeKey ListenerKey
}

// State returns the current state.
func (v *Viewer) State() State {
	if v.session == nil {
		return StateIdle
	}
	return StateDrawing
}

// Mode returns the active draw mode, or ModeNone when idle.
func (v *Viewer) Mode() Mode {
	if v.session == nil {
		return ModeNone
	}
	return v.session.mode
}

// Activate starts a draw session in the given mode. Activating the mode
// that is already drawing cancels it instead; activating a different mode
// cancels the running session first.
func (v *Viewer) Activate(mode Mode) {
	if v.session != nil {
		same := v.session.mode == mode
		v.Deactivate()
		if same {
			return
		}
	}
	if mode == ModeNone {
		return
	}

	s := &drawSession{
		mode:        mode,
		interaction: &Interaction{Mode: mode, Style: DefaultDraftStyle},
	}
	if err := v.surface.AttachInteraction(s.interaction); err != nil {
		v.log.Warn().Err(err).Stringer("mode", mode).Msg("attach draw interaction")
	}
	s.pointerKey = v.events.on(EventPointerMove, v.onPointerMove)
	s.startKey = v.events.on(EventDrawStart, v.onDrawStart)
	s.endKey = v.events.on(EventDrawEnd, v.onDrawEnd)
	v.session = s
	v.ov.createHelpOverlay()
	v.log.Debug().Stringer("mode", mode).Msg("draw session started")
}

// Deactivate cancels the running session. A feature in progress is
// discarded along with its tooltip, and its tentative ID is given back.
func (v *Viewer) Deactivate() {
	s := v.session
	if s == nil {
		return
	}
	if s.feature != nil {
		s.changeKey = v.events.off(s.changeKey)
		s.feature = nil
		v.ov.discardTooltip()
		v.counter--
	}
	v.endSession()
	v.log.Debug().Stringer("mode", s.mode).Msg("draw session cancelled")
}

func (v *Viewer) endSession() {
	s := v.session
	if err := v.surface.DetachInteraction(s.interaction); err != nil {
		v.log.Warn().Err(err).Stringer("mode", s.mode).Msg("detach draw interaction")
	}
	v.events.off(s.pointerKey)
	v.events.off(s.startKey)
	v.events.off(s.endKey)
	v.ov.destroyHelpOverlay()
	v.session = nil
}

func (v *Viewer) onPointerMove(ev Event) {
	if v.session == nil {
		return
	}
	v.ov.moveHelp(ev.Coordinate, v.session.feature != nil)
}

func (v *Viewer) onPointerOut(Event) {
	v.ov.hideHelp()
}

func (v *Viewer) onDrawStart(ev Event) {
	s := v.session
	g := ev.Geometry
	if g == nil {
		g = ev.Coordinate
	}
	if !v.accepts(g, EventDrawStart) {
		return
	}
	if s.feature != nil {
		// a second start without an end abandons the first sketch
		s.changeKey = v.events.off(s.changeKey)
		v.ov.discardTooltip()
		v.counter--
	}
	s.feature = &Feature{Geometry: g, Properties: map[string]any{}}
	v.counter++

	v.ov.createMeasureTooltip()
	v.ov.updateTooltip(g)
	s.changeKey = v.events.on(EventChange, func(ev Event) {
		if ev.Geometry == nil || s.feature == nil || !v.accepts(ev.Geometry, EventChange) {
			return
		}
		s.feature.Geometry = ev.Geometry
		v.ov.updateTooltip(ev.Geometry)
	})
	v.registry.clearSelection()
}

func (v *Viewer) onDrawEnd(ev Event) {
	s := v.session
	if ev.Geometry != nil && !v.accepts(ev.Geometry, EventDrawEnd) {
		return
	}
	if s.feature == nil {
		// point interactions finish on the first click
		v.onDrawStart(ev)
		if s.feature == nil {
			return
		}
	}
	f := s.feature
	if ev.Geometry != nil {
		f.Geometry = ev.Geometry
		v.ov.updateTooltip(ev.Geometry)
	}
	if ev.Name != "" {
		f.Properties["name"] = ev.Name
	}
	f.ID = v.counter
	tooltip := v.ov.freezeTooltip(f.ID)
	v.registry.add(f, tooltip)

	s.changeKey = v.events.off(s.changeKey)
	s.feature = nil
	v.endSession()
	v.log.Debug().Int("id", f.ID).Str("kind", f.Kind()).Msg("measurement added")
}

// accepts drops geometries the active interaction cannot have produced.
func (v *Viewer) accepts(g orb.Geometry, typ EventType) bool {
	mode := v.session.mode
	if mode.Accepts(g) {
		return true
	}
	kind := "none"
	if g != nil {
		kind = g.GeoJSONType()
	}
	v.log.Warn().Stringer("mode", mode).Str("event", string(typ)).Str("geometry", kind).
		Msg("geometry does not match draw mode, ignored")
	return false
}
