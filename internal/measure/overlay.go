package measure

import (
	"strconv"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// OverlayKind tells help, measurement and popup overlays apart.
type OverlayKind string

const (
	OverlayHelp    OverlayKind = "help"
	OverlayMeasure OverlayKind = "measure"
	OverlayPopup   OverlayKind = "popup"
)

// CSS classes of the tooltip element.
const (
	ClassHelp    = "ol-tooltip hidden"
	ClassMeasure = "ol-tooltip ol-tooltip-measure"
	ClassStatic  = "ol-tooltip ol-tooltip-static"
	ClassPopup   = "ol-popup"
)

// Help texts shown next to the pointer while drawing.
const (
	HelpStart    = "Click to start drawing"
	HelpContinue = "Double-click to finish drawing"
)

// Overlay is a screen-space element bound to a map coordinate.
type Overlay struct {
	Key         string      `json:"key"`
	Kind        OverlayKind `json:"kind"`
	FeatureID   int         `json:"featureId,omitempty"`
	Class       string      `json:"class"`
	Text        string      `json:"text,omitempty"`
	Lines       []string    `json:"lines,omitempty"`
	Position    orb.Point   `json:"position"`
	Offset      [2]int      `json:"offset"`
	Positioning string      `json:"positioning"`
	Visible     bool        `json:"visible"`
}

func (o *Overlay) clone() Overlay {
	c := *o
	if o.Lines != nil {
		c.Lines = append([]string(nil), o.Lines...)
	}
	return c
}

// overlays creates and tears down overlays on a surface. Host failures are
// logged and swallowed.
type overlays struct {
	surface Surface
	log     zerolog.Logger

	seq     int
	help    *Overlay
	tooltip *Overlay
}

func (m *overlays) attach(o *Overlay) {
	if err := m.surface.AttachOverlay(o); err != nil {
		m.log.Warn().Err(err).Str("overlay", o.Key).Msg("attach overlay")
	}
}

func (m *overlays) detach(o *Overlay) {
	if o == nil {
		return
	}
	if err := m.surface.DetachOverlay(o); err != nil {
		m.log.Warn().Err(err).Str("overlay", o.Key).Msg("detach overlay")
	}
}

// createHelpOverlay replaces the help overlay with a fresh hidden one.
func (m *overlays) createHelpOverlay() *Overlay {
	m.destroyHelpOverlay()
	m.help = &Overlay{
		Key:         "help",
		Kind:        OverlayHelp,
		Class:       ClassHelp,
		Text:        HelpStart,
		Offset:      [2]int{15, 0},
		Positioning: "center-left",
	}
	m.attach(m.help)
	return m.help
}

func (m *overlays) destroyHelpOverlay() {
	m.detach(m.help)
	m.help = nil
}

// moveHelp positions the help overlay and shows it.
func (m *overlays) moveHelp(at orb.Point, drawing bool) {
	if m.help == nil {
		return
	}
	m.help.Text = HelpStart
	if drawing {
		m.help.Text = HelpContinue
	}
	m.help.Position = at
	m.help.Visible = true
	m.help.Class = "ol-tooltip"
}

func (m *overlays) hideHelp() {
	if m.help == nil {
		return
	}
	m.help.Visible = false
	m.help.Class = ClassHelp
}

// createMeasureTooltip starts a live tooltip for the feature being drawn.
// A previous tooltip that never got handed to the registry is destroyed.
func (m *overlays) createMeasureTooltip() *Overlay {
	m.discardTooltip()
	m.seq++
	m.tooltip = &Overlay{
		Key:         "measure-draft-" + strconv.Itoa(m.seq),
		Kind:        OverlayMeasure,
		Class:       ClassMeasure,
		Offset:      [2]int{0, -15},
		Positioning: "bottom-center",
	}
	m.attach(m.tooltip)
	return m.tooltip
}

// updateTooltip redraws the live label from the current geometry.
func (m *overlays) updateTooltip(g orb.Geometry) {
	if m.tooltip == nil {
		return
	}
	text, ok := Label(g)
	m.tooltip.Text = text
	m.tooltip.Visible = ok
	m.tooltip.Position = Anchor(g)
}

// freezeTooltip turns the live tooltip into a static label for feature id
// and releases it to the caller.
func (m *overlays) freezeTooltip(id int) *Overlay {
	t := m.tooltip
	m.tooltip = nil
	if t == nil {
		return nil
	}
	t.Class = ClassStatic
	t.Offset = [2]int{0, -7}
	t.FeatureID = id
	return t
}

func (m *overlays) discardTooltip() {
	m.detach(m.tooltip)
	m.tooltip = nil
}
