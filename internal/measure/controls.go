package measure

import (
	"errors"
	"fmt"
)

// Control names of the standard controls.
const (
	ControlPoint  = "point"
	ControlLength = "length"
	ControlArea   = "area"
	ControlSave   = "save"
	ControlClear  = "clear"
)

// ErrUnknownControl is returned by Trigger for an unregistered name.
var ErrUnknownControl = errors.New("unknown control")

// ControlView is what a toolbar needs to draw a control button.
type ControlView struct {
	Name   string `json:"name"`
	Title  string `json:"title"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// Input carries what the user typed for a control, if anything.
type Input struct {
	Filename string
}

// Control is a toolbar button attached to a viewer. Toggle controls are
// deactivated by a second press; one-shot controls never report active.
type Control interface {
	Render() ControlView
	OnActivate(in Input) error
	OnDeactivate() error
}

// AddControl registers a control under the name it renders with.
func (v *Viewer) AddControl(c Control) {
	name := c.Render().Name
	if _, ok := v.controls[name]; !ok {
		v.order = append(v.order, name)
	}
	v.controls[name] = c
}

// Controls renders every registered control in registration order.
func (v *Viewer) Controls() []ControlView {
	out := make([]ControlView, 0, len(v.order))
	for _, name := range v.order {
		out = append(out, v.controls[name].Render())
	}
	return out
}

// Trigger presses a control: active controls are deactivated, others
// activated.
func (v *Viewer) Trigger(name string, in Input) error {
	if !v.ready {
		return ErrNotInitialized
	}
	c, ok := v.controls[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, name)
	}
	if c.Render().Active {
		return c.OnDeactivate()
	}
	return c.OnActivate(in)
}

// StandardControls returns the point, length, area, save and clear
// controls bound to v.
func StandardControls(v *Viewer) []Control {
	return []Control{
		&drawControl{v: v, name: ControlPoint, title: "Mark a point", label: "•", mode: ModePoint},
		&drawControl{v: v, name: ControlLength, title: "Measure a distance", label: "L", mode: ModeLine},
		&drawControl{v: v, name: ControlArea, title: "Measure an area", label: "A", mode: ModePolygon},
		&saveControl{v: v},
		&clearControl{v: v},
	}
}

type drawControl struct {
	v     *Viewer
	name  string
	title string
	label string
	mode  Mode
}

func (c *drawControl) Render() ControlView {
	return ControlView{Name: c.name, Title: c.title, Label: c.label, Active: c.v.Mode() == c.mode}
}

func (c *drawControl) OnActivate(Input) error {
	c.v.Activate(c.mode)
	return nil
}

func (c *drawControl) OnDeactivate() error {
	if c.v.Mode() == c.mode {
		c.v.Deactivate()
	}
	return nil
}

type saveControl struct{ v *Viewer }

func (c *saveControl) Render() ControlView {
	return ControlView{Name: ControlSave, Title: "Export measurements", Label: "S"}
}

func (c *saveControl) OnActivate(in Input) error {
	_, err := c.v.Export(in.Filename)
	return err
}

func (c *saveControl) OnDeactivate() error { return nil }

type clearControl struct{ v *Viewer }

func (c *clearControl) Render() ControlView {
	return ControlView{Name: ControlClear, Title: "Remove all measurements", Label: "C"}
}

func (c *clearControl) OnActivate(Input) error {
	c.v.ClearAll()
	return nil
}

func (c *clearControl) OnDeactivate() error { return nil }
