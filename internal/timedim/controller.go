package timedim

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Param is the WMS request parameter carrying the timestamp.
const Param = "TIME"

// ErrIndexOutOfRange is returned by Set for an index outside the dimension.
var ErrIndexOutOfRange = errors.New("time index out of range")

// Source is a WMS layer source whose request parameters can be merged.
// Parameters not named in the update are left as they are.
type Source interface {
	UpdateParams(params map[string]string)
}

// Layers yields the time-aware sources at the moment a timestamp is
// applied, so index layers added later are included.
type Layers interface {
	TimeSources() []Source
}

// Label shows the selected timestamp.
type Label interface {
	SetText(text string)
}

// Controller snaps a slider index to one of the parsed timestamps and
// applies it to every time-aware layer.
type Controller struct {
	times   []string
	layers  Layers
	label   Label
	log     zerolog.Logger
	current int
}

// NewController creates a controller over a non-empty time dimension.
func NewController(times []string, layers Layers, label Label, log zerolog.Logger) (*Controller, error) {
	if len(times) == 0 {
		return nil, ErrNoTimes
	}
	return &Controller{
		times:   append([]string(nil), times...),
		layers:  layers,
		label:   label,
		log:     log,
		current: -1,
	}, nil
}

// Init applies the most recent timestamp.
func (c *Controller) Init() {
	// cannot fail: the dimension is never empty
	_ = c.Set(len(c.times) - 1)
}

// Times returns the timestamps in slider order.
func (c *Controller) Times() []string { return append([]string(nil), c.times...) }

// Len returns the number of slider positions.
func (c *Controller) Len() int { return len(c.times) }

// Current returns the applied index and timestamp; the index is -1 before
// Init.
func (c *Controller) Current() (int, string) {
	if c.current < 0 {
		return -1, ""
	}
	return c.current, c.times[c.current]
}

// Set applies times[index] to every time-aware layer and the label.
func (c *Controller) Set(index int) error {
	if index < 0 || index >= len(c.times) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, len(c.times))
	}
	t := c.times[index]
	n := 0
	if c.layers != nil {
		for _, s := range c.layers.TimeSources() {
			s.UpdateParams(map[string]string{Param: t})
			n++
		}
	}
	if c.label != nil {
		c.label.SetText(t)
	}
	c.current = index
	c.log.Debug().Str("time", t).Int("layers", n).Msg("time dimension applied")
	return nil
}
