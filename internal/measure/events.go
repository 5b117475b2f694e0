package measure

import (
	"slices"

	"github.com/paulmach/orb"
)

// EventType names an input event delivered to a viewer.
type EventType string

const (
	EventPointerMove EventType = "pointermove"
	EventPointerOut  EventType = "pointerout"
	EventDrawStart   EventType = "drawstart"
	EventChange      EventType = "change"
	EventDrawEnd     EventType = "drawend"
	EventSelect      EventType = "select"
	EventKeyDown     EventType = "keydown"
)

// KeyDelete is the key value that removes the selected feature.
const KeyDelete = "Delete"

// Event is a single input event. Only the fields relevant to Type are set.
type Event struct {
	Type       EventType
	Coordinate orb.Point
	Geometry   orb.Geometry
	FeatureID  int
	Key        string
	Name       string
}

// ListenerKey identifies a registered listener so it can be removed.
// The zero key is never issued.
type ListenerKey struct {
	typ EventType
	id  int
}

// Valid reports whether the key refers to a registration.
func (k ListenerKey) Valid() bool { return k.id != 0 }

type listeners struct {
	next int
	byID map[EventType]map[int]func(Event)
}

func newListeners() *listeners {
	return &listeners{byID: make(map[EventType]map[int]func(Event))}
}

func (l *listeners) on(typ EventType, fn func(Event)) ListenerKey {
	l.next++
	if l.byID[typ] == nil {
		l.byID[typ] = make(map[int]func(Event))
	}
	l.byID[typ][l.next] = fn
	return ListenerKey{typ: typ, id: l.next}
}

// off removes the listener and returns the zero key for convenient reset.
func (l *listeners) off(k ListenerKey) ListenerKey {
	if k.Valid() {
		delete(l.byID[k.typ], k.id)
	}
	return ListenerKey{}
}

func (l *listeners) count(typ EventType) int {
	return len(l.byID[typ])
}

// emit calls every listener for the event type in registration order.
// Listeners may register or remove listeners while running; removed ones
// that have not yet run are skipped.
func (l *listeners) emit(ev Event) {
	set := l.byID[ev.Type]
	if len(set) == 0 {
		return
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := l.byID[ev.Type][id]; ok {
			fn(ev)
		}
	}
}

func (l *listeners) reset() {
	l.byID = make(map[EventType]map[int]func(Event))
}
