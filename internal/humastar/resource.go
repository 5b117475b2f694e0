package humastar

import (
	"fmt"
	"strings"
)

// Action is a link to an operation the client may perform on a resource
// in its current state, e.g. deleting a measurement.
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// Actor is implemented by response bodies that advertise actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link value with method and
// title target attributes:
//
//	</api/v1/sessions/abc/measurements/3>; rel="delete"; method="DELETE"
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		fmt.Fprintf(&b, `; method="%s"`, a.Method)
	}
	if a.Title != "" {
		fmt.Fprintf(&b, `; title="%s"`, a.Title)
	}
	return b.String()
}

// ActionDef is an action whose Pattern is filled from path IDs in order
// (e.g. "/api/v1/sessions/%s/measurements/%d").
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
}

// ActionsFor expands defs for one resource.
func ActionsFor(defs []ActionDef, ids ...any) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = Action{
			Rel:    d.Rel,
			Href:   fmt.Sprintf(d.Pattern, ids...),
			Method: d.Method,
			Title:  d.Title,
		}
	}
	return actions
}
