// Package humastar bridges Huma operations with Datastar SSE responses.
//
// Viewer handlers embed [Handler] for template rendering and [Handler.Stream];
// the stream callback receives an [SSE] that patches overlay fragments,
// signals and browser events:
//
//	return h.Stream(func(sse humastar.SSE) {
//		html, _ := h.Render("overlays", page)
//		sse.Patch(html, "#overlays")
//	}), nil
package humastar

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-mapper/internal/templates"
)

// Handler is an embeddable base for handlers that answer with Datastar SSE.
type Handler struct {
	*templates.Renderer
}

// Stream returns a StreamResponse that runs fn against the response writer.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// RenderList renders each item with tmpl, or the empty state when there
// are none.
func (h *Handler) RenderList(tmpl string, items []any, emptyTitle, emptyMsg string) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		h.RenderToBuffer(&buf, "empty-state", map[string]string{
			"Title": emptyTitle, "Message": emptyMsg,
		})
		return buf.String()
	}
	for _, item := range items {
		h.RenderToBuffer(&buf, tmpl, item)
	}
	return buf.String()
}

// SSE is a Datastar event generator bound to one Huma stream.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE unwraps the humago context. Other adapters are not supported.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch morphs html into the element matched by selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Replace swaps the element matched by selector for html.
func (s SSE) Replace(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeOuter(),
		datastar.WithViewTransitions(),
	)
}

// Event dispatches a CustomEvent on the document, e.g. to start a download.
func (s SSE) Event(name string, detail any) {
	s.DispatchCustomEvent(name, detail)
}

// Error sets the $error signal shown by the alert bar.
func (s SSE) Error(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"error": msg})
}

// Signals patches arbitrary signals.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Signals is the flat JSON object Datastar posts with every action.
type Signals map[string]any

// ParseSignals decodes a request body.
func ParseSignals(body []byte) (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns the signal as a string, or "".
func (s Signals) String(key string) string {
	str, _ := s[key].(string)
	return str
}

// Int returns a numeric signal truncated to int, or 0.
func (s Signals) Int(key string) int {
	switch n := s[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// Bool returns the signal as a bool, or false.
func (s Signals) Bool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

// Has reports whether the signal was sent, even with a zero value.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Decode re-encodes a nested signal object into v.
func (s Signals) Decode(key string, v any) error {
	raw, ok := s[key]
	if !ok {
		return fmt.Errorf("missing %s signal", key)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s signal: %w", key, err)
	}
	return nil
}

// SignalsInput takes the raw Datastar request body.
type SignalsInput struct {
	RawBody []byte
}

// MustParse parses the body or returns a 400.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid signals: " + err.Error())
	}
	return signals, nil
}
