// Package viewer contains the Datastar SSE handlers of the map page: a
// per-session stream of overlay, toolbar, layer and time fragments, and
// the endpoints the page posts input events and control presses to.
package viewer

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-mapper/internal/api"
	"github.com/joeblew999/plat-mapper/internal/humastar"
	"github.com/joeblew999/plat-mapper/internal/measure"
	"github.com/joeblew999/plat-mapper/internal/service"
	"github.com/joeblew999/plat-mapper/internal/templates"
)

// Browser events dispatched on the page.
const (
	EventDownload      = "measure-download"
	EventChanged       = "session-changed"
	EventSessionClosed = "session-closed"
)

type Handler struct {
	humastar.Handler
	sessions *service.SessionService
	log      zerolog.Logger
}

func NewHandler(sessions *service.SessionService, renderer *templates.Renderer, log zerolog.Logger) *Handler {
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(a huma.API) {
	tags := huma.OperationTags("viewer")
	huma.Get(a, "/api/v1/viewer/{id}/stream", h.Stream, tags)
	huma.Post(a, "/api/v1/viewer/{id}/controls/{control}", h.Control, tags)
	huma.Post(a, "/api/v1/viewer/{id}/events", h.Event, tags)
	huma.Post(a, "/api/v1/viewer/{id}/time", h.Time, tags)
	huma.Post(a, "/api/v1/viewer/{id}/layers", h.Layer, tags)
}

type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type SignalsInput struct {
	SessionInput
	humastar.SignalsInput
}

type ControlInput struct {
	SignalsInput
	Control string `path:"control" enum:"point,length,area,save,clear" doc:"Toolbar control"`
}

// Stream sends the whole viewer, then re-patches the parts touched by
// every change to the session until the client goes away or the session
// is closed.
func (h *Handler) Stream(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	bus := h.sessions.Bus()

	return h.Handler.Stream(func(sse humastar.SSE) {
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		h.replace(sse, sess.Snapshot())
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Session != sess.ID {
					continue
				}
				if ev.Resource == service.ResourceSessions && ev.Action == service.ActionDeleted {
					sse.Event(EventSessionClosed, map[string]any{"session": sess.ID})
					return
				}
				h.patch(sse, ev.Resource, sess.Snapshot())
				sse.Event(EventChanged, map[string]any{
					"resource": ev.Resource, "action": ev.Action, "id": ev.ID,
				})
			}
		}
	}), nil
}

// Control presses a toolbar button. The save control reads the filename
// signal and answers with a download event.
func (h *Handler) Control(ctx context.Context, input *ControlInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	token, err := sess.Trigger(input.Control, measure.Input{Filename: signals.String("filename")})
	if errors.Is(err, measure.ErrUnknownControl) {
		return nil, huma.Error404NotFound(err.Error())
	}
	snap := sess.Snapshot()

	return h.Handler.Stream(func(sse humastar.SSE) {
		h.patchToolbar(sse, snap)
		switch {
		case errors.Is(err, measure.ErrNothingToExport):
			sse.Error(measure.MsgNothingToExport)
		case err != nil:
			sse.Error(err.Error())
		case token != "":
			sse.Signals(map[string]any{"filename": "", "success": "Measurements exported"})
			sse.Event(EventDownload, map[string]any{"href": api.DownloadHref(token)})
		}
	}), nil
}

// Event delivers a map input event to the session.
func (h *Handler) Event(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	ev, err := decodeEvent(signals)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	err = sess.Dispatch(ev)
	return h.Handler.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Error(err.Error())
		}
	}), nil
}

// Time moves the time slider to the "time" signal.
func (h *Handler) Time(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if !signals.Has("time") {
		return nil, huma.Error400BadRequest("time signal is required")
	}

	_, err = sess.SetTime(signals.Int("time"))
	snap := sess.Snapshot()
	return h.Handler.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Error(err.Error())
		}
		h.patch(sse, service.ResourceTime, snap)
	}), nil
}

// Layer shows or hides the layer named by the "layer" signal.
func (h *Handler) Layer(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	err = sess.SetLayerVisible(signals.String("layer"), signals.Bool("visible"))
	if errors.Is(err, service.ErrLayerNotFound) {
		return nil, huma.Error404NotFound(err.Error())
	}
	snap := sess.Snapshot()
	return h.Handler.Stream(func(sse humastar.SSE) {
		h.patch(sse, service.ResourceLayers, snap)
	}), nil
}

func (h *Handler) session(id string) (*service.Session, error) {
	sess, err := h.sessions.Get(id)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return sess, nil
}

// replace swaps in the whole viewer.
func (h *Handler) replace(sse humastar.SSE, snap service.Snapshot) {
	if html, ok := h.render("viewer", newPage(snap)); ok {
		sse.Replace(html, "#viewer")
	}
	h.alert(sse, snap)
}

// patch redraws the fragments a resource change affects.
func (h *Handler) patch(sse humastar.SSE, resource string, snap service.Snapshot) {
	p := newPage(snap)
	switch resource {
	case service.ResourceTime, service.ResourceLayers:
		h.patchInto(sse, "layer-tree", "#layers", p)
		h.patchInto(sse, "time-bar", "#time", p)
	default:
		h.patchToolbar(sse, snap)
		items := make([]any, len(p.Overlays))
		for i, o := range p.Overlays {
			items[i] = o
		}
		sse.Patch(h.RenderList("overlay", items, "Sin mediciones", "Use the toolbar to measure the map"), "#overlays")
	}
	h.alert(sse, snap)
}

func (h *Handler) patchToolbar(sse humastar.SSE, snap service.Snapshot) {
	h.patchInto(sse, "toolbar", "#toolbar", newPage(snap))
}

func (h *Handler) patchInto(sse humastar.SSE, tmpl, selector string, p page) {
	if html, ok := h.render(tmpl, p); ok {
		sse.Patch(html, selector)
	}
}

// alert shows pending user alerts.
func (h *Handler) alert(sse humastar.SSE, snap service.Snapshot) {
	if len(snap.Alerts) == 0 {
		return
	}
	if html, ok := h.render("alerts", snap.Alerts); ok {
		sse.Patch(html, "#alerts")
	}
	sse.Error(snap.Alerts[len(snap.Alerts)-1])
}

func (h *Handler) render(tmpl string, data any) (string, bool) {
	html, err := h.Render(tmpl, data)
	if err != nil {
		h.log.Error().Err(err).Str("template", tmpl).Msg("render fragment")
		return "", false
	}
	return html, true
}
