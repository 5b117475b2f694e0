// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-mapper/internal/humastar"
	"github.com/joeblew999/plat-mapper/internal/mapper"
	"github.com/joeblew999/plat-mapper/internal/measure"
	"github.com/joeblew999/plat-mapper/internal/service"
	"github.com/joeblew999/plat-mapper/internal/timedim"
)

// FormulaChecker validates index formulas before they are submitted.
type FormulaChecker interface {
	CheckFormula(ctx context.Context, formula string) error
}

// Services holds the service dependencies for API handlers.
type Services struct {
	Sessions *service.SessionService
	Formulas FormulaChecker
}

// Types

type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type MeasurementInput struct {
	SessionInput
	MID int `path:"mid" doc:"Measurement ID" minimum:"1"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status   string `json:"status" doc:"Health status" example:"ok"`
	Version  string `json:"version" doc:"API version" example:"1.0.0"`
	Sessions int    `json:"sessions" doc:"Open map sessions"`
}

type CreateSessionBody struct {
	Project string `json:"project" minLength:"1" doc:"Backend project identifier" example:"42"`
	Name    string `json:"name,omitempty" doc:"Project display name, used as the default export filename"`
}

// MeasurementBody is a measurement with its geometry in EPSG:3857 GeoJSON.
type MeasurementBody struct {
	service.Measurement
	Shape   *geojson.Geometry `json:"geometry" doc:"Geometry in EPSG:3857"`
	session string
}

// Actions implements humastar.Actor.
func (m MeasurementBody) Actions() []humastar.Action {
	return humastar.ActionsFor(measurementActions, m.session, m.ID)
}

var measurementActions = []humastar.ActionDef{
	{Rel: "delete", Pattern: "/api/v1/sessions/%s/measurements/%d", Method: http.MethodDelete, Title: "Delete measurement"},
}

type ExportBody struct {
	Filename string `json:"filename,omitempty" doc:"Export filename; the extension is added when missing" example:"lindero"`
}

type ExportResult struct {
	Token    string `json:"token" doc:"One-shot download token"`
	Filename string `json:"filename" doc:"Resolved filename" example:"lindero.geojson"`
	Href     string `json:"href" doc:"Download URL"`
	Features int    `json:"features" doc:"Exported feature count"`
}

type DownloadOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	CacheControl       string `header:"Cache-Control"`
	Body               []byte
}

type TimeBody struct {
	Times []string `json:"times" doc:"Available timestamps, oldest first"`
	Index int      `json:"index" doc:"Applied index"`
	Time  string   `json:"time" doc:"Applied timestamp" example:"2021-05-01"`
}

type SetTimeBody struct {
	Index int `json:"index" minimum:"0" doc:"Slider index"`
}

type LayerVisibilityBody struct {
	Visible bool `json:"visible" doc:"Show or hide the layer"`
}

type CreateIndexBody struct {
	Index   string `json:"index" minLength:"1" doc:"Index name" example:"ndvi"`
	Formula string `json:"formula" minLength:"1" doc:"Band formula" example:"(N-R)/(N+R)"`
}

// APIHandler holds all REST API handlers.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

func created(o *huma.Operation)   { o.DefaultStatus = http.StatusCreated }
func noContent(o *huma.Operation) { o.DefaultStatus = http.StatusNoContent }

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterSessions registers session lifecycle routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Get(api, "/api/v1/sessions", h.ListSessions, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions", h.CreateSession, huma.OperationTags("sessions"), created)
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}", h.CloseSession, huma.OperationTags("sessions"), noContent)
}

// RegisterMeasurements registers measurement and export routes.
func (h *APIHandler) RegisterMeasurements(api huma.API) {
	huma.Get(api, "/api/v1/sessions/{id}/measurements", h.ListMeasurements, huma.OperationTags("measurements"))
	huma.Delete(api, "/api/v1/sessions/{id}/measurements", h.ClearMeasurements, huma.OperationTags("measurements"), noContent)
	huma.Get(api, "/api/v1/sessions/{id}/measurements/{mid}", h.GetMeasurement, huma.OperationTags("measurements"))
	huma.Delete(api, "/api/v1/sessions/{id}/measurements/{mid}", h.DeleteMeasurement, huma.OperationTags("measurements"), noContent)
	huma.Post(api, "/api/v1/sessions/{id}/export", h.Export, huma.OperationTags("measurements"), created)
	huma.Get(api, "/api/v1/downloads/{token}", h.Download, huma.OperationTags("measurements"))
}

// RegisterTime registers time dimension routes.
func (h *APIHandler) RegisterTime(api huma.API) {
	huma.Get(api, "/api/v1/sessions/{id}/time", h.GetTime, huma.OperationTags("time"))
	huma.Put(api, "/api/v1/sessions/{id}/time", h.PutTime, huma.OperationTags("time"))
}

// RegisterLayers registers layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/sessions/{id}/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/sessions/{id}/layers/{layer}", h.PutLayer, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/sessions/{id}/indices", h.CreateIndex, huma.OperationTags("layers"), created)
}

// Register registers every route group.
func (h *APIHandler) Register(api huma.API) {
	h.RegisterHealth(api)
	h.RegisterSessions(api)
	h.RegisterMeasurements(api)
	h.RegisterTime(api)
	h.RegisterLayers(api)
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{
		Status: "ok", Version: "1.0.0", Sessions: len(h.svc.Sessions.List()),
	}}, nil
}

func (h *APIHandler) ListSessions(ctx context.Context, input *struct{}) (*struct{ Body []service.SessionInfo }, error) {
	return &struct{ Body []service.SessionInfo }{Body: h.svc.Sessions.List()}, nil
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct{ Body CreateSessionBody }) (*struct{ Body service.SessionInfo }, error) {
	sess, err := h.svc.Sessions.Create(ctx, input.Body.Project, input.Body.Name)
	if err != nil {
		return nil, huma.Error502BadGateway("Could not load project from the mapper backend", err)
	}
	return &struct{ Body service.SessionInfo }{Body: sess.Info()}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionInput) (*struct{ Body service.SessionInfo }, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body service.SessionInfo }{Body: sess.Info()}, nil
}

func (h *APIHandler) CloseSession(ctx context.Context, input *SessionInput) (*struct{}, error) {
	if err := h.svc.Sessions.Close(input.ID); err != nil {
		return nil, httpError(err)
	}
	return nil, nil
}

func (h *APIHandler) ListMeasurements(ctx context.Context, input *struct {
	SessionInput
	Offset int `query:"offset" minimum:"0" doc:"Page offset"`
	Limit  int `query:"limit" minimum:"0" maximum:"500" doc:"Page size"`
}) (*struct {
	Body humastar.PageBody[MeasurementBody]
}, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	ms := sess.Measurements()
	items := make([]MeasurementBody, len(ms))
	for i, m := range ms {
		items[i] = measurementBody(sess.ID, m)
	}
	return &struct {
		Body humastar.PageBody[MeasurementBody]
	}{Body: humastar.Paginate(items, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetMeasurement(ctx context.Context, input *MeasurementInput) (*struct{ Body MeasurementBody }, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	for _, m := range sess.Measurements() {
		if m.ID == input.MID {
			return &struct{ Body MeasurementBody }{Body: measurementBody(sess.ID, m)}, nil
		}
	}
	return nil, httpError(fmt.Errorf("%w: %d", service.ErrMeasurementNotFound, input.MID))
}

func (h *APIHandler) DeleteMeasurement(ctx context.Context, input *MeasurementInput) (*struct{}, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	if err := sess.DeleteMeasurement(input.MID); err != nil {
		return nil, httpError(err)
	}
	return nil, nil
}

func (h *APIHandler) ClearMeasurements(ctx context.Context, input *SessionInput) (*struct{}, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	sess.ClearMeasurements()
	return nil, nil
}

func (h *APIHandler) Export(ctx context.Context, input *struct {
	SessionInput
	Body ExportBody
}) (*struct{ Body ExportResult }, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	token, d, err := sess.Export(input.Body.Filename)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body ExportResult }{Body: ExportResult{
		Token:    token,
		Filename: d.Filename,
		Href:     DownloadHref(token),
		Features: d.Features,
	}}, nil
}

// DownloadHref is the URL serving a staged export.
func DownloadHref(token string) string {
	return "/api/v1/downloads/" + token
}

func (h *APIHandler) Download(ctx context.Context, input *struct {
	Token string `path:"token" doc:"Download token"`
}) (*DownloadOutput, error) {
	d, err := h.svc.Sessions.Downloads().Take(input.Token)
	if err != nil {
		return nil, httpError(err)
	}
	return &DownloadOutput{
		ContentType:        d.ContentType,
		ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}),
		CacheControl:       "no-store",
		Body:               d.Data,
	}, nil
}

func (h *APIHandler) GetTime(ctx context.Context, input *SessionInput) (*struct{ Body TimeBody }, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body TimeBody }{Body: timeBody(sess.Info())}, nil
}

func (h *APIHandler) PutTime(ctx context.Context, input *struct {
	SessionInput
	Body SetTimeBody
}) (*struct{ Body TimeBody }, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	if _, err := sess.SetTime(input.Body.Index); err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body TimeBody }{Body: timeBody(sess.Info())}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *SessionInput) (*struct{ Body []service.MapLayer }, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body []service.MapLayer }{Body: sess.Layers()}, nil
}

func (h *APIHandler) PutLayer(ctx context.Context, input *struct {
	SessionInput
	Layer string `path:"layer" doc:"Layer ID" example:"mainortho"`
	Body  LayerVisibilityBody
}) (*struct{ Body service.MapLayer }, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	if err := sess.SetLayerVisible(input.Layer, input.Body.Visible); err != nil {
		return nil, httpError(err)
	}
	for _, l := range sess.Layers() {
		if l.ID == input.Layer {
			return &struct{ Body service.MapLayer }{Body: l}, nil
		}
	}
	return nil, httpError(service.ErrLayerNotFound)
}

func (h *APIHandler) CreateIndex(ctx context.Context, input *struct {
	SessionInput
	Body CreateIndexBody
}) (*struct{ Body []service.MapLayer }, error) {
	sess, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	if h.svc.Formulas != nil {
		if err := h.svc.Formulas.CheckFormula(ctx, input.Body.Formula); err != nil {
			return nil, httpError(err)
		}
	}
	added, err := sess.AddIndex(ctx, input.Body.Index, input.Body.Formula)
	if err != nil {
		return nil, httpError(err)
	}
	if added == nil {
		added = []service.MapLayer{}
	}
	return &struct{ Body []service.MapLayer }{Body: added}, nil
}

func measurementBody(session string, m service.Measurement) MeasurementBody {
	return MeasurementBody{Measurement: m, Shape: geojson.NewGeometry(m.Geometry), session: session}
}

func timeBody(info service.SessionInfo) TimeBody {
	b := TimeBody{Times: info.Times, Index: info.TimeIndex}
	if info.TimeIndex >= 0 && info.TimeIndex < len(info.Times) {
		b.Time = info.Times[info.TimeIndex]
	}
	return b
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	var se *mapper.StatusError
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrMeasurementNotFound),
		errors.Is(err, service.ErrLayerNotFound),
		errors.Is(err, service.ErrDownloadNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, measure.ErrNothingToExport):
		return huma.Error409Conflict(measure.MsgNothingToExport)
	case errors.Is(err, timedim.ErrIndexOutOfRange),
		errors.Is(err, mapper.ErrInvalidFormula):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, mapper.ErrQuotaExceeded):
		return huma.NewError(http.StatusPaymentRequired, mapper.MsgQuotaExceeded)
	case errors.As(err, &se):
		return huma.Error502BadGateway("Mapper backend error", err)
	}
	return huma.Error500InternalServerError("Internal error", err)
}
