package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// Info describes the running service.
type Info struct {
	Name       string
	Version    string
	DataDir    string
	BackendURL string
	DB         bool
}

type InfoHandler struct {
	info Info
}

func NewInfoHandler(info Info) *InfoHandler {
	return &InfoHandler{info: info}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Backend  string   `json:"backend" doc:"Mapper backend base URL"`
	DB       bool     `json:"db" doc:"Whether the export archive is available"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"measure", "geojson-export", "time-dimension", "indices"}
	if h.info.DB {
		features = append(features, "archive")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     h.info.Name,
		Version:  h.info.Version,
		DataDir:  h.info.DataDir,
		Backend:  h.info.BackendURL,
		DB:       h.info.DB,
		Features: features,
	}}, nil
}
