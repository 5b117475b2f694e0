package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapper/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = humastar.Links{
	"/health": {
		humastar.Link("/api/v1/info", "info"),
		humastar.Link("/api/v1/sessions", "sessions"),
		humastar.Link("/api/v1/tables", "tables"),
		humastar.Link("/openapi.json", "service-desc"),
		humastar.Link("/docs", "service-doc"),
	},
	"/api/v1/info": {
		humastar.Link("/health", "up"),
	},
	"/api/v1/sessions": {
		humastar.Link("/health", "up"),
	},
	"/api/v1/sessions/{id}": {
		humastar.Link("/api/v1/sessions", "collection"),
	},
	"/api/v1/sessions/{id}/measurements": {
		humastar.Link("/api/v1/sessions", "up"),
	},
	"/api/v1/sessions/{id}/measurements/{mid}": {
		humastar.Link("/api/v1/sessions", "up"),
	},
	"/api/v1/tables": {
		humastar.Link("/api/v1/query", "search"),
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
func LinkTransformer() huma.Transformer {
	return humastar.LinkTransformer(links)
}
