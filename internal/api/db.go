package api

import (
	"context"
	"database/sql"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapper/internal/db"
)

// DBHandler exposes the export archive.
type DBHandler struct {
	conn    *sql.DB
	archive *db.Archive
}

// NewDBHandler creates a new database handler. Both arguments may be nil
// when the archive is disabled.
func NewDBHandler(conn *sql.DB, archive *db.Archive) *DBHandler {
	return &DBHandler{conn: conn, archive: archive}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("archive"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("archive"))
	huma.Get(api, "/api/v1/archive/{session}", h.SessionArchive, huma.OperationTags("archive"))
}

type TablesBody struct {
	Tables []string `json:"tables" doc:"List of table names"`
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*struct{ Body TablesBody }, error) {
	if h.conn == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}
	return &struct{ Body TablesBody }{Body: TablesBody{Tables: tables}}, nil
}

type QueryBody struct {
	Query string `json:"query" required:"true" doc:"SQL query to execute" example:"SELECT kind, count(*) FROM measurements GROUP BY kind"`
}

type QueryResult struct {
	Columns []string         `json:"columns" doc:"Column names"`
	Rows    []map[string]any `json:"rows" doc:"Query results"`
	Count   int              `json:"count" doc:"Number of rows returned"`
}

// Query executes a SQL query against DuckDB.
func (h *DBHandler) Query(ctx context.Context, input *struct{ Body QueryBody }) (*struct{ Body QueryResult }, error) {
	if h.conn == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.conn.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	return &struct{ Body QueryResult }{Body: QueryResult{Columns: columns, Rows: results, Count: len(results)}}, nil
}

type ArchivedBody struct {
	File       string    `json:"file" doc:"Export filename"`
	Project    string    `json:"project" doc:"Backend project identifier"`
	FeatureID  int       `json:"featureId" doc:"Measurement ID"`
	Kind       string    `json:"kind" doc:"Geometry type"`
	Name       string    `json:"name,omitempty" doc:"Measurement name"`
	WKT        string    `json:"wkt" doc:"Geometry in EPSG:4326 WKT"`
	ExportedAt time.Time `json:"exportedAt" doc:"Export time"`
}

// SessionArchive lists every feature a session has exported.
func (h *DBHandler) SessionArchive(ctx context.Context, input *struct {
	Session string `path:"session" doc:"Session ID"`
}) (*struct{ Body []ArchivedBody }, error) {
	if h.archive == nil {
		return nil, huma.Error503ServiceUnavailable("Archive not available")
	}
	rows, err := h.archive.BySession(ctx, input.Session)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read archive", err)
	}
	out := make([]ArchivedBody, len(rows))
	for i, r := range rows {
		out[i] = ArchivedBody{
			File: r.File, Project: r.Project, FeatureID: r.FeatureID, Kind: r.Kind,
			Name: r.Name, WKT: r.Geometry, ExportedAt: r.ExportedAt,
		}
	}
	return &struct{ Body []ArchivedBody }{Body: out}, nil
}
