package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-mapper/internal/measure"
)

const schema = `CREATE TABLE IF NOT EXISTS measurements (
	session     VARCHAR NOT NULL,
	project     VARCHAR NOT NULL,
	file        VARCHAR NOT NULL,
	feature_id  INTEGER NOT NULL,
	kind        VARCHAR NOT NULL,
	name        VARCHAR,
	geometry    VARCHAR NOT NULL,
	properties  VARCHAR,
	exported_at TIMESTAMP NOT NULL
)`

// Archive stores one row per exported feature, geometry in EPSG:4326 WKT.
type Archive struct {
	db  *sql.DB
	now func() time.Time
}

// ArchivedFeature is a row of the measurements table.
type ArchivedFeature struct {
	Session    string
	Project    string
	File       string
	FeatureID  int
	Kind       string
	Name       string
	Geometry   string
	ExportedAt time.Time
}

// NewArchive creates the measurements table if needed.
func NewArchive(ctx context.Context, db *sql.DB) (*Archive, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create measurements table: %w", err)
	}
	return &Archive{db: db, now: time.Now}, nil
}

// Archive records every feature of an exported GeoJSON file.
func (a *Archive) Archive(ctx context.Context, session, project string, d measure.Download) error {
	fc, err := geojson.UnmarshalFeatureCollection(d.Data)
	if err != nil {
		return fmt.Errorf("decode export %s: %w", d.Filename, err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO measurements
		(session, project, file, feature_id, kind, name, geometry, properties, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	at := a.now().UTC()
	for _, f := range fc.Features {
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return err
		}
		var name sql.NullString
		if n, ok := f.Properties["name"].(string); ok {
			name = sql.NullString{String: n, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			session, project, d.Filename, featureID(f.ID), f.Geometry.GeoJSONType(), name,
			wkt.MarshalString(f.Geometry), string(props), at,
		); err != nil {
			return fmt.Errorf("archive feature %v: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// BySession returns the archived features of a session in export order.
func (a *Archive) BySession(ctx context.Context, session string) ([]ArchivedFeature, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT session, project, file, feature_id, kind, COALESCE(name, ''), geometry, exported_at
		FROM measurements WHERE session = ? ORDER BY exported_at, feature_id`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedFeature
	for rows.Next() {
		var f ArchivedFeature
		if err := rows.Scan(&f.Session, &f.Project, &f.File, &f.FeatureID, &f.Kind, &f.Name, &f.Geometry, &f.ExportedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// featureID converts a decoded GeoJSON id, which arrives as float64.
func featureID(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
