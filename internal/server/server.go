// Package server wires configuration, services and HTTP handlers together.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-mapper/internal/api"
	"github.com/joeblew999/plat-mapper/internal/api/viewer"
	"github.com/joeblew999/plat-mapper/internal/config"
	"github.com/joeblew999/plat-mapper/internal/db"
	"github.com/joeblew999/plat-mapper/internal/mapper"
	"github.com/joeblew999/plat-mapper/internal/service"
	"github.com/joeblew999/plat-mapper/internal/templates"
)

// Version is reported by /api/v1/info and the OpenAPI document.
const Version = "0.1.0"

// Config holds the server configuration.
type Config struct {
	Host   string
	Port   string
	App    *config.Config
	Logger zerolog.Logger

	// Backend replaces the HTTP mapper client when set.
	Backend service.Backend
}

// Server is the mapper HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	archive  *db.Archive
	sessions *service.SessionService
	renderer *templates.Renderer
	log      zerolog.Logger
}

// New creates a new mapper server.
func New(cfg Config) (*Server, error) {
	app := cfg.App
	log := cfg.Logger

	renderer, err := templates.New(app.Viewer.Templates)
	if err != nil {
		return nil, err
	}

	var backend service.Backend = cfg.Backend
	var formulas api.FormulaChecker
	if backend == nil {
		client := mapper.New(mapper.Options{
			BaseURL: app.Backend.URL,
			Token:   app.Backend.Token,
			Timeout: app.Backend.Timeout,
			Logger:  log.With().Str("component", "mapper").Logger(),
		})
		backend, formulas = client, client
	}

	s := &Server{
		config:   cfg,
		mux:      http.NewServeMux(),
		renderer: renderer,
		log:      log,
	}

	if app.Data.Archive {
		s.openArchive()
	}

	opts := service.Options{
		Backend:        backend,
		Bus:            service.NewEventBus(),
		Downloads:      service.NewDownloadStore(app.Viewer.Downloads),
		ProjectName:    app.Project.Name,
		Logger:         log.With().Str("component", "sessions").Logger(),
		ViewportWidth:  app.Viewer.Width,
		ViewportHeight: app.Viewer.Height,
	}
	if s.archive != nil {
		opts.Archive = s.archive
	}
	s.sessions = service.NewSessionService(opts)

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-mapper API", Version)
	humaConfig.Info.Description = "Measurement and annotation overlay for drone imagery maps: draw sessions, GeoJSON export and time-dimension control."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes(formulas)
	return s, nil
}

func (s *Server) openArchive() {
	app := s.config.App
	conn, err := db.Get(db.Config{DataDir: app.Data.Dir, DBName: "mapper"})
	if err != nil {
		s.log.Warn().Err(err).Msg("duckdb unavailable, exports will not be archived")
		return
	}
	archive, err := db.NewArchive(context.Background(), conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("archive unavailable")
		return
	}
	s.db, s.archive = conn, archive
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions exposes the session service.
func (s *Server) Sessions() *service.SessionService {
	return s.sessions
}

// Close disposes every session and closes the database.
func (s *Server) Close() error {
	s.sessions.Shutdown()
	if s.db != nil {
		return db.Close()
	}
	return nil
}

func (s *Server) routes(formulas api.FormulaChecker) {
	app := s.config.App

	api.NewAPIHandler(&api.Services{Sessions: s.sessions, Formulas: formulas}).Register(s.humaAPI)
	api.NewInfoHandler(api.Info{
		Name:       "plat-mapper",
		Version:    Version,
		DataDir:    app.Data.Dir,
		BackendURL: app.Backend.URL,
		DB:         s.archive != nil,
	}).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db, s.archive).RegisterRoutes(s.humaAPI)

	viewer.NewHandler(s.sessions, s.renderer, s.log.With().Str("component", "viewer").Logger()).
		RegisterRoutes(s.humaAPI)

	if app.Viewer.Templates != "" {
		staticDir := filepath.Join(filepath.Dir(app.Viewer.Templates), "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("GET /viewer/{id}", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Add("Link", `</health>; rel="service"`)
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-mapper",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if dir := s.config.App.Viewer.Templates; dir != "" {
		// fragments on disk are re-read per page load while editing them
		if err := s.renderer.Reload(dir); err != nil {
			s.log.Warn().Err(err).Str("dir", dir).Msg("reload templates")
		}
	}
	html, err := s.renderer.Render("page", map[string]string{"Session": sess.ID, "Title": sess.Name})
	if err != nil {
		s.log.Error().Err(err).Msg("render viewer page")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
