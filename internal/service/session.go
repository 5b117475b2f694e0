package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-mapper/internal/mapper"
	"github.com/joeblew999/plat-mapper/internal/measure"
	"github.com/joeblew999/plat-mapper/internal/timedim"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMeasurementNotFound is returned for unknown measurement IDs.
	ErrMeasurementNotFound = errors.New("measurement not found")
)

// Backend is the part of the mapper backend a session needs.
type Backend interface {
	Bootstrap(ctx context.Context, project string) (*mapper.Project, error)
	Indices(ctx context.Context, project string) ([]mapper.Index, error)
	CreateIndex(ctx context.Context, project, index, formula string) error
	WMSURL() string
	WFSURL() string
}

// Archiver keeps a copy of every export.
type Archiver interface {
	Archive(ctx context.Context, session, project string, d measure.Download) error
}

// Options configure a SessionService.
type Options struct {
	Backend     Backend
	Archive     Archiver
	Bus         *EventBus
	Downloads   *DownloadStore
	ProjectName string
	Logger      zerolog.Logger

	// Viewport used to fit the initial view to the project extent.
	ViewportWidth  int
	ViewportHeight int
}

// SessionService manages open map sessions.
type SessionService struct {
	backend   Backend
	archive   Archiver
	bus       *EventBus
	downloads *DownloadStore
	name      string
	log       zerolog.Logger
	width     int
	height    int

	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSessionService creates a session service.
func NewSessionService(opts Options) *SessionService {
	if opts.Bus == nil {
		opts.Bus = NewEventBus()
	}
	if opts.Downloads == nil {
		opts.Downloads = NewDownloadStore(DefaultDownloadTTL)
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1280
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 800
	}
	return &SessionService{
		backend:   opts.Backend,
		archive:   opts.Archive,
		bus:       opts.Bus,
		downloads: opts.Downloads,
		name:      opts.ProjectName,
		log:       opts.Logger,
		width:     opts.ViewportWidth,
		height:    opts.ViewportHeight,
		sessions:  make(map[string]*Session),
	}
}

// Bus returns the session event bus.
func (s *SessionService) Bus() *EventBus { return s.bus }

// Downloads returns the staged export store.
func (s *SessionService) Downloads() *DownloadStore { return s.downloads }

// Create loads a project from the backend and opens a session on it.
// Nothing is registered when loading fails.
func (s *SessionService) Create(ctx context.Context, project, name string) (*Session, error) {
	p, err := s.backend.Bootstrap(ctx, project)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = s.name
	}

	sess := &Session{
		ID:      uuid.NewString(),
		Project: p,
		Name:    name,
		Created: time.Now().UTC(),
		View:    FitView(p.Extent, s.width, s.height),
		svc:     s,
		surface: measure.NewMemorySurface(),
		layers:  NewLayerSet(p, s.backend.WMSURL(), s.backend.WFSURL()),
	}
	sess.log = s.log.With().Str("session", sess.ID).Str("project", project).Logger()

	sess.clock, err = timedim.NewController(p.Times, sess.layers, &sess.label, sess.log)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", project, err)
	}
	sess.clock.Init()

	sess.viewer = measure.New(measure.Options{
		Surface:     sess.surface,
		Saver:       sessionSaver{sess},
		Notifier:    sessionNotifier{sess},
		Logger:      sess.log,
		ProjectName: name,
	})
	sess.viewer.Init()

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	sess.log.Info().Int("times", len(p.Times)).Msg("session opened")
	s.bus.Publish(Event{Session: sess.ID, Resource: ResourceSessions, Action: ActionCreated, ID: sess.ID})
	return sess, nil
}

// Get returns an open session.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// List summarizes all open sessions, oldest first.
func (s *SessionService) List() []SessionInfo {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Close disposes a session's viewer and forgets it.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.mu.Lock()
	sess.viewer.Dispose()
	sess.surface.Close()
	sess.mu.Unlock()

	sess.log.Info().Msg("session closed")
	s.bus.Publish(Event{Session: id, Resource: ResourceSessions, Action: ActionDeleted, ID: id})
	return nil
}

// Shutdown closes every session.
func (s *SessionService) Shutdown() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		_ = s.Close(id)
	}
}

// Session is one open map. Its mutex serializes everything that touches
// the viewer, the way a browser's UI thread would.
type Session struct {
	ID      string
	Project *mapper.Project
	Name    string
	Created time.Time
	View    MapView

	svc     *SessionService
	log     zerolog.Logger
	surface *measure.MemorySurface
	layers  *LayerSet

	mu        sync.Mutex
	viewer    *measure.Viewer
	clock     *timedim.Controller
	label     timeLabel
	alerts    []string
	lastToken string
}

// Info summarizes the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, _ := s.clock.Current()
	e := s.Project.Extent
	return SessionInfo{
		ID:           s.ID,
		Project:      s.Project.ID,
		Name:         s.Name,
		Created:      s.Created,
		Measurements: s.viewer.Registry().Len(),
		State:        s.viewer.State().String(),
		Mode:         s.viewer.Mode().String(),
		Times:        s.clock.Times(),
		TimeIndex:    idx,
		Extent:       []float64{e.Min[0], e.Min[1], e.Max[0], e.Max[1]},
		View:         s.View,
	}
}

// Dispatch delivers an input event to the viewer.
func (s *Session) Dispatch(ev measure.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.viewer.Registry().Len()
	if err := s.viewer.Dispatch(ev); err != nil {
		return err
	}
	s.publishViewer(before)
	return nil
}

// Trigger presses a toolbar control. When the press exported the
// measurements the download token is returned.
func (s *Session) Trigger(control string, in measure.Input) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastToken = ""
	before := s.viewer.Registry().Len()
	err := s.viewer.Trigger(control, in)
	s.publishViewer(before)
	return s.lastToken, err
}

// Export serializes the measurements and stages the file for download.
func (s *Session) Export(filename string) (string, *measure.Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastToken = ""
	d, err := s.viewer.Export(filename)
	if err != nil {
		return "", nil, err
	}
	return s.lastToken, d, nil
}

// Measurements lists the registered measurements.
func (s *Session) Measurements() []Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.viewer.Registry()
	out := make([]Measurement, 0, reg.Len())
	for _, f := range reg.Features() {
		m := Measurement{ID: f.ID, Kind: f.Kind(), Properties: make(map[string]any, len(f.Properties)), Geometry: f.Geometry}
		for k, v := range f.Properties {
			m.Properties[k] = v
		}
		if o, ok := reg.Overlay(f.ID); ok && o != nil {
			m.Label = o.Text
		}
		out = append(out, m)
	}
	return out
}

// DeleteMeasurement removes one measurement and its label.
func (s *Session) DeleteMeasurement(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.viewer.Registry().Delete(id) {
		return fmt.Errorf("%w: %d", ErrMeasurementNotFound, id)
	}
	s.publish(ResourceMeasurements, ActionDeleted, strconv.Itoa(id))
	return nil
}

// ClearMeasurements removes every measurement.
func (s *Session) ClearMeasurements() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewer.ClearAll()
	s.publish(ResourceMeasurements, ActionDeleted, "")
}

// SetTime applies the timestamp at a slider index.
func (s *Session) SetTime(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clock.Set(index); err != nil {
		return "", err
	}
	_, t := s.clock.Current()
	s.publish(ResourceTime, ActionUpdated, t)
	return t, nil
}

// Layers returns the session's map layers.
func (s *Session) Layers() []MapLayer { return s.layers.List() }

// SetLayerVisible shows or hides a map layer.
func (s *Session) SetLayerVisible(id string, visible bool) error {
	if err := s.layers.SetVisible(id, visible); err != nil {
		return err
	}
	s.publish(ResourceLayers, ActionUpdated, id)
	return nil
}

// AddIndex asks the backend to compute a new index, then adds the layers
// it produced at the currently selected time.
func (s *Session) AddIndex(ctx context.Context, index, formula string) ([]MapLayer, error) {
	b := s.svc.backend
	if err := b.CreateIndex(ctx, s.Project.ID, index, formula); err != nil {
		return nil, err
	}
	indices, err := b.Indices(ctx, s.Project.ID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := s.layers.AddIndices(indices, b.WMSURL())
	if i, _ := s.clock.Current(); i >= 0 {
		_ = s.clock.Set(i)
	}
	for i, l := range added {
		if fresh, ok := s.layers.Get(l.ID); ok {
			added[i] = fresh
		}
		s.publish(ResourceLayers, ActionCreated, l.ID)
	}
	return added, nil
}

// Snapshot captures the session's visible state and drains pending
// alerts.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, _ := s.clock.Current()
	snap := Snapshot{
		Session:      s.ID,
		State:        s.viewer.State(),
		Mode:         s.viewer.Mode(),
		Controls:     s.viewer.Controls(),
		Overlays:     s.surface.Overlays(),
		Interactions: s.surface.Interactions(),
		Layers:       s.layers.List(),
		Times:        s.clock.Times(),
		TimeIndex:    idx,
		TimeLabel:    s.label.text,
		Alerts:       s.alerts,
		Measurements: s.viewer.Registry().Len(),
	}
	s.alerts = nil
	return snap
}

func (s *Session) publish(resource, action, id string) {
	s.svc.bus.Publish(Event{Session: s.ID, Resource: resource, Action: action, ID: id})
}

// publishViewer announces a viewer change, and a measurement change when
// the registry size moved.
func (s *Session) publishViewer(before int) {
	switch after := s.viewer.Registry().Len(); {
	case after > before:
		s.publish(ResourceMeasurements, ActionCreated, strconv.Itoa(s.viewer.NextID()-1))
	case after < before:
		s.publish(ResourceMeasurements, ActionDeleted, "")
	default:
		s.publish(ResourceViewer, ActionUpdated, "")
	}
}

// timeLabel is the visible label next to the time slider.
type timeLabel struct{ text string }

func (l *timeLabel) SetText(text string) { l.text = text }

type sessionSaver struct{ s *Session }

func (sv sessionSaver) Save(d measure.Download) error {
	s := sv.s
	s.lastToken = s.svc.downloads.Put(d)
	if s.svc.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.svc.archive.Archive(ctx, s.ID, s.Project.ID, d); err != nil {
			s.log.Warn().Err(err).Str("file", d.Filename).Msg("archive export")
		}
	}
	return nil
}

type sessionNotifier struct{ s *Session }

func (n sessionNotifier) Alert(msg string) {
	n.s.alerts = append(n.s.alerts, msg)
	n.s.log.Info().Str("alert", msg).Msg("user alerted")
}
