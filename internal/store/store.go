// Package store implements the mutation engine: the command surface
// over tasks, projects, sections and areas that validates input,
// applies status-transition rules, propagates cascades, stamps
// revisions and hands snapshots to the persistence queue.
//
// All mutations run to completion under one mutex, so they are atomic
// with respect to each other; only storage I/O is asynchronous.
package store

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mindwtr/mindwtr/internal/migrate"
	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/persist"
	"github.com/mindwtr/mindwtr/internal/storage"
)

// Config holds the store's collaborators and tuning knobs. The storage
// adapter is an explicit dependency: there is no process-wide binding.
type Config struct {
	// Adapter is the storage backend. Required.
	Adapter storage.Adapter

	// LoadTimeout bounds the startup load and refresh reads.
	LoadTimeout time.Duration

	// SaveTimeout bounds each queued write.
	SaveTimeout time.Duration

	// Logger for store activity.
	Logger *log.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time

	// OnSaveError, if set, is notified after every failed write.
	OnSaveError func(error)
}

// DefaultConfig returns sensible defaults (adapter still required).
func DefaultConfig() *Config {
	return &Config{
		LoadTimeout: 15 * time.Second,
		SaveTimeout: 30 * time.Second,
		Logger:      log.New(os.Stderr, "[store] ", log.LstdFlags),
	}
}

// Store owns the canonical in-memory dataset and its derived visible
// projections.
type Store struct {
	mu      sync.Mutex
	adapter storage.Adapter
	queue   *persist.Queue
	logger  *log.Logger
	now     func() time.Time

	deviceID string
	doc      *model.Document

	visibleTasks    []model.Task
	visibleProjects []model.Project
	visibleSections []model.Section

	lastDataChangeAt time.Time
	loadTimeout      time.Duration
	editLocked       bool
	closed           bool
	lastErr          error
}

// Open loads the document from the adapter, runs migrations, and
// returns a store seeded with the result. The load is bounded by
// Config.LoadTimeout; a read that does not complete in time fails with
// a clear error instead of hanging.
func Open(ctx context.Context, config *Config) (*Store, error) {
	def := DefaultConfig()
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = def.LoadTimeout
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = def.SaveTimeout
	}
	if config.Logger == nil {
		config.Logger = def.Logger
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	s := &Store{
		adapter:     config.Adapter,
		logger:      config.Logger,
		now:         config.Now,
		loadTimeout: config.LoadTimeout,
	}
	s.queue = persist.New(config.Adapter, &persist.Config{
		SaveTimeout: config.SaveTimeout,
		Logger:      config.Logger,
		OnError: func(err error) {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			if config.OnSaveError != nil {
				config.OnSaveError(err)
			}
		},
	})

	loadCtx, cancel := context.WithTimeout(ctx, config.LoadTimeout)
	defer cancel()
	doc, err := config.Adapter.Load(loadCtx)
	if err != nil {
		return nil, err
	}

	changed := migrate.Run(doc, config.Now(), config.Logger)
	s.doc = doc
	s.deviceID = doc.Settings.DeviceID
	s.rebuildVisible()
	s.lastDataChangeAt = config.Now()

	if changed {
		s.queue.Enqueue(persist.SanitizeForSave(s.doc))
	}
	return s, nil
}

// DeviceID returns the stable device identifier stamped into revBy.
func (s *Store) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// Err returns the current global error state, nil when healthy.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastDataChangeAt reports when the dataset last mutated.
func (s *Store) LastDataChangeAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDataChangeAt
}

// Flush blocks until every snapshot enqueued so far has been written.
func (s *Store) Flush(ctx context.Context) error {
	return s.queue.Flush(ctx)
}

// Close flushes outstanding writes and rejects further mutations.
func (s *Store) Close(ctx context.Context) error {
	err := s.queue.Close(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

// BeginEdit marks a user edit session as open. While locked, refreshes
// from storage are skipped so a stale remote read cannot clobber
// in-progress local edits.
func (s *Store) BeginEdit() {
	s.mu.Lock()
	s.editLocked = true
	s.mu.Unlock()
}

// EndEdit closes the edit session.
func (s *Store) EndEdit() {
	s.mu.Lock()
	s.editLocked = false
	s.mu.Unlock()
}

// RefreshFromStorage re-reads the document from the adapter and
// replaces the in-memory state. It is a no-op returning ErrLocked
// while an edit session is open. On read failure the in-memory state
// stays whatever was last good.
func (s *Store) RefreshFromStorage(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.editLocked {
		s.mu.Unlock()
		return ErrLocked
	}
	timeout := s.loadTimeout
	s.mu.Unlock()

	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	doc, err := s.adapter.Load(loadCtx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editLocked {
		// An edit session opened while the read was in flight wins.
		return ErrLocked
	}
	changed := migrate.Run(doc, s.now(), s.logger)
	s.doc = doc
	if doc.Settings.DeviceID != "" {
		s.deviceID = doc.Settings.DeviceID
	}
	s.rebuildVisible()
	s.lastDataChangeAt = s.now()
	s.lastErr = nil
	if changed {
		// Persist migration edits now; an externally written file may
		// otherwise never see them.
		s.queue.Enqueue(persist.SanitizeForSave(s.doc))
	}
	return nil
}

// Document returns a deep copy of the full dataset.
func (s *Store) Document() *model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// VisibleTasks returns the tasks visible in everyday views: no
// tombstones, no archived status.
func (s *Store) VisibleTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.visibleTasks))
	for i := range s.visibleTasks {
		out[i] = s.visibleTasks[i].Clone()
	}
	return out
}

// VisibleProjects returns the non-deleted, non-archived projects.
func (s *Store) VisibleProjects() []model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Project, len(s.visibleProjects))
	for i := range s.visibleProjects {
		out[i] = s.visibleProjects[i].Clone()
	}
	return out
}

// VisibleSections returns the non-deleted sections.
func (s *Store) VisibleSections() []model.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Section, len(s.visibleSections))
	copy(out, s.visibleSections)
	return out
}

// Areas returns the area list ordered as stored.
func (s *Store) Areas() []model.Area {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Area, len(s.doc.Areas))
	copy(out, s.doc.Areas)
	return out
}

// QueryTasks filters tasks, delegating to the adapter when it can
// filter server-side and falling back to the in-memory filter.
func (s *Store) QueryTasks(ctx context.Context, opts storage.QueryOptions) ([]model.Task, error) {
	if querier, ok := s.adapter.(storage.TaskQuerier); ok {
		return querier.QueryTasks(ctx, opts)
	}
	s.mu.Lock()
	tasks := make([]model.Task, len(s.doc.Tasks))
	copy(tasks, s.doc.Tasks)
	s.mu.Unlock()
	return storage.FilterTasks(tasks, opts), nil
}

// SanitizedForRemote returns the snapshot a sync collaborator may
// transmit: secrets stripped, local file URIs blanked, settings
// filtered to the synced sections.
func (s *Store) SanitizedForRemote() *model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return persist.SanitizeForRemote(s.doc)
}

// commitLocked stamps the change time and hands a sanitized snapshot
// to the persistence queue. Callers hold s.mu.
func (s *Store) commitLocked() {
	s.lastDataChangeAt = s.now()
	s.queue.Enqueue(persist.SanitizeForSave(s.doc))
}

// rebuildVisible recomputes every visible projection from scratch.
// Used on load and refresh; individual mutations maintain the
// projections incrementally.
func (s *Store) rebuildVisible() {
	s.visibleTasks = s.visibleTasks[:0]
	for _, t := range s.doc.Tasks {
		if taskVisible(&t) {
			s.visibleTasks = append(s.visibleTasks, t)
		}
	}
	s.visibleProjects = s.visibleProjects[:0]
	for _, p := range s.doc.Projects {
		if projectVisible(&p) {
			s.visibleProjects = append(s.visibleProjects, p)
		}
	}
	s.visibleSections = s.visibleSections[:0]
	for _, sec := range s.doc.Sections {
		if !sec.Deleted() {
			s.visibleSections = append(s.visibleSections, sec)
		}
	}
}

func taskVisible(t *model.Task) bool {
	return !t.Deleted() && t.Status != model.StatusArchived
}

func projectVisible(p *model.Project) bool {
	return !p.Deleted() && p.Status != model.ProjectArchived
}

// syncTaskProjection updates the visibleTasks projection for a single
// task without re-filtering the whole collection.
func (s *Store) syncTaskProjection(t *model.Task) {
	idx := -1
	for i := range s.visibleTasks {
		if s.visibleTasks[i].ID == t.ID {
			idx = i
			break
		}
	}
	switch {
	case taskVisible(t) && idx >= 0:
		s.visibleTasks[idx] = *t
	case taskVisible(t):
		s.visibleTasks = append(s.visibleTasks, *t)
	case idx >= 0:
		s.visibleTasks = append(s.visibleTasks[:idx], s.visibleTasks[idx+1:]...)
	}
}

// syncProjectProjection is the project counterpart of
// syncTaskProjection.
func (s *Store) syncProjectProjection(p *model.Project) {
	idx := -1
	for i := range s.visibleProjects {
		if s.visibleProjects[i].ID == p.ID {
			idx = i
			break
		}
	}
	switch {
	case projectVisible(p) && idx >= 0:
		s.visibleProjects[idx] = *p
	case projectVisible(p):
		s.visibleProjects = append(s.visibleProjects, *p)
	case idx >= 0:
		s.visibleProjects = append(s.visibleProjects[:idx], s.visibleProjects[idx+1:]...)
	}
}

// syncSectionProjection is the section counterpart.
func (s *Store) syncSectionProjection(sec *model.Section) {
	idx := -1
	for i := range s.visibleSections {
		if s.visibleSections[i].ID == sec.ID {
			idx = i
			break
		}
	}
	visible := !sec.Deleted()
	switch {
	case visible && idx >= 0:
		s.visibleSections[idx] = *sec
	case visible:
		s.visibleSections = append(s.visibleSections, *sec)
	case idx >= 0:
		s.visibleSections = append(s.visibleSections[:idx], s.visibleSections[idx+1:]...)
	}
}

// touchTask stamps a mutation on t: updatedAt, revision, device.
func (s *Store) touchTask(t *model.Task, now time.Time) {
	t.UpdatedAt = model.Stamp(now)
	t.Rev++
	t.RevBy = s.deviceID
}

func (s *Store) touchProject(p *model.Project, now time.Time) {
	p.UpdatedAt = model.Stamp(now)
	p.Rev++
	p.RevBy = s.deviceID
}

func (s *Store) touchSection(sec *model.Section, now time.Time) {
	sec.UpdatedAt = model.Stamp(now)
	sec.Rev++
	sec.RevBy = s.deviceID
}

func (s *Store) touchArea(a *model.Area, now time.Time) {
	a.UpdatedAt = model.Stamp(now)
	a.Rev++
	a.RevBy = s.deviceID
}

// Lookup helpers over the full collections. Callers hold s.mu.

func (s *Store) taskIndex(id string) int {
	for i := range s.doc.Tasks {
		if s.doc.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) projectIndex(id string) int {
	for i := range s.doc.Projects {
		if s.doc.Projects[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) sectionIndex(id string) int {
	for i := range s.doc.Sections {
		if s.doc.Sections[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) areaIndex(id string) int {
	for i := range s.doc.Areas {
		if s.doc.Areas[i].ID == id {
			return i
		}
	}
	return -1
}
