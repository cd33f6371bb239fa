package store

import (
	"strings"
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/recur"
)

// AddTask creates a task. The title must be non-empty after trimming;
// props may pre-populate any other fields. The new task starts at
// rev 1 with status inbox unless props says otherwise.
func (s *Store) AddTask(title string, props *TaskUpdate) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		s.setErr(ErrEmptyTitle)
		return nil, ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	now := s.now()
	task := model.Task{
		ID:        model.NewID(),
		Title:     title,
		Status:    model.StatusInbox,
		CreatedAt: model.Stamp(now),
		UpdatedAt: model.Stamp(now),
		Rev:       1,
		RevBy:     s.deviceID,
	}
	if props != nil {
		task, _ = applyTaskUpdates(&task, props, now)
		task.Title = title
		s.applyProjectMove(&task, nil, props)
		task.Rev = 1
		task.RevBy = s.deviceID
	}

	s.doc.Tasks = append(s.doc.Tasks, task)
	s.syncTaskProjection(&task)
	s.commitLocked()
	out := task.Clone()
	return &out, nil
}

// UpdateTask applies a changeset to a task. An unknown id is a no-op
// returning nil. Completing a recurring task emits its follow-up in
// the same engine pass.
func (s *Store) UpdateTask(id string, u *TaskUpdate) *model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || u == nil {
		return nil
	}
	idx := s.taskIndex(id)
	if idx < 0 {
		return nil
	}

	now := s.now()
	old := s.doc.Tasks[idx]
	next, completed := applyTaskUpdates(&old, u, now)
	s.applyProjectMove(&next, &old, u)
	s.touchTask(&next, now)

	s.doc.Tasks[idx] = next
	s.syncTaskProjection(&next)

	if completed {
		s.spawnFollowUpLocked(&old, now)
	}

	s.commitLocked()
	out := next.Clone()
	return &out
}

// DeleteTask tombstones a task. Unknown ids are a no-op.
func (s *Store) DeleteTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	idx := s.taskIndex(id)
	if idx < 0 || s.doc.Tasks[idx].Deleted() {
		return
	}
	now := s.now()
	s.tombstoneTaskLocked(idx, now)
	s.commitLocked()
}

// RestoreTask clears a task's tombstone. An archived task comes back
// as inbox.
func (s *Store) RestoreTask(id string) *model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	idx := s.taskIndex(id)
	if idx < 0 {
		return nil
	}

	now := s.now()
	task := &s.doc.Tasks[idx]
	task.DeletedAt = ""
	task.DeletedVia = ""
	task.PurgedAt = ""
	if task.Status == model.StatusArchived {
		task.Status = model.StatusInbox
		task.CompletedAt = ""
	}
	s.touchTask(task, now)
	s.syncTaskProjection(task)
	s.commitLocked()
	out := task.Clone()
	return &out
}

// PurgeTask marks an already-tombstoned task eligible for physical
// removal. Purging never resurrects visibility.
func (s *Store) PurgeTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	idx := s.taskIndex(id)
	if idx < 0 || !s.doc.Tasks[idx].Deleted() {
		return
	}
	now := s.now()
	task := &s.doc.Tasks[idx]
	task.PurgedAt = model.Stamp(now)
	s.touchTask(task, now)
	s.commitLocked()
}

// PurgeDeleted marks every tombstoned task, project and section as
// purged in one pass.
func (s *Store) PurgeDeleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	now := s.now()
	stamp := model.Stamp(now)
	changed := false

	for i := range s.doc.Tasks {
		t := &s.doc.Tasks[i]
		if t.Deleted() && t.PurgedAt == "" {
			t.PurgedAt = stamp
			s.touchTask(t, now)
			changed = true
		}
	}
	for i := range s.doc.Projects {
		p := &s.doc.Projects[i]
		if p.Deleted() && p.PurgedAt == "" {
			p.PurgedAt = stamp
			s.touchProject(p, now)
			changed = true
		}
	}
	for i := range s.doc.Sections {
		sec := &s.doc.Sections[i]
		if sec.Deleted() && sec.PurgedAt == "" {
			sec.PurgedAt = stamp
			s.touchSection(sec, now)
			changed = true
		}
	}

	if changed {
		s.commitLocked()
	}
}

// BatchUpdateTasks applies the same changeset to every listed task in
// one engine pass with a single persistence snapshot.
func (s *Store) BatchUpdateTasks(ids []string, u *TaskUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || u == nil {
		return
	}

	now := s.now()
	changed := false
	for _, id := range ids {
		idx := s.taskIndex(id)
		if idx < 0 {
			continue
		}
		old := s.doc.Tasks[idx]
		next, completed := applyTaskUpdates(&old, u, now)
		s.applyProjectMove(&next, &old, u)
		s.touchTask(&next, now)
		s.doc.Tasks[idx] = next
		s.syncTaskProjection(&next)
		if completed {
			s.spawnFollowUpLocked(&old, now)
		}
		changed = true
	}
	if changed {
		s.commitLocked()
	}
}

// BatchMoveTasks moves every listed task into the given project (and
// optional section) with a single persistence snapshot.
func (s *Store) BatchMoveTasks(ids []string, projectID, sectionID string) {
	u := &TaskUpdate{ProjectID: &projectID}
	if sectionID != "" {
		u.SectionID = &sectionID
	}
	s.BatchUpdateTasks(ids, u)
}

// BatchDeleteTasks tombstones every listed task with a single
// persistence snapshot.
func (s *Store) BatchDeleteTasks(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	now := s.now()
	changed := false
	for _, id := range ids {
		idx := s.taskIndex(id)
		if idx < 0 || s.doc.Tasks[idx].Deleted() {
			continue
		}
		s.tombstoneTaskLocked(idx, now)
		changed = true
	}
	if changed {
		s.commitLocked()
	}
}

// tombstoneTaskLocked soft-deletes the task at idx. Callers hold s.mu
// and commit afterwards.
func (s *Store) tombstoneTaskLocked(idx int, now time.Time) {
	task := &s.doc.Tasks[idx]
	task.DeletedAt = model.Stamp(now)
	s.touchTask(task, now)
	s.syncTaskProjection(task)
}

// spawnFollowUpLocked asks the recurrence scheduler for the follow-up
// of a just-completed task and inserts it as a fresh entity.
func (s *Store) spawnFollowUpLocked(old *model.Task, now time.Time) {
	followUp := recur.FollowUp(old, now, now)
	if followUp == nil {
		return
	}
	followUp.Rev = 1
	followUp.RevBy = s.deviceID
	if followUp.ProjectID != "" {
		n := s.nextProjectOrderLocked(followUp.ProjectID)
		followUp.OrderNum = &n
	}
	s.doc.Tasks = append(s.doc.Tasks, *followUp)
	s.syncTaskProjection(followUp)
}

// applyProjectMove implements the project/section/area consequences of
// a changeset: moving to a different project clears the section unless
// one was explicitly supplied, clears any inherited area, and assigns
// a fresh per-project order unless one was supplied; moving out of all
// projects clears section and order.
func (s *Store) applyProjectMove(next *model.Task, old *model.Task, u *TaskUpdate) {
	oldProject := ""
	if old != nil {
		oldProject = old.ProjectID
	}

	if u.ProjectID != nil {
		next.ProjectID = *u.ProjectID
		if next.ProjectID != oldProject {
			if next.ProjectID == "" {
				next.SectionID = ""
				next.OrderNum = nil
			} else {
				if u.AreaID == nil {
					next.AreaID = ""
				}
				if u.SectionID == nil {
					next.SectionID = ""
				}
				if u.OrderNum == nil {
					n := s.nextProjectOrderLocked(next.ProjectID)
					next.OrderNum = &n
				}
			}
		}
	}

	if u.SectionID != nil {
		next.SectionID = *u.SectionID
	}

	// A section only sticks when it belongs to the task's project.
	if next.SectionID != "" && !s.sectionBelongsLocked(next.SectionID, next.ProjectID) {
		next.SectionID = ""
	}
}

// sectionBelongsLocked reports whether the section exists, is not
// tombstoned, and belongs to projectID.
func (s *Store) sectionBelongsLocked(sectionID, projectID string) bool {
	if projectID == "" {
		return false
	}
	idx := s.sectionIndex(sectionID)
	if idx < 0 {
		return false
	}
	sec := &s.doc.Sections[idx]
	return !sec.Deleted() && sec.ProjectID == projectID
}

// nextProjectOrderLocked returns one past the highest order value
// among the project's non-deleted tasks.
func (s *Store) nextProjectOrderLocked(projectID string) int {
	next := 0
	for i := range s.doc.Tasks {
		t := &s.doc.Tasks[i]
		if t.ProjectID != projectID || t.Deleted() || t.OrderNum == nil {
			continue
		}
		if *t.OrderNum >= next {
			next = *t.OrderNum + 1
		}
	}
	return next
}

// setErr records a recoverable global error.
func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
