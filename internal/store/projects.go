package store

import (
	"sort"
	"strings"
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
)

// FocusLimit caps how many projects may be focused at once.
const FocusLimit = 5

// AddProject creates a project, or returns the existing one when a
// non-deleted project with the same title (case-insensitive) already
// exists. Creation is therefore idempotent.
func (s *Store) AddProject(title string, props *ProjectUpdate) (*model.Project, error) {
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

	key := model.TitleKey(title)
	for i := range s.doc.Projects {
		p := &s.doc.Projects[i]
		if !p.Deleted() && model.TitleKey(p.Title) == key {
			out := p.Clone()
			return &out, nil
		}
	}

	now := s.now()
	project := model.Project{
		ID:        model.NewID(),
		Title:     title,
		Status:    model.ProjectActive,
		CreatedAt: model.Stamp(now),
		UpdatedAt: model.Stamp(now),
		Rev:       1,
		RevBy:     s.deviceID,
	}
	if props != nil {
		applyProjectUpdates(&project, props)
		project.Title = title
	}

	s.doc.Projects = append(s.doc.Projects, project)
	s.syncProjectProjection(&project)
	s.commitLocked()
	out := project.Clone()
	return &out, nil
}

// UpdateProject applies a changeset to a project. Archiving a project
// cascades to its live tasks; leaving the active status drops the
// project's focus flag. A rename that collides with another
// non-deleted project's title is rejected whole.
func (s *Store) UpdateProject(id string, u *ProjectUpdate) *model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || u == nil {
		return nil
	}
	idx := s.projectIndex(id)
	if idx < 0 {
		return nil
	}
	if u.Title != nil {
		if title := strings.TrimSpace(*u.Title); title != "" && s.projectTitleTakenLocked(title, id) {
			s.lastErr = ErrDuplicateTitle
			return nil
		}
	}

	now := s.now()
	project := &s.doc.Projects[idx]
	oldStatus := project.Status
	applyProjectUpdates(project, u)

	if project.Status != model.ProjectActive {
		project.IsFocused = false
	}
	s.touchProject(project, now)
	s.syncProjectProjection(project)

	if project.Status == model.ProjectArchived && oldStatus != model.ProjectArchived {
		s.archiveProjectTasksLocked(project.ID, now)
	}

	s.commitLocked()
	out := project.Clone()
	return &out
}

// DeleteProject tombstones the project and cascades the tombstone to
// its sections and non-deleted tasks. Tasks keep their projectId so a
// restore can bring the grouping back, but lose their sectionId.
func (s *Store) DeleteProject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	idx := s.projectIndex(id)
	if idx < 0 || s.doc.Projects[idx].Deleted() {
		return
	}

	now := s.now()
	stamp := model.Stamp(now)
	project := &s.doc.Projects[idx]
	project.DeletedAt = stamp
	project.IsFocused = false
	s.touchProject(project, now)
	s.syncProjectProjection(project)

	// Swept entities carry the project's id so restore can tell them
	// apart from entities the user deleted on their own.
	for i := range s.doc.Sections {
		sec := &s.doc.Sections[i]
		if sec.ProjectID == id && !sec.Deleted() {
			sec.DeletedAt = stamp
			sec.DeletedVia = id
			s.touchSection(sec, now)
			s.syncSectionProjection(sec)
		}
	}
	for i := range s.doc.Tasks {
		t := &s.doc.Tasks[i]
		if t.ProjectID == id && !t.Deleted() {
			t.DeletedAt = stamp
			t.DeletedVia = id
			t.SectionID = ""
			s.touchTask(t, now)
			s.syncTaskProjection(t)
		}
	}

	s.commitLocked()
}

// RestoreProject clears a project's tombstone; an archived project
// comes back active. Tasks deleted by the project cascade are restored
// alongside it.
func (s *Store) RestoreProject(id string) *model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	idx := s.projectIndex(id)
	if idx < 0 {
		return nil
	}

	now := s.now()
	project := &s.doc.Projects[idx]
	deletedAt := project.DeletedAt
	project.DeletedAt = ""
	project.PurgedAt = ""
	if project.Status == model.ProjectArchived {
		project.Status = model.ProjectActive
	}
	s.touchProject(project, now)
	s.syncProjectProjection(project)

	if deletedAt != "" {
		// Only entities swept up by this project's cascade come back;
		// independently deleted ones keep their tombstones.
		for i := range s.doc.Sections {
			sec := &s.doc.Sections[i]
			if sec.ProjectID == id && sec.DeletedVia == id {
				sec.DeletedAt = ""
				sec.DeletedVia = ""
				sec.PurgedAt = ""
				s.touchSection(sec, now)
				s.syncSectionProjection(sec)
			}
		}
		for i := range s.doc.Tasks {
			t := &s.doc.Tasks[i]
			if t.ProjectID == id && t.DeletedVia == id {
				t.DeletedAt = ""
				t.DeletedVia = ""
				t.PurgedAt = ""
				s.touchTask(t, now)
				s.syncTaskProjection(t)
			}
		}
	}

	s.commitLocked()
	out := project.Clone()
	return &out
}

// ToggleProjectFocus flips a project's focus flag. Only active
// projects can gain focus, and at most FocusLimit non-deleted projects
// may hold it at once; a toggle that would exceed either rule is a
// silent no-op.
func (s *Store) ToggleProjectFocus(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	idx := s.projectIndex(id)
	if idx < 0 {
		return
	}

	project := &s.doc.Projects[idx]
	if project.IsFocused {
		project.IsFocused = false
	} else {
		if project.Status != model.ProjectActive || project.Deleted() {
			return
		}
		focused := 0
		for i := range s.doc.Projects {
			p := &s.doc.Projects[i]
			if p.IsFocused && !p.Deleted() {
				focused++
			}
		}
		if focused >= FocusLimit {
			return
		}
		project.IsFocused = true
	}

	s.touchProject(project, s.now())
	s.syncProjectProjection(project)
	s.commitLocked()
}

// ReorderProjects assigns contiguous order values to the projects in
// the given area (empty areaID means the unfiled group) following
// orderedIDs. Projects in the scope but missing from orderedIDs keep
// their prior relative order after the listed ones, so the reorder is
// total over the scope even when the caller's list is stale.
func (s *Store) ReorderProjects(orderedIDs []string, areaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	inScope := func(p *model.Project) bool {
		return !p.Deleted() && p.AreaID == areaID
	}

	listed := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		listed[id] = i
	}

	rank := make(map[string]int)
	for _, id := range orderedIDs {
		if idx := s.projectIndex(id); idx >= 0 && inScope(&s.doc.Projects[idx]) {
			rank[id] = len(rank)
		}
	}

	// Unmentioned projects follow the listed ones, keeping their prior
	// relative order.
	var rest []*model.Project
	for i := range s.doc.Projects {
		p := &s.doc.Projects[i]
		if _, ok := listed[p.ID]; !ok && inScope(p) {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		a, b := rest[i].Order, rest[j].Order
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	for _, p := range rest {
		rank[p.ID] = len(rank)
	}

	now := s.now()
	changed := false
	for i := range s.doc.Projects {
		p := &s.doc.Projects[i]
		r, ok := rank[p.ID]
		if !ok || (p.Order != nil && *p.Order == r) {
			continue
		}
		n := r
		p.Order = &n
		s.touchProject(p, now)
		s.syncProjectProjection(p)
		changed = true
	}
	if changed {
		s.commitLocked()
	}
}

// ReorderProjectTasks renumbers a project's tasks per orderedIDs and,
// when sectionID is non-nil, moves the listed tasks into that section
// (empty string meaning no section). Scope and staleness rules match
// ReorderProjects.
func (s *Store) ReorderProjectTasks(projectID string, orderedIDs []string, sectionID *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	inScope := func(t *model.Task) bool {
		if t.ProjectID != projectID || t.Deleted() {
			return false
		}
		if sectionID == nil {
			return true
		}
		return t.SectionID == *sectionID || containsID(orderedIDs, t.ID)
	}

	rank := make(map[string]int)
	for _, id := range orderedIDs {
		if idx := s.taskIndex(id); idx >= 0 && inScope(&s.doc.Tasks[idx]) {
			rank[id] = len(rank)
		}
	}

	var rest []*model.Task
	for i := range s.doc.Tasks {
		t := &s.doc.Tasks[i]
		if _, ok := rank[t.ID]; !ok && inScope(t) {
			rest = append(rest, t)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		a, b := rest[i].OrderNum, rest[j].OrderNum
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	for _, t := range rest {
		rank[t.ID] = len(rank)
	}

	now := s.now()
	changed := false
	for i := range s.doc.Tasks {
		t := &s.doc.Tasks[i]
		r, ok := rank[t.ID]
		if !ok {
			continue
		}
		moved := false
		if t.OrderNum == nil || *t.OrderNum != r {
			n := r
			t.OrderNum = &n
			moved = true
		}
		if sectionID != nil && containsID(orderedIDs, t.ID) && t.SectionID != *sectionID {
			t.SectionID = *sectionID
			moved = true
		}
		if moved {
			s.touchTask(t, now)
			s.syncTaskProjection(t)
			changed = true
		}
	}
	if changed {
		s.commitLocked()
	}
}

// archiveProjectTasksLocked archives every live task of the project,
// stamping completion where absent. Callers hold s.mu and commit.
func (s *Store) archiveProjectTasksLocked(projectID string, now time.Time) {
	stamp := model.Stamp(now)
	for i := range s.doc.Tasks {
		t := &s.doc.Tasks[i]
		if t.ProjectID != projectID || t.Deleted() || t.Status == model.StatusArchived {
			continue
		}
		t.Status = model.StatusArchived
		if t.CompletedAt == "" {
			t.CompletedAt = stamp
		}
		t.IsFocusedToday = false
		s.touchTask(t, now)
		s.syncTaskProjection(t)
	}
}

// projectTitleTakenLocked reports whether another non-deleted project
// already holds the title, case-insensitively.
func (s *Store) projectTitleTakenLocked(title, selfID string) bool {
	key := model.TitleKey(title)
	for i := range s.doc.Projects {
		p := &s.doc.Projects[i]
		if p.ID != selfID && !p.Deleted() && model.TitleKey(p.Title) == key {
			return true
		}
	}
	return false
}

// applyProjectUpdates copies the changeset's set fields onto p.
func applyProjectUpdates(p *model.Project, u *ProjectUpdate) {
	if u.Title != nil {
		if title := strings.TrimSpace(*u.Title); title != "" {
			p.Title = title
		}
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	if u.Status != nil && u.Status.Valid() {
		p.Status = *u.Status
	}
	if u.AreaID != nil {
		p.AreaID = *u.AreaID
	}
	if u.IsSequential != nil {
		p.IsSequential = *u.IsSequential
	}
	if u.TagIDs != nil {
		p.TagIDs = append([]string(nil), (*u.TagIDs)...)
	}
	if u.SupportNotes != nil {
		p.SupportNotes = *u.SupportNotes
	}
	if u.Attachments != nil {
		p.Attachments = append([]model.Attachment(nil), (*u.Attachments)...)
	}
	if u.ReviewAt != nil {
		p.ReviewAt = *u.ReviewAt
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
