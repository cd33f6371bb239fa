package store

import (
	"strings"

	"github.com/mindwtr/mindwtr/internal/model"
)

// AddSection creates a section inside a project. The title must be
// non-blank and the project must exist and not be tombstoned: a
// section cannot outlive its project.
func (s *Store) AddSection(projectID, title string) (*model.Section, error) {
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
	idx := s.projectIndex(projectID)
	if idx < 0 || s.doc.Projects[idx].Deleted() {
		s.lastErr = ErrUnknownProject
		return nil, ErrUnknownProject
	}

	now := s.now()
	order := 0
	for i := range s.doc.Sections {
		sec := &s.doc.Sections[i]
		if sec.ProjectID != projectID || sec.Deleted() {
			continue
		}
		if sec.Order >= order {
			order = sec.Order + 1
		}
	}

	section := model.Section{
		ID:        model.NewID(),
		ProjectID: projectID,
		Title:     title,
		Order:     order,
		CreatedAt: model.Stamp(now),
		UpdatedAt: model.Stamp(now),
		Rev:       1,
		RevBy:     s.deviceID,
	}
	s.doc.Sections = append(s.doc.Sections, section)
	s.syncSectionProjection(&section)
	s.commitLocked()
	out := section
	return &out, nil
}

// UpdateSection applies a changeset to a section. A section never
// changes project; move its tasks instead.
func (s *Store) UpdateSection(id string, u *SectionUpdate) *model.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || u == nil {
		return nil
	}
	idx := s.sectionIndex(id)
	if idx < 0 {
		return nil
	}

	section := &s.doc.Sections[idx]
	if u.Title != nil {
		if title := strings.TrimSpace(*u.Title); title != "" {
			section.Title = title
		}
	}
	if u.Order != nil {
		section.Order = *u.Order
	}
	if u.IsCollapsed != nil {
		section.IsCollapsed = *u.IsCollapsed
	}
	if u.Description != nil {
		section.Description = *u.Description
	}

	s.touchSection(section, s.now())
	s.syncSectionProjection(section)
	s.commitLocked()
	out := *section
	return &out
}

// DeleteSection tombstones a section. Its tasks stay in the project
// but drop back to the unsectioned group.
func (s *Store) DeleteSection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	idx := s.sectionIndex(id)
	if idx < 0 || s.doc.Sections[idx].Deleted() {
		return
	}

	now := s.now()
	section := &s.doc.Sections[idx]
	section.DeletedAt = model.Stamp(now)
	s.touchSection(section, now)
	s.syncSectionProjection(section)

	for i := range s.doc.Tasks {
		t := &s.doc.Tasks[i]
		if t.SectionID != id {
			continue
		}
		t.SectionID = ""
		s.touchTask(t, now)
		s.syncTaskProjection(t)
	}

	s.commitLocked()
}
