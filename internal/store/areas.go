package store

import (
	"sort"
	"strings"

	"github.com/mindwtr/mindwtr/internal/model"
)

// AddArea creates an area, or returns the existing one when an area
// with the same name (case-insensitive) already exists. When the call
// matches an existing area and props carries fields, they are applied
// as an update, so AddArea doubles as an upsert.
func (s *Store) AddArea(name string, props *AreaUpdate) (*model.Area, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.setErr(ErrEmptyTitle)
		return nil, ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	now := s.now()
	key := model.TitleKey(name)
	for i := range s.doc.Areas {
		a := &s.doc.Areas[i]
		if model.TitleKey(a.Name) != key {
			continue
		}
		if !props.Empty() {
			applyAreaUpdates(a, props)
			s.touchArea(a, now)
			s.commitLocked()
		}
		out := a.Clone()
		return &out, nil
	}

	area := model.Area{
		ID:        model.NewID(),
		Name:      name,
		Order:     s.nextAreaOrderLocked(),
		CreatedAt: model.Stamp(now),
		UpdatedAt: model.Stamp(now),
		Rev:       1,
		RevBy:     s.deviceID,
	}
	if !props.Empty() {
		applyAreaUpdates(&area, props)
		area.Name = name
	}
	s.doc.Areas = append(s.doc.Areas, area)
	s.commitLocked()
	out := area.Clone()
	return &out, nil
}

// UpdateArea applies a changeset to an area. A rename that collides
// with another area's name is rejected whole.
func (s *Store) UpdateArea(id string, u *AreaUpdate) *model.Area {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || u.Empty() {
		return nil
	}
	idx := s.areaIndex(id)
	if idx < 0 {
		return nil
	}
	if u.Name != nil {
		if name := strings.TrimSpace(*u.Name); name != "" && s.areaNameTakenLocked(name, id) {
			s.lastErr = ErrDuplicateTitle
			return nil
		}
	}

	area := &s.doc.Areas[idx]
	applyAreaUpdates(area, u)
	s.touchArea(area, s.now())
	s.commitLocked()
	out := area.Clone()
	return &out
}

// DeleteArea removes an area outright. Areas carry no tombstone: the
// row is dropped and every project and task pointing at it is unfiled.
func (s *Store) DeleteArea(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	idx := s.areaIndex(id)
	if idx < 0 {
		return
	}

	now := s.now()
	s.doc.Areas = append(s.doc.Areas[:idx], s.doc.Areas[idx+1:]...)

	for i := range s.doc.Projects {
		p := &s.doc.Projects[i]
		if p.AreaID != id {
			continue
		}
		p.AreaID = ""
		p.AreaTitle = ""
		s.touchProject(p, now)
		s.syncProjectProjection(p)
	}
	for i := range s.doc.Tasks {
		t := &s.doc.Tasks[i]
		if t.AreaID != id {
			continue
		}
		t.AreaID = ""
		s.touchTask(t, now)
		s.syncTaskProjection(t)
	}

	s.commitLocked()
}

// ReorderAreas assigns contiguous order values following orderedIDs;
// areas missing from the list keep their prior relative order after
// the listed ones.
func (s *Store) ReorderAreas(orderedIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	rank := make(map[string]int)
	for _, id := range orderedIDs {
		if s.areaIndex(id) >= 0 {
			rank[id] = len(rank)
		}
	}

	var rest []*model.Area
	for i := range s.doc.Areas {
		a := &s.doc.Areas[i]
		if _, ok := rank[a.ID]; !ok {
			rest = append(rest, a)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Order < rest[j].Order })
	for _, a := range rest {
		rank[a.ID] = len(rank)
	}

	now := s.now()
	changed := false
	for i := range s.doc.Areas {
		a := &s.doc.Areas[i]
		if r := rank[a.ID]; a.Order != r {
			a.Order = r
			s.touchArea(a, now)
			changed = true
		}
	}
	if changed {
		s.commitLocked()
	}
}

func (s *Store) nextAreaOrderLocked() int {
	next := 0
	for i := range s.doc.Areas {
		if s.doc.Areas[i].Order >= next {
			next = s.doc.Areas[i].Order + 1
		}
	}
	return next
}

// areaNameTakenLocked reports whether another area already holds the
// name, case-insensitively.
func (s *Store) areaNameTakenLocked(name, selfID string) bool {
	key := model.TitleKey(name)
	for i := range s.doc.Areas {
		a := &s.doc.Areas[i]
		if a.ID != selfID && model.TitleKey(a.Name) == key {
			return true
		}
	}
	return false
}

func applyAreaUpdates(a *model.Area, u *AreaUpdate) {
	if u.Name != nil {
		if name := strings.TrimSpace(*u.Name); name != "" {
			a.Name = name
		}
	}
	if u.Color != nil {
		a.Color = *u.Color
	}
	if u.Icon != nil {
		a.Icon = *u.Icon
	}
	if u.Order != nil {
		a.Order = *u.Order
	}
}
