package store

import "github.com/mindwtr/mindwtr/internal/model"

// Settings returns a copy of the current settings.
func (s *Store) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Settings.Clone()
}

// UpdateSettings lets the caller mutate a copy of the settings under
// the store lock; the result replaces the stored settings and is
// persisted. The device id and migration version are engine-owned and
// survive whatever fn does to them.
func (s *Store) UpdateSettings(fn func(*model.Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		return
	}

	next := s.doc.Settings.Clone()
	fn(&next)
	next.DeviceID = s.doc.Settings.DeviceID
	next.MigrationVersion = s.doc.Settings.MigrationVersion
	s.doc.Settings = next
	s.commitLocked()
}
