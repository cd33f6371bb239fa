// Package migrate upgrades persisted documents in place. Structural
// migrations are gated by a version counter in settings and run once;
// the auto-archive sweep is gated by time instead and runs on its own
// schedule.
package migrate

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
)

// Version is the current migration version. Documents at this version
// skip the structural migrations entirely.
const Version = 4

// DefaultAutoArchiveDays is how long completed tasks stay visible
// before the sweep archives them. A configured value of 0 disables
// the sweep.
const DefaultAutoArchiveDays = 7

// autoArchiveInterval throttles the sweep regardless of how often the
// document is loaded.
const autoArchiveInterval = 12 * time.Hour

type migration struct {
	version int
	name    string
	apply   func(doc *model.Document, now time.Time) bool
}

var migrations = []migration{
	{1, "normalize statuses", normalizeStatuses},
	{2, "backfill project order", backfillProjectOrder},
	{3, "merge duplicate areas", mergeDuplicateAreas},
	{4, "provision device id", provisionDeviceID},
}

// Run applies outstanding migrations and the auto-archive sweep to doc
// and reports whether anything changed (the caller should persist if
// so). Run is idempotent: a document already at the current version
// with a fresh sweep timestamp passes through untouched.
func Run(doc *model.Document, now time.Time, logger *log.Logger) bool {
	changed := false
	for _, m := range migrations {
		if doc.Settings.MigrationVersion >= m.version {
			continue
		}
		if m.apply(doc, now) && logger != nil {
			logger.Printf("migration %d (%s) applied", m.version, m.name)
		}
		doc.Settings.MigrationVersion = m.version
		changed = true
	}
	if autoArchive(doc, now, logger) {
		changed = true
	}
	return changed
}

// statusAliases maps status spellings written by older releases onto
// the closed set. Anything else unrecognized lands in inbox.
var statusAliases = map[string]model.TaskStatus{
	"todo":        model.StatusNext,
	"in-progress": model.StatusNext,
	"completed":   model.StatusDone,
}

func normalizeStatuses(doc *model.Document, _ time.Time) bool {
	changed := false
	for i := range doc.Tasks {
		t := &doc.Tasks[i]
		raw := model.TaskStatus(strings.ToLower(strings.TrimSpace(string(t.Status))))
		if raw.Valid() {
			if raw != t.Status {
				t.Status = raw
				changed = true
			}
			continue
		}
		if alias, ok := statusAliases[string(raw)]; ok {
			t.Status = alias
		} else {
			t.Status = model.StatusInbox
		}
		changed = true
	}
	for i := range doc.Projects {
		p := &doc.Projects[i]
		raw := model.ProjectStatus(strings.ToLower(strings.TrimSpace(string(p.Status))))
		if raw.Valid() {
			if raw != p.Status {
				p.Status = raw
				changed = true
			}
			continue
		}
		p.Status = model.ProjectActive
		changed = true
	}
	return changed
}

// backfillProjectOrder assigns order values to projects that have
// none, area by area, continuing after the highest existing value in
// each area.
func backfillProjectOrder(doc *model.Document, _ time.Time) bool {
	next := map[string]int{}
	for i := range doc.Projects {
		p := &doc.Projects[i]
		if p.Order != nil && *p.Order >= next[p.AreaID] {
			next[p.AreaID] = *p.Order + 1
		}
	}
	changed := false
	for i := range doc.Projects {
		p := &doc.Projects[i]
		if p.Order != nil {
			continue
		}
		n := next[p.AreaID]
		next[p.AreaID] = n + 1
		p.Order = &n
		changed = true
	}
	return changed
}

// mergeDuplicateAreas collapses areas whose names collide
// case-insensitively. The area with the lower order survives; every
// project and task reference is remapped onto it.
func mergeDuplicateAreas(doc *model.Document, _ time.Time) bool {
	byKey := map[string][]int{}
	for i := range doc.Areas {
		key := model.TitleKey(doc.Areas[i].Name)
		byKey[key] = append(byKey[key], i)
	}

	remap := map[string]string{}
	drop := map[int]bool{}
	for _, idxs := range byKey {
		if len(idxs) < 2 {
			continue
		}
		sort.Slice(idxs, func(a, b int) bool {
			return doc.Areas[idxs[a]].Order < doc.Areas[idxs[b]].Order
		})
		survivor := doc.Areas[idxs[0]].ID
		for _, idx := range idxs[1:] {
			remap[doc.Areas[idx].ID] = survivor
			drop[idx] = true
		}
	}
	if len(remap) == 0 {
		return false
	}

	kept := doc.Areas[:0]
	for i := range doc.Areas {
		if !drop[i] {
			kept = append(kept, doc.Areas[i])
		}
	}
	doc.Areas = kept

	for i := range doc.Projects {
		if to, ok := remap[doc.Projects[i].AreaID]; ok {
			doc.Projects[i].AreaID = to
		}
	}
	for i := range doc.Tasks {
		if to, ok := remap[doc.Tasks[i].AreaID]; ok {
			doc.Tasks[i].AreaID = to
		}
	}
	return true
}

func provisionDeviceID(doc *model.Document, _ time.Time) bool {
	if doc.Settings.DeviceID != "" {
		return false
	}
	doc.Settings.DeviceID = model.NewID()
	return true
}

// autoArchive flips completed tasks older than the configured
// threshold to archived. It runs at most once per interval, tracked by
// a timestamp in settings, and is independent of the version gate.
func autoArchive(doc *model.Document, now time.Time, logger *log.Logger) bool {
	days := DefaultAutoArchiveDays
	if doc.Settings.AutoArchiveDays != nil {
		days = *doc.Settings.AutoArchiveDays
	}
	if days <= 0 {
		return false
	}

	if doc.Settings.LastAutoArchiveAt != "" {
		last, _, err := model.ParseStamp(doc.Settings.LastAutoArchiveAt)
		if err == nil && now.Sub(last) < autoArchiveInterval {
			return false
		}
	}
	doc.Settings.LastAutoArchiveAt = model.Stamp(now)

	cutoff := now.AddDate(0, 0, -days)
	archived := 0
	for i := range doc.Tasks {
		t := &doc.Tasks[i]
		if t.Status != model.StatusDone || t.Deleted() || t.CompletedAt == "" {
			continue
		}
		completed, _, err := model.ParseStamp(t.CompletedAt)
		if err != nil || completed.After(cutoff) {
			continue
		}
		t.Status = model.StatusArchived
		t.UpdatedAt = model.Stamp(now)
		archived++
	}
	if archived > 0 && logger != nil {
		logger.Printf("auto-archived %d completed tasks", archived)
	}
	return true
}
