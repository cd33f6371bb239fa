package store

import (
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
)

// TaskUpdate is a changeset applied to a task. Nil pointer fields are
// untouched; a pointer to the zero value clears the field. Nullable
// complex fields use explicit Clear flags.
type TaskUpdate struct {
	Title           *string
	Status          *model.TaskStatus
	Description     *string
	ProjectID       *string
	SectionID       *string
	AreaID          *string
	Tags            *[]string
	Contexts        *[]string
	DueDate         *string
	StartTime       *string
	ReviewAt        *string
	Recurrence      *model.Recurrence
	ClearRecurrence bool
	Priority        *string
	TimeEstimate    *string
	TaskMode        *string
	Location        *string
	Checklist       *[]model.ChecklistItem
	Attachments     *[]model.Attachment
	IsFocusedToday  *bool
	OrderNum        *int
	ClearOrderNum   bool
}

// ProjectUpdate is a changeset applied to a project.
type ProjectUpdate struct {
	Title        *string
	Color        *string
	Status       *model.ProjectStatus
	AreaID       *string
	IsSequential *bool
	TagIDs       *[]string
	SupportNotes *string
	Attachments  *[]model.Attachment
	ReviewAt     *string
}

// SectionUpdate is a changeset applied to a section. There is no
// ProjectID field: a section's project is immutable.
type SectionUpdate struct {
	Title       *string
	Order       *int
	IsCollapsed *bool
	Description *string
}

// AreaUpdate is a changeset applied to an area.
type AreaUpdate struct {
	Name  *string
	Color *string
	Icon  *string
	Order *int
}

// Empty reports whether the changeset carries no fields.
func (u *AreaUpdate) Empty() bool {
	return u == nil || (u.Name == nil && u.Color == nil && u.Icon == nil && u.Order == nil)
}

// applyTaskUpdates computes the new task value for a changeset,
// implementing the status-transition rules. It returns the updated
// task and whether the change completed the task out of a non-terminal
// status (the trigger for a recurrence rollover). Revision stamping is
// the caller's job.
func applyTaskUpdates(old *model.Task, u *TaskUpdate, now time.Time) (model.Task, bool) {
	next := old.Clone()
	completed := false

	if u.Title != nil {
		next.Title = *u.Title
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Tags != nil {
		next.Tags = append([]string(nil), (*u.Tags)...)
	}
	if u.Contexts != nil {
		next.Contexts = append([]string(nil), (*u.Contexts)...)
	}
	if u.StartTime != nil {
		next.StartTime = *u.StartTime
	}
	if u.ReviewAt != nil {
		next.ReviewAt = *u.ReviewAt
	}
	if u.Recurrence != nil {
		next.Recurrence = u.Recurrence.Clone()
	}
	if u.ClearRecurrence {
		next.Recurrence = nil
	}
	if u.Priority != nil {
		next.Priority = *u.Priority
	}
	if u.TimeEstimate != nil {
		next.TimeEstimate = *u.TimeEstimate
	}
	if u.TaskMode != nil {
		next.TaskMode = *u.TaskMode
	}
	if u.Location != nil {
		next.Location = *u.Location
	}
	if u.Checklist != nil {
		next.Checklist = append([]model.ChecklistItem(nil), (*u.Checklist)...)
	}
	if u.Attachments != nil {
		next.Attachments = append([]model.Attachment(nil), (*u.Attachments)...)
	}
	if u.IsFocusedToday != nil {
		next.IsFocusedToday = *u.IsFocusedToday
	}
	if u.OrderNum != nil {
		n := *u.OrderNum
		next.OrderNum = &n
	}
	if u.ClearOrderNum {
		next.OrderNum = nil
	}
	if u.AreaID != nil {
		next.AreaID = *u.AreaID
	}

	if u.Status != nil && u.Status.Valid() {
		next.Status = *u.Status
	}

	switch {
	case next.Status == model.StatusDone && old.Status != model.StatusDone:
		next.CompletedAt = model.Stamp(now)
		next.IsFocusedToday = false
		completed = true
	case next.Status == model.StatusArchived && old.Status != model.StatusArchived:
		if next.CompletedAt == "" {
			next.CompletedAt = model.Stamp(now)
		}
		next.IsFocusedToday = false
	case old.Status.Terminal() && !next.Status.Terminal():
		next.CompletedAt = ""
	}

	// pushCount counts rescheduled deadlines: it moves only when a due
	// date is replaced by a strictly later one. Clearing the date
	// leaves it unchanged (nothing to compare against).
	if u.DueDate != nil {
		newDue := *u.DueDate
		if next.Status != model.StatusReference {
			if old.DueDate != "" && newDue != "" {
				if cmp, err := model.CompareStamps(old.DueDate, newDue); err == nil && cmp < 0 {
					next.PushCount++
				}
			}
		}
		next.DueDate = newDue
	}

	// Reference is a pure note: whatever else the changeset asked for,
	// scheduling state is wiped.
	if next.Status == model.StatusReference {
		next.StartTime = ""
		next.DueDate = ""
		next.ReviewAt = ""
		next.Recurrence = nil
		next.Priority = ""
		next.TimeEstimate = ""
		next.Checklist = nil
		next.IsFocusedToday = false
		next.PushCount = 0
	}

	next.UpdatedAt = model.Stamp(now)
	return next, completed
}
