package recur

import (
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
)

// FollowUp builds the successor task emitted when a recurring task is
// completed. It returns nil when the task does not recur or its rule
// cannot produce a next occurrence.
//
// The follow-up is a brand-new entity: fresh id, status next, checklist
// entries reset to incomplete under new ids, and non-deleted
// attachments duplicated with fresh ids and timestamps. Scheduled
// dates advance per the rule: the strict strategy anchors each date on
// its own prior value, the fluid strategy on the completion time. The
// caller owns revision stamping.
func FollowUp(done *model.Task, completedAt time.Time, now time.Time) *model.Task {
	if done.Recurrence == nil {
		return nil
	}
	rec := done.Recurrence.Clone()
	Normalize(rec)

	next := done.Clone()
	next.ID = model.NewID()
	next.Status = model.StatusNext
	next.Recurrence = rec
	next.IsFocusedToday = false
	next.PushCount = 0
	next.CompletedAt = ""
	next.DeletedAt = ""
	next.DeletedVia = ""
	next.PurgedAt = ""
	next.OrderNum = nil
	next.Rev = 0
	next.RevBy = ""
	next.CreatedAt = model.Stamp(now)
	next.UpdatedAt = model.Stamp(now)

	for _, field := range []struct {
		value  string
		assign func(string)
	}{
		{done.DueDate, func(v string) { next.DueDate = v }},
		{done.StartTime, func(v string) { next.StartTime = v }},
		{done.ReviewAt, func(v string) { next.ReviewAt = v }},
	} {
		if field.value == "" {
			field.assign("")
			continue
		}
		advanced, err := advance(field.value, rec, completedAt)
		if err != nil {
			return nil
		}
		field.assign(advanced)
	}

	next.Checklist = resetChecklist(done.Checklist)
	next.Attachments = duplicateAttachments(done.Attachments, now)
	return &next
}

// advance computes the next value for one scheduled field. The output
// mirrors the field's shape; under the fluid strategy the anchor is
// the completion time re-rendered into that shape with the field's
// original time-of-day.
func advance(value string, rec *model.Recurrence, completedAt time.Time) (string, error) {
	t, layout, err := model.ParseStamp(value)
	if err != nil {
		return "", err
	}

	anchor := t
	if rec.Strategy == model.StrategyFluid {
		c := completedAt.In(t.Location())
		anchor = time.Date(c.Year(), c.Month(), c.Day(),
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}

	next, err := Next(anchor, rec)
	if err != nil {
		return "", err
	}
	return model.FormatStamp(next, layout), nil
}

func resetChecklist(items []model.ChecklistItem) []model.ChecklistItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]model.ChecklistItem, 0, len(items))
	for _, item := range items {
		out = append(out, model.ChecklistItem{
			ID:    model.NewID(),
			Title: item.Title,
		})
	}
	return out
}

func duplicateAttachments(attachments []model.Attachment, now time.Time) []model.Attachment {
	var out []model.Attachment
	for _, att := range attachments {
		if att.DeletedAt != "" {
			continue
		}
		out = append(out, model.Attachment{
			ID:        model.NewID(),
			Name:      att.Name,
			URI:       att.URI,
			CreatedAt: model.Stamp(now),
		})
	}
	return out
}
