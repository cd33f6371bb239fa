// Package storage defines the pluggable persistence boundary for the
// mindwtr data store.
//
// The store owns the canonical in-memory document; adapters only load
// it at startup and write coalesced snapshots handed to them by the
// persistence queue. Adapters must treat missing or malformed
// collections in stored data as empty, never as load failures.
package storage

import (
	"context"

	"github.com/mindwtr/mindwtr/internal/model"
)

// Adapter is the contract every storage backend fulfills.
//
// Load is called once on startup; Save receives full document
// snapshots. Both run under a context deadline set by the caller and
// must return promptly when it expires.
type Adapter interface {
	// Load reads the persisted document. A backend with no stored
	// data returns an empty document, not an error.
	Load(ctx context.Context) (*model.Document, error)

	// Save persists a full document snapshot. The snapshot is already
	// sanitized and owned by the adapter; it will not be mutated
	// after the call.
	Save(ctx context.Context, doc *model.Document) error
}

// QueryOptions filters task queries. Zero values mean "no constraint".
type QueryOptions struct {
	// Status restricts results to a single status.
	Status model.TaskStatus

	// ExcludeStatuses drops tasks in any of the listed statuses.
	ExcludeStatuses []model.TaskStatus

	// ProjectID restricts results to one project.
	ProjectID string

	// IncludeArchived includes archived tasks, excluded by default.
	IncludeArchived bool

	// IncludeDeleted includes tombstoned tasks, excluded by default.
	IncludeDeleted bool
}

// TaskQuerier is an optional adapter capability for backends that can
// filter tasks server-side. Callers fall back to an in-memory filter
// when the adapter does not implement it.
type TaskQuerier interface {
	QueryTasks(ctx context.Context, opts QueryOptions) ([]model.Task, error)
}

// FilterTasks is the in-memory equivalent of TaskQuerier used when an
// adapter does not filter server-side.
func FilterTasks(tasks []model.Task, opts QueryOptions) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Deleted() && !opts.IncludeDeleted {
			continue
		}
		if task.Status == model.StatusArchived && !opts.IncludeArchived && opts.Status != model.StatusArchived {
			continue
		}
		if opts.Status != "" && task.Status != opts.Status {
			continue
		}
		if excluded(task.Status, opts.ExcludeStatuses) {
			continue
		}
		if opts.ProjectID != "" && task.ProjectID != opts.ProjectID {
			continue
		}
		out = append(out, task.Clone())
	}
	return out
}

func excluded(status model.TaskStatus, list []model.TaskStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}
