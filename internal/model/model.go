// Package model provides the value types for the mindwtr data store:
// tasks, projects, sections, areas, settings and the persisted document
// that bundles them.
//
// The JSON field names match the persisted data.json document exactly,
// so a document written by any other mindwtr client round-trips through
// these types without loss.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the closed set of task workflow states.
type TaskStatus string

const (
	StatusInbox     TaskStatus = "inbox"
	StatusNext      TaskStatus = "next"
	StatusWaiting   TaskStatus = "waiting"
	StatusSomeday   TaskStatus = "someday"
	StatusReference TaskStatus = "reference"
	StatusDone      TaskStatus = "done"
	StatusArchived  TaskStatus = "archived"
)

// Valid reports whether s is a member of the closed status set.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusInbox, StatusNext, StatusWaiting, StatusSomeday,
		StatusReference, StatusDone, StatusArchived:
		return true
	}
	return false
}

// Terminal reports whether s represents a completed state.
// Terminal tasks carry a completedAt timestamp.
func (s TaskStatus) Terminal() bool {
	return s == StatusDone || s == StatusArchived
}

// ProjectStatus is the closed set of project workflow states.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectSomeday  ProjectStatus = "someday"
	ProjectWaiting  ProjectStatus = "waiting"
	ProjectArchived ProjectStatus = "archived"
)

// Valid reports whether s is a member of the closed status set.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectSomeday, ProjectWaiting, ProjectArchived:
		return true
	}
	return false
}

// ChecklistItem is a single entry in a task's checklist.
type ChecklistItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done,omitempty"`
}

// Attachment is a file or link attached to a task or project.
// URI may be a local file:// path or a remote URL.
type Attachment struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	URI       string `json:"uri"`
	CreatedAt string `json:"createdAt,omitempty"`
	DeletedAt string `json:"deletedAt,omitempty"`
}

// Recurrence rule frequencies.
const (
	RuleDaily   = "daily"
	RuleWeekly  = "weekly"
	RuleMonthly = "monthly"
	RuleYearly  = "yearly"
)

// Recurrence strategies. Strict anchors the next occurrence on the
// task's own scheduled date; fluid anchors on the completion time.
const (
	StrategyStrict = "strict"
	StrategyFluid  = "fluid"
)

// Recurrence describes how a task repeats after completion.
type Recurrence struct {
	Rule       string   `json:"rule"`
	Strategy   string   `json:"strategy,omitempty"`
	ByDay      []string `json:"byDay,omitempty"`
	ByMonthDay []int    `json:"byMonthDay,omitempty"`
	Interval   int      `json:"interval,omitempty"`
}

// Clone returns a deep copy of the recurrence.
func (r *Recurrence) Clone() *Recurrence {
	if r == nil {
		return nil
	}
	out := *r
	out.ByDay = append([]string(nil), r.ByDay...)
	out.ByMonthDay = append([]int(nil), r.ByMonthDay...)
	return &out
}

// Task is a single actionable (or reference) item.
//
// All date-bearing fields are strings in one of three shapes: date-only
// (2006-01-02), naive local (2006-01-02T15:04), or zoned RFC 3339.
// An empty string means absent.
type Task struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Status         TaskStatus      `json:"status"`
	Description    string          `json:"description,omitempty"`
	ProjectID      string          `json:"projectId,omitempty"`
	SectionID      string          `json:"sectionId,omitempty"`
	AreaID         string          `json:"areaId,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Contexts       []string        `json:"contexts,omitempty"`
	DueDate        string          `json:"dueDate,omitempty"`
	StartTime      string          `json:"startTime,omitempty"`
	ReviewAt       string          `json:"reviewAt,omitempty"`
	Recurrence     *Recurrence     `json:"recurrence,omitempty"`
	Priority       string          `json:"priority,omitempty"`
	TimeEstimate   string          `json:"timeEstimate,omitempty"`
	TaskMode       string          `json:"taskMode,omitempty"`
	Location       string          `json:"location,omitempty"`
	Checklist      []ChecklistItem `json:"checklist,omitempty"`
	Attachments    []Attachment    `json:"attachments,omitempty"`
	IsFocusedToday bool            `json:"isFocusedToday,omitempty"`
	PushCount      int             `json:"pushCount,omitempty"`
	OrderNum       *int            `json:"orderNum,omitempty"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
	CompletedAt    string          `json:"completedAt,omitempty"`
	DeletedAt      string          `json:"deletedAt,omitempty"`
	DeletedVia     string          `json:"deletedVia,omitempty"`
	PurgedAt       string          `json:"purgedAt,omitempty"`
	Rev            int             `json:"rev,omitempty"`
	RevBy          string          `json:"revBy,omitempty"`
}

// Deleted reports whether the task is tombstoned.
func (t *Task) Deleted() bool { return t.DeletedAt != "" }

// Clone returns a deep copy of the task.
func (t *Task) Clone() Task {
	out := *t
	out.Tags = append([]string(nil), t.Tags...)
	out.Contexts = append([]string(nil), t.Contexts...)
	out.Checklist = append([]ChecklistItem(nil), t.Checklist...)
	out.Attachments = append([]Attachment(nil), t.Attachments...)
	out.Recurrence = t.Recurrence.Clone()
	if t.OrderNum != nil {
		n := *t.OrderNum
		out.OrderNum = &n
	}
	return out
}

// Project groups tasks and sections, optionally under an area.
type Project struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Color        string        `json:"color"`
	Status       ProjectStatus `json:"status"`
	AreaID       string        `json:"areaId,omitempty"`
	AreaTitle    string        `json:"areaTitle,omitempty"`
	Order        *int          `json:"order,omitempty"`
	IsSequential bool          `json:"isSequential,omitempty"`
	IsFocused    bool          `json:"isFocused,omitempty"`
	TagIDs       []string      `json:"tagIds,omitempty"`
	SupportNotes string        `json:"supportNotes,omitempty"`
	Attachments  []Attachment  `json:"attachments,omitempty"`
	ReviewAt     string        `json:"reviewAt,omitempty"`
	CreatedAt    string        `json:"createdAt"`
	UpdatedAt    string        `json:"updatedAt"`
	DeletedAt    string        `json:"deletedAt,omitempty"`
	PurgedAt     string        `json:"purgedAt,omitempty"`
	Rev          int           `json:"rev,omitempty"`
	RevBy        string        `json:"revBy,omitempty"`
}

// Deleted reports whether the project is tombstoned.
func (p *Project) Deleted() bool { return p.DeletedAt != "" }

// Clone returns a deep copy of the project.
func (p *Project) Clone() Project {
	out := *p
	out.TagIDs = append([]string(nil), p.TagIDs...)
	out.Attachments = append([]Attachment(nil), p.Attachments...)
	if p.Order != nil {
		n := *p.Order
		out.Order = &n
	}
	return out
}

// Section is a named slice of a project's task list.
// ProjectID is immutable once the section is created.
type Section struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	Title       string `json:"title"`
	Order       int    `json:"order"`
	IsCollapsed bool   `json:"isCollapsed,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
	DeletedAt   string `json:"deletedAt,omitempty"`
	DeletedVia  string `json:"deletedVia,omitempty"`
	PurgedAt    string `json:"purgedAt,omitempty"`
	Rev         int    `json:"rev,omitempty"`
	RevBy       string `json:"revBy,omitempty"`
}

// Deleted reports whether the section is tombstoned.
func (s *Section) Deleted() bool { return s.DeletedAt != "" }

// Clone returns a copy of the section.
func (s *Section) Clone() Section { return *s }

// Area is a sphere of responsibility grouping projects and tasks.
// Areas are never tombstoned; deletion removes them outright.
type Area struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
	Color     string `json:"color,omitempty"`
	Icon      string `json:"icon,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	Rev       int    `json:"rev,omitempty"`
	RevBy     string `json:"revBy,omitempty"`
}

// Clone returns a copy of the area.
func (a *Area) Clone() Area { return *a }

// ExternalCalendar is a read-only calendar subscription.
type ExternalCalendar struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// AISettings carries the AI provider configuration. APIKey is secret
// material and must never leave the process in a saved or synced
// snapshot.
type AISettings struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

// Settings is the per-document settings blob.
type Settings struct {
	MigrationVersion  int                `json:"migrationVersion,omitempty"`
	DeviceID          string             `json:"deviceId,omitempty"`
	Appearance        string             `json:"appearance,omitempty"`
	Language          string             `json:"language,omitempty"`
	AutoArchiveDays   *int               `json:"autoArchiveDays,omitempty"`
	LastAutoArchiveAt string             `json:"lastAutoArchiveAt,omitempty"`
	ExternalCalendars []ExternalCalendar `json:"externalCalendars,omitempty"`
	AI                *AISettings        `json:"ai,omitempty"`
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() Settings {
	out := *s
	if s.AutoArchiveDays != nil {
		n := *s.AutoArchiveDays
		out.AutoArchiveDays = &n
	}
	out.ExternalCalendars = append([]ExternalCalendar(nil), s.ExternalCalendars...)
	if s.AI != nil {
		ai := *s.AI
		out.AI = &ai
	}
	return out
}

// Document is the full persisted dataset handed to storage adapters.
type Document struct {
	Tasks    []Task    `json:"tasks"`
	Projects []Project `json:"projects"`
	Sections []Section `json:"sections"`
	Areas    []Area    `json:"areas"`
	Settings Settings  `json:"settings"`
}

// NewDocument returns an empty document with non-nil collections.
func NewDocument() *Document {
	return &Document{
		Tasks:    []Task{},
		Projects: []Project{},
		Sections: []Section{},
		Areas:    []Area{},
	}
}

// Clone returns a deep copy of the document. Handing clones across the
// persistence boundary keeps saved snapshots from aliasing live state.
func (d *Document) Clone() *Document {
	out := &Document{
		Tasks:    make([]Task, len(d.Tasks)),
		Projects: make([]Project, len(d.Projects)),
		Sections: make([]Section, len(d.Sections)),
		Areas:    make([]Area, len(d.Areas)),
		Settings: d.Settings.Clone(),
	}
	for i := range d.Tasks {
		out.Tasks[i] = d.Tasks[i].Clone()
	}
	for i := range d.Projects {
		out.Projects[i] = d.Projects[i].Clone()
	}
	for i := range d.Sections {
		out.Sections[i] = d.Sections[i].Clone()
	}
	for i := range d.Areas {
		out.Areas[i] = d.Areas[i].Clone()
	}
	return out
}

// NewID returns a fresh entity identifier.
func NewID() string { return uuid.NewString() }

// Stamp renders t as the canonical timestamp string used for
// createdAt/updatedAt and friends.
func Stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// TitleKey folds a title for case-insensitive uniqueness checks.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
