// Package sqlite implements the SQLite storage adapter.
//
// The database runs in embedded mode via ncruces/go-sqlite3 (no cgo)
// with WAL for concurrent readers. The schema mirrors the mindwtr.db
// layout shared with other clients: array-valued fields are stored as
// JSON text columns and settings live in a singleton row.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  status TEXT NOT NULL,
  description TEXT,
  priority TEXT,
  taskMode TEXT,
  startTime TEXT,
  dueDate TEXT,
  reviewAt TEXT,
  recurrence TEXT,
  pushCount INTEGER,
  tags TEXT,
  contexts TEXT,
  checklist TEXT,
  attachments TEXT,
  location TEXT,
  projectId TEXT,
  sectionId TEXT,
  areaId TEXT,
  isFocusedToday INTEGER,
  timeEstimate TEXT,
  orderNum INTEGER,
  completedAt TEXT,
  createdAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL,
  deletedAt TEXT,
  purgedAt TEXT,
  rev INTEGER,
  revBy TEXT
);

CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  status TEXT NOT NULL,
  color TEXT NOT NULL,
  tagIds TEXT,
  isSequential INTEGER,
  isFocused INTEGER,
  supportNotes TEXT,
  attachments TEXT,
  reviewAt TEXT,
  areaId TEXT,
  areaTitle TEXT,
  orderNum INTEGER,
  createdAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL,
  deletedAt TEXT,
  purgedAt TEXT,
  rev INTEGER,
  revBy TEXT
);

CREATE TABLE IF NOT EXISTS sections (
  id TEXT PRIMARY KEY,
  projectId TEXT NOT NULL,
  title TEXT NOT NULL,
  orderNum INTEGER NOT NULL,
  isCollapsed INTEGER,
  description TEXT,
  createdAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL,
  deletedAt TEXT,
  purgedAt TEXT,
  rev INTEGER,
  revBy TEXT
);

CREATE TABLE IF NOT EXISTS areas (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  color TEXT,
  icon TEXT,
  orderNum INTEGER NOT NULL,
  createdAt TEXT,
  updatedAt TEXT,
  rev INTEGER,
  revBy TEXT
);

CREATE TABLE IF NOT EXISTS settings (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_projectId ON tasks(projectId);
CREATE INDEX IF NOT EXISTS idx_tasks_deletedAt ON tasks(deletedAt);
CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
CREATE INDEX IF NOT EXISTS idx_projects_areaId ON projects(areaId);
CREATE INDEX IF NOT EXISTS idx_sections_projectId ON sections(projectId);
`

// Adapter persists the document in an embedded SQLite database.
type Adapter struct {
	conn *sql.DB
	path string
}

var (
	_ storage.Adapter     = (*Adapter)(nil)
	_ storage.TaskQuerier = (*Adapter)(nil)
)

// Open creates or opens the database at path and ensures the schema.
// The caller must Close() when done.
func Open(path string) (*Adapter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Adapter{conn: conn, path: path}, nil
}

// Close closes the database connection after a WAL checkpoint.
func (a *Adapter) Close() error {
	if a.conn == nil {
		return nil
	}
	_, _ = a.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return a.conn.Close()
}

// Path returns the database file path.
func (a *Adapter) Path() string { return a.path }

// Save implements storage.Adapter. The snapshot replaces the stored
// document wholesale inside one transaction.
func (a *Adapter) Save(ctx context.Context, doc *model.Document) error {
	tx, err := a.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"tasks", "projects", "sections", "areas", "settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i := range doc.Tasks {
		if err := insertTask(ctx, tx, &doc.Tasks[i]); err != nil {
			return err
		}
	}
	for i := range doc.Projects {
		if err := insertProject(ctx, tx, &doc.Projects[i]); err != nil {
			return err
		}
	}
	for i := range doc.Sections {
		if err := insertSection(ctx, tx, &doc.Sections[i]); err != nil {
			return err
		}
	}
	for i := range doc.Areas {
		if err := insertArea(ctx, tx, &doc.Areas[i]); err != nil {
			return err
		}
	}

	settings, err := json.Marshal(doc.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO settings (id, data) VALUES (1, ?)", string(settings)); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load implements storage.Adapter.
func (a *Adapter) Load(ctx context.Context) (*model.Document, error) {
	doc := model.NewDocument()

	tasks, err := a.loadTasks(ctx, "SELECT * FROM tasks")
	if err != nil {
		return nil, err
	}
	doc.Tasks = tasks

	if err := a.loadProjects(ctx, doc); err != nil {
		return nil, err
	}
	if err := a.loadSections(ctx, doc); err != nil {
		return nil, err
	}
	if err := a.loadAreas(ctx, doc); err != nil {
		return nil, err
	}

	var raw sql.NullString
	err = a.conn.QueryRowContext(ctx, "SELECT data FROM settings WHERE id = 1").Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if raw.Valid {
		// A malformed settings blob degrades to defaults, not a failed load.
		_ = json.Unmarshal([]byte(raw.String), &doc.Settings)
	}
	return doc, nil
}

// QueryTasks implements storage.TaskQuerier with a server-side filter
// on the cheap predicates; the remaining ones reuse the shared
// in-memory filter.
func (a *Adapter) QueryTasks(ctx context.Context, opts storage.QueryOptions) ([]model.Task, error) {
	query := "SELECT * FROM tasks WHERE 1=1"
	var args []any
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if opts.ProjectID != "" {
		query += " AND projectId = ?"
		args = append(args, opts.ProjectID)
	}
	if !opts.IncludeDeleted {
		query += " AND deletedAt IS NULL"
	}

	tasks, err := a.loadTasks(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return storage.FilterTasks(tasks, opts), nil
}

func insertTask(ctx context.Context, tx *sql.Tx, t *model.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks
		(id, title, status, description, priority, taskMode, startTime, dueDate, reviewAt,
		 recurrence, pushCount, tags, contexts, checklist, attachments, location,
		 projectId, sectionId, areaId, isFocusedToday, timeEstimate, orderNum,
		 completedAt, createdAt, updatedAt, deletedAt, purgedAt, rev, revBy)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, string(t.Status), nullStr(t.Description), nullStr(t.Priority),
		nullStr(t.TaskMode), nullStr(t.StartTime), nullStr(t.DueDate), nullStr(t.ReviewAt),
		jsonCol(t.Recurrence), t.PushCount, jsonArr(t.Tags), jsonArr(t.Contexts),
		jsonCol(t.Checklist), jsonCol(t.Attachments), nullStr(t.Location),
		nullStr(t.ProjectID), nullStr(t.SectionID), nullStr(t.AreaID),
		boolCol(t.IsFocusedToday), nullStr(t.TimeEstimate), intPtrCol(t.OrderNum),
		nullStr(t.CompletedAt), t.CreatedAt, t.UpdatedAt, nullStr(t.DeletedAt),
		nullStr(t.PurgedAt), t.Rev, nullStr(t.RevBy))
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
	}
	return nil
}

func insertProject(ctx context.Context, tx *sql.Tx, p *model.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects
		(id, title, status, color, tagIds, isSequential, isFocused, supportNotes,
		 attachments, reviewAt, areaId, areaTitle, orderNum, createdAt, updatedAt,
		 deletedAt, purgedAt, rev, revBy)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Title, string(p.Status), p.Color, jsonArr(p.TagIDs),
		boolCol(p.IsSequential), boolCol(p.IsFocused), nullStr(p.SupportNotes),
		jsonCol(p.Attachments), nullStr(p.ReviewAt), nullStr(p.AreaID),
		nullStr(p.AreaTitle), intPtrCol(p.Order), p.CreatedAt, p.UpdatedAt,
		nullStr(p.DeletedAt), nullStr(p.PurgedAt), p.Rev, nullStr(p.RevBy))
	if err != nil {
		return fmt.Errorf("failed to insert project %s: %w", p.ID, err)
	}
	return nil
}

func insertSection(ctx context.Context, tx *sql.Tx, s *model.Section) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sections
		(id, projectId, title, orderNum, isCollapsed, description, createdAt,
		 updatedAt, deletedAt, purgedAt, rev, revBy)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ProjectID, s.Title, s.Order, boolCol(s.IsCollapsed),
		nullStr(s.Description), s.CreatedAt, s.UpdatedAt, nullStr(s.DeletedAt),
		nullStr(s.PurgedAt), s.Rev, nullStr(s.RevBy))
	if err != nil {
		return fmt.Errorf("failed to insert section %s: %w", s.ID, err)
	}
	return nil
}

func insertArea(ctx context.Context, tx *sql.Tx, a *model.Area) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO areas
		(id, name, color, icon, orderNum, createdAt, updatedAt, rev, revBy)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, nullStr(a.Color), nullStr(a.Icon), a.Order,
		nullStr(a.CreatedAt), nullStr(a.UpdatedAt), a.Rev, nullStr(a.RevBy))
	if err != nil {
		return fmt.Errorf("failed to insert area %s: %w", a.ID, err)
	}
	return nil
}

func (a *Adapter) loadTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var status string
		var description, priority, taskMode, startTime, dueDate, reviewAt sql.NullString
		var recurrence, tags, contexts, checklist, attachments sql.NullString
		var location, projectID, sectionID, areaID, timeEstimate sql.NullString
		var completedAt, deletedAt, purgedAt, revBy sql.NullString
		var pushCount, focused, rev sql.NullInt64
		var orderNum sql.NullInt64

		if err := rows.Scan(&t.ID, &t.Title, &status, &description, &priority,
			&taskMode, &startTime, &dueDate, &reviewAt, &recurrence, &pushCount,
			&tags, &contexts, &checklist, &attachments, &location, &projectID,
			&sectionID, &areaID, &focused, &timeEstimate, &orderNum, &completedAt,
			&t.CreatedAt, &t.UpdatedAt, &deletedAt, &purgedAt, &rev, &revBy); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}

		t.Status = model.TaskStatus(status)
		t.Description = description.String
		t.Priority = priority.String
		t.TaskMode = taskMode.String
		t.StartTime = startTime.String
		t.DueDate = dueDate.String
		t.ReviewAt = reviewAt.String
		t.Location = location.String
		t.ProjectID = projectID.String
		t.SectionID = sectionID.String
		t.AreaID = areaID.String
		t.TimeEstimate = timeEstimate.String
		t.CompletedAt = completedAt.String
		t.DeletedAt = deletedAt.String
		t.PurgedAt = purgedAt.String
		t.RevBy = revBy.String
		t.PushCount = int(pushCount.Int64)
		t.IsFocusedToday = focused.Int64 != 0
		t.Rev = int(rev.Int64)
		if orderNum.Valid {
			n := int(orderNum.Int64)
			t.OrderNum = &n
		}
		decodeJSONCol(recurrence, &t.Recurrence)
		decodeJSONCol(tags, &t.Tags)
		decodeJSONCol(contexts, &t.Contexts)
		decodeJSONCol(checklist, &t.Checklist)
		decodeJSONCol(attachments, &t.Attachments)

		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

func (a *Adapter) loadProjects(ctx context.Context, doc *model.Document) error {
	rows, err := a.conn.QueryContext(ctx, "SELECT * FROM projects")
	if err != nil {
		return fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Project
		var status string
		var tagIDs, supportNotes, attachments, reviewAt sql.NullString
		var areaID, areaTitle, deletedAt, purgedAt, revBy sql.NullString
		var sequential, focused, rev sql.NullInt64
		var orderNum sql.NullInt64

		if err := rows.Scan(&p.ID, &p.Title, &status, &p.Color, &tagIDs,
			&sequential, &focused, &supportNotes, &attachments, &reviewAt,
			&areaID, &areaTitle, &orderNum, &p.CreatedAt, &p.UpdatedAt,
			&deletedAt, &purgedAt, &rev, &revBy); err != nil {
			return fmt.Errorf("failed to scan project row: %w", err)
		}

		p.Status = model.ProjectStatus(status)
		p.SupportNotes = supportNotes.String
		p.ReviewAt = reviewAt.String
		p.AreaID = areaID.String
		p.AreaTitle = areaTitle.String
		p.DeletedAt = deletedAt.String
		p.PurgedAt = purgedAt.String
		p.RevBy = revBy.String
		p.IsSequential = sequential.Int64 != 0
		p.IsFocused = focused.Int64 != 0
		p.Rev = int(rev.Int64)
		if orderNum.Valid {
			n := int(orderNum.Int64)
			p.Order = &n
		}
		decodeJSONCol(tagIDs, &p.TagIDs)
		decodeJSONCol(attachments, &p.Attachments)

		doc.Projects = append(doc.Projects, p)
	}
	return rows.Err()
}

func (a *Adapter) loadSections(ctx context.Context, doc *model.Document) error {
	rows, err := a.conn.QueryContext(ctx, "SELECT * FROM sections")
	if err != nil {
		return fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.Section
		var description, deletedAt, purgedAt, revBy sql.NullString
		var collapsed, rev sql.NullInt64

		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Title, &s.Order, &collapsed,
			&description, &s.CreatedAt, &s.UpdatedAt, &deletedAt, &purgedAt,
			&rev, &revBy); err != nil {
			return fmt.Errorf("failed to scan section row: %w", err)
		}

		s.IsCollapsed = collapsed.Int64 != 0
		s.Description = description.String
		s.DeletedAt = deletedAt.String
		s.PurgedAt = purgedAt.String
		s.Rev = int(rev.Int64)
		s.RevBy = revBy.String

		doc.Sections = append(doc.Sections, s)
	}
	return rows.Err()
}

func (a *Adapter) loadAreas(ctx context.Context, doc *model.Document) error {
	rows, err := a.conn.QueryContext(ctx, "SELECT * FROM areas")
	if err != nil {
		return fmt.Errorf("failed to query areas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ar model.Area
		var color, icon, createdAt, updatedAt, revBy sql.NullString
		var rev sql.NullInt64

		if err := rows.Scan(&ar.ID, &ar.Name, &color, &icon, &ar.Order,
			&createdAt, &updatedAt, &rev, &revBy); err != nil {
			return fmt.Errorf("failed to scan area row: %w", err)
		}

		ar.Color = color.String
		ar.Icon = icon.String
		ar.CreatedAt = createdAt.String
		ar.UpdatedAt = updatedAt.String
		ar.Rev = int(rev.Int64)
		ar.RevBy = revBy.String

		doc.Areas = append(doc.Areas, ar)
	}
	return rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolCol(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intPtrCol(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

// jsonArr encodes a string slice, defaulting to "[]" the way other
// mindwtr clients expect.
func jsonArr(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// jsonCol encodes an optional structured value, NULL when absent.
func jsonCol(v any) any {
	switch val := v.(type) {
	case *model.Recurrence:
		if val == nil {
			return nil
		}
	case []model.ChecklistItem:
		if len(val) == 0 {
			return nil
		}
	case []model.Attachment:
		if len(val) == 0 {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

// decodeJSONCol decodes a JSON text column into dst, ignoring NULL and
// malformed values.
func decodeJSONCol[T any](col sql.NullString, dst *T) {
	if !col.Valid || col.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(col.String), dst)
}
