package store

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/mindwtr/mindwtr/internal/migrate"
	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/storage/memory"
)

// newTestStore opens a store over a fresh in-memory adapter with a
// controllable clock. The returned time pointer moves the clock.
func newTestStore(t *testing.T) (*Store, *memory.Adapter, *time.Time) {
	t.Helper()

	adapter := memory.New()
	now := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

	cfg := DefaultConfig()
	cfg.Adapter = adapter
	cfg.Logger = log.New(io.Discard, "", 0)
	cfg.Now = func() time.Time { return now }

	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close(ctx)
	})
	return s, adapter, &now
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestAddTaskDefaults(t *testing.T) {
	s, _, _ := newTestStore(t)

	task, err := s.AddTask("  write report  ", nil)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if task.Title != "write report" {
		t.Errorf("Title = %q, want trimmed title", task.Title)
	}
	if task.Status != model.StatusInbox {
		t.Errorf("Status = %q, want inbox", task.Status)
	}
	if task.Rev != 1 {
		t.Errorf("Rev = %d, want 1", task.Rev)
	}
	if task.RevBy != s.DeviceID() {
		t.Errorf("RevBy = %q, want device id %q", task.RevBy, s.DeviceID())
	}
	if len(s.VisibleTasks()) != 1 {
		t.Errorf("visible tasks = %d, want 1", len(s.VisibleTasks()))
	}
}

func TestAddTaskEmptyTitle(t *testing.T) {
	s, _, _ := newTestStore(t)

	if _, err := s.AddTask("   ", nil); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("AddTask error = %v, want ErrEmptyTitle", err)
	}
	if got := s.Err(); !errors.Is(got, ErrEmptyTitle) {
		t.Errorf("Err() = %v, want ErrEmptyTitle", got)
	}
}

func TestUpdateTaskRevisionStamping(t *testing.T) {
	s, _, _ := newTestStore(t)
	task, _ := s.AddTask("a", nil)

	title := "b"
	updated := s.UpdateTask(task.ID, &TaskUpdate{Title: &title})
	if updated == nil {
		t.Fatal("UpdateTask returned nil")
	}
	if updated.Rev != 2 {
		t.Errorf("Rev = %d, want 2", updated.Rev)
	}
	if updated.RevBy != s.DeviceID() {
		t.Errorf("RevBy = %q, want device id", updated.RevBy)
	}
}

func TestUpdateTaskUnknownIDIsNoop(t *testing.T) {
	s, _, _ := newTestStore(t)
	title := "x"
	if got := s.UpdateTask("missing", &TaskUpdate{Title: &title}); got != nil {
		t.Errorf("UpdateTask for unknown id = %+v, want nil", got)
	}
}

func TestCompleteTask(t *testing.T) {
	s, _, _ := newTestStore(t)
	focused := true
	task, _ := s.AddTask("a", &TaskUpdate{IsFocusedToday: &focused})

	status := model.StatusDone
	done := s.UpdateTask(task.ID, &TaskUpdate{Status: &status})
	if done.CompletedAt == "" {
		t.Error("CompletedAt not stamped on completion")
	}
	if done.IsFocusedToday {
		t.Error("completion kept today focus")
	}

	// Leaving the terminal status clears the completion stamp.
	status = model.StatusNext
	reopened := s.UpdateTask(task.ID, &TaskUpdate{Status: &status})
	if reopened.CompletedAt != "" {
		t.Errorf("CompletedAt = %q after reopening, want empty", reopened.CompletedAt)
	}
}

func TestCompleteRecurringTaskSpawnsFollowUp(t *testing.T) {
	s, _, _ := newTestStore(t)
	due := "2024-06-01T09:00"
	task, _ := s.AddTask("water plants", &TaskUpdate{
		DueDate:    &due,
		Recurrence: &model.Recurrence{Rule: model.RuleDaily},
	})

	status := model.StatusDone
	s.UpdateTask(task.ID, &TaskUpdate{Status: &status})

	var followUp *model.Task
	for _, v := range s.VisibleTasks() {
		if v.ID != task.ID {
			v := v
			followUp = &v
		}
	}
	if followUp == nil {
		t.Fatal("no follow-up task after completing a recurring task")
	}
	if followUp.Status != model.StatusNext {
		t.Errorf("follow-up status = %q, want next", followUp.Status)
	}
	if followUp.DueDate != "2024-06-02T09:00" {
		t.Errorf("follow-up due = %q, want 2024-06-02T09:00", followUp.DueDate)
	}
	if followUp.Rev != 1 {
		t.Errorf("follow-up rev = %d, want 1", followUp.Rev)
	}
}

func TestPushCount(t *testing.T) {
	s, _, _ := newTestStore(t)
	due := "2024-06-10"
	task, _ := s.AddTask("a", &TaskUpdate{DueDate: &due})

	// Later due date counts as a push.
	later := "2024-06-12"
	got := s.UpdateTask(task.ID, &TaskUpdate{DueDate: &later})
	if got.PushCount != 1 {
		t.Errorf("PushCount = %d after pushing out, want 1", got.PushCount)
	}

	// Earlier date is not a push.
	earlier := "2024-06-11"
	got = s.UpdateTask(task.ID, &TaskUpdate{DueDate: &earlier})
	if got.PushCount != 1 {
		t.Errorf("PushCount = %d after pulling in, want 1", got.PushCount)
	}

	// Clearing the date leaves the counter alone.
	empty := ""
	got = s.UpdateTask(task.ID, &TaskUpdate{DueDate: &empty})
	if got.PushCount != 1 {
		t.Errorf("PushCount = %d after clearing, want 1", got.PushCount)
	}

	// Setting a date on a task without one is not a push either.
	again := "2024-06-20"
	got = s.UpdateTask(task.ID, &TaskUpdate{DueDate: &again})
	if got.PushCount != 1 {
		t.Errorf("PushCount = %d after setting from empty, want 1", got.PushCount)
	}
}

func TestReferenceStatusClearsScheduling(t *testing.T) {
	s, _, _ := newTestStore(t)
	due := "2024-06-10"
	start := "2024-06-09T08:00"
	focused := true
	task, _ := s.AddTask("read later", &TaskUpdate{
		DueDate:        &due,
		StartTime:      &start,
		Recurrence:     &model.Recurrence{Rule: model.RuleWeekly},
		IsFocusedToday: &focused,
	})

	status := model.StatusReference
	got := s.UpdateTask(task.ID, &TaskUpdate{Status: &status})
	if got.DueDate != "" || got.StartTime != "" || got.ReviewAt != "" {
		t.Errorf("reference kept dates: due=%q start=%q review=%q", got.DueDate, got.StartTime, got.ReviewAt)
	}
	if got.Recurrence != nil {
		t.Error("reference kept recurrence")
	}
	if got.IsFocusedToday {
		t.Error("reference kept focus")
	}
	if got.PushCount != 0 {
		t.Errorf("PushCount = %d, want 0", got.PushCount)
	}
}

func TestProjectMoveCascade(t *testing.T) {
	s, _, _ := newTestStore(t)
	p1, _ := s.AddProject("home", nil)
	p2, _ := s.AddProject("work", nil)
	section, err := s.AddSection(p1.ID, "kitchen")
	if err != nil {
		t.Fatalf("AddSection: %v", err)
	}

	task, _ := s.AddTask("a", &TaskUpdate{ProjectID: &p1.ID, SectionID: &section.ID})
	if task.SectionID != section.ID {
		t.Fatalf("setup: section not applied: %q", task.SectionID)
	}
	if task.OrderNum == nil {
		t.Fatal("setup: no order assigned on project entry")
	}

	// Moving projects drops the stale section and assigns fresh order.
	moved := s.UpdateTask(task.ID, &TaskUpdate{ProjectID: &p2.ID})
	if moved.SectionID != "" {
		t.Errorf("SectionID = %q after move, want empty", moved.SectionID)
	}
	if moved.OrderNum == nil {
		t.Error("no order assigned in the new project")
	}

	// Moving out of all projects clears order and section.
	none := ""
	cleared := s.UpdateTask(task.ID, &TaskUpdate{ProjectID: &none})
	if cleared.OrderNum != nil || cleared.SectionID != "" {
		t.Errorf("leaving the project kept order=%v section=%q", cleared.OrderNum, cleared.SectionID)
	}
}

func TestSectionMustBelongToProject(t *testing.T) {
	s, _, _ := newTestStore(t)
	p1, _ := s.AddProject("home", nil)
	p2, _ := s.AddProject("work", nil)
	sec, _ := s.AddSection(p1.ID, "kitchen")

	// A section from another project does not stick.
	task, _ := s.AddTask("a", &TaskUpdate{ProjectID: &p2.ID, SectionID: &sec.ID})
	if task.SectionID != "" {
		t.Errorf("SectionID = %q, want empty for a foreign section", task.SectionID)
	}
}

func TestDeleteRestorePurgeTask(t *testing.T) {
	s, _, _ := newTestStore(t)
	task, _ := s.AddTask("a", nil)

	s.DeleteTask(task.ID)
	if len(s.VisibleTasks()) != 0 {
		t.Fatal("deleted task still visible")
	}

	s.PurgeTask(task.ID)
	doc := s.Document()
	if doc.Tasks[0].PurgedAt == "" {
		t.Error("PurgedAt not stamped")
	}
	if doc.Tasks[0].DeletedAt == "" {
		t.Error("purge cleared the tombstone")
	}

	restored := s.RestoreTask(task.ID)
	if restored.DeletedAt != "" || restored.PurgedAt != "" {
		t.Error("restore left tombstone fields set")
	}
	if len(s.VisibleTasks()) != 1 {
		t.Error("restored task not visible")
	}
}

func TestRestoreArchivedTaskReturnsToInbox(t *testing.T) {
	s, _, _ := newTestStore(t)
	task, _ := s.AddTask("a", nil)
	status := model.StatusArchived
	s.UpdateTask(task.ID, &TaskUpdate{Status: &status})

	restored := s.RestoreTask(task.ID)
	if restored.Status != model.StatusInbox {
		t.Errorf("Status = %q after restore, want inbox", restored.Status)
	}
	if restored.CompletedAt != "" {
		t.Errorf("CompletedAt = %q after restore, want empty", restored.CompletedAt)
	}
}

func TestProjectDeleteCascade(t *testing.T) {
	s, _, _ := newTestStore(t)
	project, _ := s.AddProject("home", nil)
	section, _ := s.AddSection(project.ID, "kitchen")
	task, _ := s.AddTask("a", &TaskUpdate{ProjectID: &project.ID, SectionID: &section.ID})
	other, _ := s.AddTask("unrelated", nil)

	s.DeleteProject(project.ID)

	doc := s.Document()
	byID := map[string]model.Task{}
	for _, tk := range doc.Tasks {
		byID[tk.ID] = tk
	}
	cascaded, unrelated := byID[task.ID], byID[other.ID]
	if !cascaded.Deleted() {
		t.Error("project task survived the cascade")
	}
	if cascaded.SectionID != "" {
		t.Error("cascade kept the task's section")
	}
	if cascaded.ProjectID != project.ID {
		t.Error("cascade cleared the task's project link")
	}
	if unrelated.Deleted() {
		t.Error("cascade deleted an unrelated task")
	}
	if len(s.VisibleProjects()) != 0 || len(s.VisibleSections()) != 0 {
		t.Error("cascade left project or section visible")
	}
}

func TestProjectRestoreBringsCascadeBack(t *testing.T) {
	s, _, _ := newTestStore(t)
	project, _ := s.AddProject("home", nil)
	task, _ := s.AddTask("a", &TaskUpdate{ProjectID: &project.ID})

	// Entities deleted on their own beforehand must stay deleted,
	// even when the frozen clock gives their tombstones the very same
	// timestamp as the cascade's.
	solo, _ := s.AddTask("b", &TaskUpdate{ProjectID: &project.ID})
	s.DeleteTask(solo.ID)
	soloSec, _ := s.AddSection(project.ID, "attic")
	s.DeleteSection(soloSec.ID)

	s.DeleteProject(project.ID)
	s.RestoreProject(project.ID)

	byID := map[string]model.Task{}
	for _, tk := range s.Document().Tasks {
		byID[tk.ID] = tk
	}
	brought, kept := byID[task.ID], byID[solo.ID]
	if brought.Deleted() {
		t.Error("cascade-deleted task not restored with its project")
	}
	if !kept.Deleted() {
		t.Error("independently deleted task was resurrected")
	}
	for _, sec := range s.Document().Sections {
		if sec.ID == soloSec.ID && !sec.Deleted() {
			t.Error("independently deleted section was resurrected")
		}
	}
}

func TestArchiveProjectArchivesTasks(t *testing.T) {
	s, _, _ := newTestStore(t)
	project, _ := s.AddProject("home", nil)
	task, _ := s.AddTask("a", &TaskUpdate{ProjectID: &project.ID})

	status := model.ProjectArchived
	s.UpdateProject(project.ID, &ProjectUpdate{Status: &status})

	got := s.Document().Tasks[0]
	if got.ID != task.ID {
		t.Fatal("unexpected task ordering")
	}
	if got.Status != model.StatusArchived {
		t.Errorf("task status = %q, want archived", got.Status)
	}
	if got.CompletedAt == "" {
		t.Error("archive left CompletedAt empty")
	}
}

func TestAddProjectIdempotent(t *testing.T) {
	s, _, _ := newTestStore(t)
	first, _ := s.AddProject("Home", nil)
	second, _ := s.AddProject("  home ", nil)
	if first.ID != second.ID {
		t.Errorf("case-insensitive re-add created %q, want %q", second.ID, first.ID)
	}
	if len(s.VisibleProjects()) != 1 {
		t.Errorf("projects = %d, want 1", len(s.VisibleProjects()))
	}
}

func TestProjectFocusCap(t *testing.T) {
	s, _, _ := newTestStore(t)

	var ids []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		p, _ := s.AddProject(name, nil)
		ids = append(ids, p.ID)
	}
	for _, id := range ids {
		s.ToggleProjectFocus(id)
	}

	focused := 0
	for _, p := range s.VisibleProjects() {
		if p.IsFocused {
			focused++
		}
	}
	if focused != FocusLimit {
		t.Errorf("focused projects = %d, want cap of %d", focused, FocusLimit)
	}

	// Unfocusing always works, then the freed slot is usable again.
	s.ToggleProjectFocus(ids[0])
	s.ToggleProjectFocus(ids[5])
	byID := map[string]model.Project{}
	for _, p := range s.VisibleProjects() {
		byID[p.ID] = p
	}
	if byID[ids[0]].IsFocused {
		t.Error("unfocus did not apply")
	}
	if !byID[ids[5]].IsFocused {
		t.Error("freed focus slot not reusable")
	}
}

func TestDeleteAreaUnfilesEverything(t *testing.T) {
	s, _, _ := newTestStore(t)
	area, _ := s.AddArea("health", nil)
	project, _ := s.AddProject("gym", &ProjectUpdate{AreaID: &area.ID})
	task, _ := s.AddTask("run", &TaskUpdate{AreaID: &area.ID})

	s.DeleteArea(area.ID)

	if len(s.Areas()) != 0 {
		t.Fatal("area not removed")
	}
	doc := s.Document()
	for _, p := range doc.Projects {
		if p.ID == project.ID && (p.AreaID != "" || p.AreaTitle != "") {
			t.Errorf("project kept area: id=%q title=%q", p.AreaID, p.AreaTitle)
		}
		if p.ID == project.ID && p.Deleted() {
			t.Error("area removal deleted the project")
		}
	}
	for _, tk := range doc.Tasks {
		if tk.ID == task.ID && tk.AreaID != "" {
			t.Error("task kept area reference")
		}
	}
}

func TestAddAreaIdempotentUpsert(t *testing.T) {
	s, _, _ := newTestStore(t)
	first, _ := s.AddArea("Health", nil)

	color := "#ff0000"
	second, _ := s.AddArea("health", &AreaUpdate{Color: &color})
	if first.ID != second.ID {
		t.Fatalf("re-add created a new area")
	}
	if second.Color != color {
		t.Errorf("Color = %q, props not applied on upsert", second.Color)
	}
}

func TestBatchDeleteSingleSave(t *testing.T) {
	s, adapter, _ := newTestStore(t)
	t1, _ := s.AddTask("a", nil)
	t2, _ := s.AddTask("b", nil)
	t3, _ := s.AddTask("c", nil)
	flush(t, s)
	base := adapter.SaveCount()

	s.BatchDeleteTasks([]string{t1.ID, t2.ID, t3.ID})
	flush(t, s)

	if got := adapter.SaveCount() - base; got != 1 {
		t.Errorf("saves for one batch = %d, want 1", got)
	}
	if len(s.VisibleTasks()) != 0 {
		t.Error("batch delete left visible tasks")
	}
}

func TestReorderProjectsTotalOverScope(t *testing.T) {
	s, _, _ := newTestStore(t)
	a, _ := s.AddProject("a", nil)
	b, _ := s.AddProject("b", nil)
	c, _ := s.AddProject("c", nil)

	// A stale caller list missing project b still yields a total order:
	// listed first, the rest in prior relative order.
	s.ReorderProjects([]string{c.ID, a.ID}, "")

	order := map[string]int{}
	for _, p := range s.VisibleProjects() {
		if p.Order == nil {
			t.Fatalf("project %q has no order", p.Title)
		}
		order[p.ID] = *p.Order
	}
	if order[c.ID] != 0 || order[a.ID] != 1 || order[b.ID] != 2 {
		t.Errorf("order = c:%d a:%d b:%d, want 0/1/2", order[c.ID], order[a.ID], order[b.ID])
	}
}

func TestSanitizedForRemote(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.UpdateSettings(func(st *model.Settings) {
		st.AI = &model.AISettings{Provider: "openai", APIKey: "sk-secret"}
	})
	attachments := []model.Attachment{{ID: "a1", Name: "scan", URI: "file:///tmp/scan.pdf"}}
	s.AddTask("with file", &TaskUpdate{Attachments: &attachments})

	doc := s.SanitizedForRemote()
	if doc.Settings.AI == nil || doc.Settings.AI.APIKey != "" {
		t.Error("remote snapshot kept the API key")
	}
	if uri := doc.Tasks[0].Attachments[0].URI; uri != "" {
		t.Errorf("remote snapshot kept local file URI %q", uri)
	}
}

func TestRefreshSkippedWhileEditing(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.BeginEdit()
	defer s.EndEdit()

	err := s.RefreshFromStorage(context.Background())
	if !errors.Is(err, ErrLocked) {
		t.Errorf("RefreshFromStorage during edit = %v, want ErrLocked", err)
	}
}

func TestRefreshReplacesState(t *testing.T) {
	s, adapter, _ := newTestStore(t)
	s.AddTask("local", nil)
	flush(t, s)

	// Another device wrote a different document.
	doc := s.Document()
	doc.Tasks[0].Title = "edited elsewhere"
	adapter.Seed(doc)

	if err := s.RefreshFromStorage(context.Background()); err != nil {
		t.Fatalf("RefreshFromStorage: %v", err)
	}
	if got := s.VisibleTasks()[0].Title; got != "edited elsewhere" {
		t.Errorf("Title = %q after refresh, want remote edit", got)
	}
}

func TestRefreshPersistsMigrationEdits(t *testing.T) {
	s, adapter, _ := newTestStore(t)
	flush(t, s)

	// An external tool wrote a pre-migration document.
	doc := model.NewDocument()
	doc.Tasks = append(doc.Tasks, model.Task{
		ID: "t1", Title: "legacy", Status: "todo",
		CreatedAt: "2024-01-01", UpdatedAt: "2024-01-01",
	})
	adapter.Seed(doc)

	if err := s.RefreshFromStorage(context.Background()); err != nil {
		t.Fatalf("RefreshFromStorage: %v", err)
	}
	flush(t, s)

	saved := adapter.Document()
	if len(saved.Tasks) != 1 || saved.Tasks[0].Status != model.StatusNext {
		t.Errorf("saved Status = %v, want the migrated status", saved.Tasks)
	}
	if saved.Settings.MigrationVersion != migrate.Version {
		t.Errorf("saved MigrationVersion = %d, want %d",
			saved.Settings.MigrationVersion, migrate.Version)
	}
}

func TestUpdateProjectRejectsDuplicateTitle(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.AddProject("Home", nil)
	work, _ := s.AddProject("Work", nil)

	title := "home"
	if got := s.UpdateProject(work.ID, &ProjectUpdate{Title: &title}); got != nil {
		t.Fatalf("UpdateProject = %v, want rejection", got)
	}
	if !errors.Is(s.Err(), ErrDuplicateTitle) {
		t.Errorf("Err = %v, want ErrDuplicateTitle", s.Err())
	}
	keys := map[string]int{}
	for _, p := range s.VisibleProjects() {
		keys[model.TitleKey(p.Title)]++
	}
	if keys["home"] != 1 || keys["work"] != 1 {
		t.Errorf("title keys = %v, want home and work once each", keys)
	}

	// Changing only the casing of its own title stays allowed.
	self := "WORK"
	if got := s.UpdateProject(work.ID, &ProjectUpdate{Title: &self}); got == nil || got.Title != "WORK" {
		t.Errorf("self-rename = %v, want the recased title", got)
	}

	// A deleted sibling does not block the title.
	s.DeleteProject(work.ID)
	other, _ := s.AddProject("Errands", nil)
	taken := "work"
	if got := s.UpdateProject(other.ID, &ProjectUpdate{Title: &taken}); got == nil || got.Title != "work" {
		t.Errorf("rename over tombstone = %v, want it applied", got)
	}
}

func TestUpdateAreaRejectsDuplicateName(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.AddArea("Health", nil)
	finance, _ := s.AddArea("Finance", nil)

	name := "health"
	if got := s.UpdateArea(finance.ID, &AreaUpdate{Name: &name}); got != nil {
		t.Fatalf("UpdateArea = %v, want rejection", got)
	}
	if !errors.Is(s.Err(), ErrDuplicateTitle) {
		t.Errorf("Err = %v, want ErrDuplicateTitle", s.Err())
	}
	for _, a := range s.Areas() {
		if a.ID == finance.ID && a.Name != "Finance" {
			t.Errorf("Name = %q after rejected rename, want Finance", a.Name)
		}
	}
}

func TestAddSectionRequiresProject(t *testing.T) {
	s, _, _ := newTestStore(t)
	if _, err := s.AddSection("missing", "kitchen"); !errors.Is(err, ErrUnknownProject) {
		t.Errorf("err = %v, want ErrUnknownProject", err)
	}

	project, _ := s.AddProject("home", nil)
	if _, err := s.AddSection(project.ID, "   "); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("err on blank title = %v, want ErrEmptyTitle", err)
	}

	s.DeleteProject(project.ID)
	if _, err := s.AddSection(project.ID, "kitchen"); !errors.Is(err, ErrUnknownProject) {
		t.Errorf("err on deleted project = %v, want ErrUnknownProject", err)
	}
}

func TestClosedStoreRejectsMutations(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := s.AddTask("late", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("AddTask after close = %v, want ErrClosed", err)
	}
}
