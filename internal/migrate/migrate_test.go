package migrate

import (
	"testing"
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
)

var testNow = time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

func TestRunIsIdempotent(t *testing.T) {
	doc := model.NewDocument()
	doc.Tasks = append(doc.Tasks, model.Task{ID: "t1", Title: "a", Status: "todo"})

	if !Run(doc, testNow, nil) {
		t.Fatal("first run reported no changes")
	}
	if doc.Settings.MigrationVersion != Version {
		t.Errorf("MigrationVersion = %d, want %d", doc.Settings.MigrationVersion, Version)
	}

	// A second run within the sweep interval must be a pure no-op.
	status := doc.Tasks[0].Status
	sweptAt := doc.Settings.LastAutoArchiveAt
	if Run(doc, testNow.Add(time.Hour), nil) {
		t.Error("second run reported changes")
	}
	if doc.Tasks[0].Status != status {
		t.Error("second run mutated a task")
	}
	if doc.Settings.LastAutoArchiveAt != sweptAt {
		t.Error("second run re-stamped the sweep timestamp")
	}
}

func TestNormalizeStatuses(t *testing.T) {
	doc := model.NewDocument()
	doc.Tasks = []model.Task{
		{ID: "t1", Status: "todo"},
		{ID: "t2", Status: "completed"},
		{ID: "t3", Status: "NEXT"},
		{ID: "t4", Status: "banana"},
		{ID: "t5", Status: model.StatusWaiting},
	}
	doc.Projects = []model.Project{
		{ID: "p1", Status: "ACTIVE"},
		{ID: "p2", Status: "bogus"},
	}

	Run(doc, testNow, nil)

	want := []model.TaskStatus{
		model.StatusNext, model.StatusDone, model.StatusNext,
		model.StatusInbox, model.StatusWaiting,
	}
	for i, w := range want {
		if doc.Tasks[i].Status != w {
			t.Errorf("task %d status = %q, want %q", i, doc.Tasks[i].Status, w)
		}
	}
	if doc.Projects[0].Status != model.ProjectActive {
		t.Errorf("project 0 status = %q, want active", doc.Projects[0].Status)
	}
	if doc.Projects[1].Status != model.ProjectActive {
		t.Errorf("project 1 status = %q, unknown must land on active", doc.Projects[1].Status)
	}
}

func TestBackfillProjectOrder(t *testing.T) {
	two := 2
	doc := model.NewDocument()
	doc.Projects = []model.Project{
		{ID: "p1", AreaID: "a1", Order: &two},
		{ID: "p2", AreaID: "a1"},
		{ID: "p3", AreaID: "a2"},
	}

	Run(doc, testNow, nil)

	if doc.Projects[1].Order == nil || *doc.Projects[1].Order != 3 {
		t.Errorf("p2 order = %v, want 3 (after the area's highest)", doc.Projects[1].Order)
	}
	if doc.Projects[2].Order == nil || *doc.Projects[2].Order != 0 {
		t.Errorf("p3 order = %v, want 0 in its own area", doc.Projects[2].Order)
	}
}

func TestMergeDuplicateAreas(t *testing.T) {
	doc := model.NewDocument()
	doc.Areas = []model.Area{
		{ID: "a1", Name: "Health", Order: 1},
		{ID: "a2", Name: "health", Order: 0},
		{ID: "a3", Name: "Work", Order: 2},
	}
	doc.Projects = []model.Project{{ID: "p1", AreaID: "a1"}}
	doc.Tasks = []model.Task{{ID: "t1", AreaID: "a1"}, {ID: "t2", AreaID: "a3"}}

	Run(doc, testNow, nil)

	if len(doc.Areas) != 2 {
		t.Fatalf("areas = %d, want duplicates merged to 2", len(doc.Areas))
	}
	// The lower-order area survives and absorbs the references.
	for _, a := range doc.Areas {
		if a.ID == "a1" {
			t.Error("higher-order duplicate survived the merge")
		}
	}
	if doc.Projects[0].AreaID != "a2" {
		t.Errorf("project area = %q, want remapped to a2", doc.Projects[0].AreaID)
	}
	if doc.Tasks[0].AreaID != "a2" {
		t.Errorf("task area = %q, want remapped to a2", doc.Tasks[0].AreaID)
	}
	if doc.Tasks[1].AreaID != "a3" {
		t.Errorf("unrelated task area = %q, want untouched", doc.Tasks[1].AreaID)
	}
}

func TestProvisionDeviceID(t *testing.T) {
	doc := model.NewDocument()
	Run(doc, testNow, nil)
	if doc.Settings.DeviceID == "" {
		t.Fatal("no device id provisioned")
	}

	id := doc.Settings.DeviceID
	doc.Settings.MigrationVersion = 0
	Run(doc, testNow, nil)
	if doc.Settings.DeviceID != id {
		t.Error("re-run replaced an existing device id")
	}
}

func TestAutoArchive(t *testing.T) {
	stale := model.Stamp(testNow.AddDate(0, 0, -10))
	fresh := model.Stamp(testNow.AddDate(0, 0, -2))
	doc := model.NewDocument()
	doc.Tasks = []model.Task{
		{ID: "old", Status: model.StatusDone, CompletedAt: stale},
		{ID: "new", Status: model.StatusDone, CompletedAt: fresh},
		{ID: "open", Status: model.StatusNext},
	}

	Run(doc, testNow, nil)

	if doc.Tasks[0].Status != model.StatusArchived {
		t.Errorf("stale done task = %q, want archived", doc.Tasks[0].Status)
	}
	if doc.Tasks[1].Status != model.StatusDone {
		t.Errorf("recent done task = %q, want still done", doc.Tasks[1].Status)
	}
	if doc.Tasks[2].Status != model.StatusNext {
		t.Errorf("open task = %q, want untouched", doc.Tasks[2].Status)
	}
	if doc.Settings.LastAutoArchiveAt == "" {
		t.Error("sweep timestamp not recorded")
	}
}

func TestAutoArchiveTimeGate(t *testing.T) {
	stale := model.Stamp(testNow.AddDate(0, 0, -10))
	doc := model.NewDocument()
	doc.Settings.MigrationVersion = Version
	doc.Settings.LastAutoArchiveAt = model.Stamp(testNow.Add(-time.Hour))
	doc.Tasks = []model.Task{{ID: "old", Status: model.StatusDone, CompletedAt: stale}}

	// Swept an hour ago: inside the 12h gate, nothing runs.
	if Run(doc, testNow, nil) {
		t.Error("Run reported changes inside the sweep interval")
	}
	if doc.Tasks[0].Status != model.StatusDone {
		t.Error("gated sweep still archived a task")
	}

	// Past the gate the sweep runs again.
	if !Run(doc, testNow.Add(13*time.Hour), nil) {
		t.Error("Run reported no changes past the sweep interval")
	}
	if doc.Tasks[0].Status != model.StatusArchived {
		t.Error("sweep did not archive past the gate")
	}
}

func TestAutoArchiveDisabled(t *testing.T) {
	zero := 0
	stale := model.Stamp(testNow.AddDate(0, 0, -100))
	doc := model.NewDocument()
	doc.Settings.MigrationVersion = Version
	doc.Settings.AutoArchiveDays = &zero
	doc.Tasks = []model.Task{{ID: "old", Status: model.StatusDone, CompletedAt: stale}}

	Run(doc, testNow, nil)
	if doc.Tasks[0].Status != model.StatusDone {
		t.Error("disabled sweep archived a task")
	}
}
