package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mindwtr/mindwtr/internal/model"
)

func testDoc() *model.Document {
	doc := model.NewDocument()
	doc.Tasks = append(doc.Tasks, model.Task{
		ID: "t1", Title: "a", Status: model.StatusInbox,
		CreatedAt: "2024-06-01T10:00:00Z", UpdatedAt: "2024-06-01T10:00:00Z",
	})
	doc.Settings.DeviceID = "device-1"
	return doc
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "data.json")
	a := New(path)
	ctx := context.Background()

	if err := a.Save(ctx, testDoc()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := a.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "t1" {
		t.Errorf("tasks = %+v, want the saved task", got.Tasks)
	}
	if got.Settings.DeviceID != "device-1" {
		t.Errorf("DeviceID = %q, want device-1", got.Settings.DeviceID)
	}
}

func TestLoadMissingFileYieldsEmptyDocument(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "nope.json"))
	doc, err := a.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Tasks) != 0 || len(doc.Projects) != 0 {
		t.Errorf("missing file yielded non-empty document: %+v", doc)
	}
}

func TestSaveKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	a := New(path)
	ctx := context.Background()

	first := testDoc()
	if err := a.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := testDoc()
	second.Tasks[0].Title = "edited"
	if err := a.Save(ctx, second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	bak, err := os.ReadFile(a.BackupPath())
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	doc, err := model.DecodeDocument(bak)
	if err != nil {
		t.Fatalf("decode backup: %v", err)
	}
	if doc.Tasks[0].Title != "a" {
		t.Errorf("backup title = %q, want the previous contents", doc.Tasks[0].Title)
	}
}

func TestLoadFallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	a := New(path)
	ctx := context.Background()

	if err := a.Save(ctx, testDoc()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := a.Save(ctx, testDoc()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Corrupt the live file beyond even the relaxed parser.
	if err := os.WriteFile(path, []byte("not json at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := a.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Tasks) != 1 {
		t.Errorf("backup fallback yielded %d tasks, want 1", len(doc.Tasks))
	}
}

func TestParseRelaxed(t *testing.T) {
	valid := `{"tasks":[{"id":"t1","title":"a","status":"inbox","createdAt":"x","updatedAt":"x"}]}`

	tests := []struct {
		name      string
		data      string
		wantTasks int
		wantErr   bool
	}{
		{name: "clean", data: valid, wantTasks: 1},
		{name: "bom prefix", data: "\uFEFF" + valid, wantTasks: 1},
		{name: "trailing nuls", data: valid + "\x00\x00\x00", wantTasks: 1},
		{name: "trailing junk", data: valid + "garbage from a torn write", wantTasks: 1},
		{name: "leading junk", data: "sync-conflict " + valid, wantTasks: 1},
		{name: "empty file", data: ""},
		{name: "hopeless", data: "no json here", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parseRelaxed([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseRelaxed succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRelaxed: %v", err)
			}
			if len(doc.Tasks) != tt.wantTasks {
				t.Errorf("tasks = %d, want %d", len(doc.Tasks), tt.wantTasks)
			}
		})
	}
}
