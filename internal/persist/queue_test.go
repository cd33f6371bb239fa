package persist

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/storage/memory"
)

func testConfig() *Config {
	return &Config{
		SaveTimeout: 5 * time.Second,
		Debounce:    time.Second,
		Logger:      log.New(io.Discard, "", 0),
	}
}

func docWithTitle(title string) *model.Document {
	doc := model.NewDocument()
	doc.Tasks = append(doc.Tasks, model.Task{ID: "t1", Title: title, Status: model.StatusInbox})
	return doc
}

func TestQueueWritesNewestSnapshot(t *testing.T) {
	adapter := memory.New()
	q := New(adapter, testConfig())

	for _, title := range []string{"one", "two", "three"} {
		q.Enqueue(docWithTitle(title))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := adapter.Document()
	if len(got.Tasks) != 1 || got.Tasks[0].Title != "three" {
		t.Errorf("stored title = %v, want the last snapshot", got.Tasks)
	}
}

func TestQueueCoalesces(t *testing.T) {
	adapter := memory.New()
	q := New(adapter, testConfig())

	// The debounce holds the first write back, so a burst of
	// mutations followed by one flush lands as a single save.
	const burst = 50
	for i := 0; i < burst; i++ {
		q.Enqueue(docWithTitle("v"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if saves := adapter.SaveCount(); saves != 1 {
		t.Errorf("saves = %d for %d mutations, want exactly 1", saves, burst)
	}
}

func TestQueueRetainsSnapshotOnFailure(t *testing.T) {
	adapter := memory.New()
	saveErr := errors.New("disk full")
	adapter.SaveErr = saveErr

	var notified error
	cfg := testConfig()
	cfg.OnError = func(err error) { notified = err }
	q := New(adapter, cfg)

	q.Enqueue(docWithTitle("precious"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Flush(ctx); !errors.Is(err, saveErr) {
		t.Fatalf("Flush = %v, want the save error", err)
	}
	if !errors.Is(q.Err(), saveErr) {
		t.Errorf("Err() = %v, want the save error", q.Err())
	}
	if !errors.Is(notified, saveErr) {
		t.Errorf("OnError got %v, want the save error", notified)
	}

	// The adapter recovers; the retained snapshot must land on the
	// next flush without a new Enqueue.
	adapter.SaveErr = nil
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush after recovery: %v", err)
	}
	got := adapter.Document()
	if len(got.Tasks) != 1 || got.Tasks[0].Title != "precious" {
		t.Error("retained snapshot was lost after a failed save")
	}
	if q.Err() != nil {
		t.Errorf("Err() = %v after successful save, want nil", q.Err())
	}
}

func TestQueueFlushHonorsContext(t *testing.T) {
	adapter := memory.New()
	adapter.SaveErr = errors.New("stuck")
	q := New(adapter, testConfig())
	q.Enqueue(docWithTitle("v"))

	// Exhaust the failed write first so the flush loop parks, then a
	// pre-cancelled context must not hang.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Flush(ctx)
	if err == nil {
		t.Fatal("Flush with cancelled context returned nil")
	}
}

func TestQueueClosedRejectsEnqueue(t *testing.T) {
	adapter := memory.New()
	q := New(adapter, testConfig())
	q.Enqueue(docWithTitle("before"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	q.Enqueue(docWithTitle("after"))
	time.Sleep(50 * time.Millisecond)
	got := adapter.Document()
	if got.Tasks[0].Title != "before" {
		t.Errorf("stored title = %q, enqueue after close must be ignored", got.Tasks[0].Title)
	}
}

func TestSanitizeForSave(t *testing.T) {
	doc := model.NewDocument()
	doc.Settings.AI = &model.AISettings{Provider: "openai", APIKey: "sk-secret"}

	out := SanitizeForSave(doc)
	if out.Settings.AI.APIKey != "" {
		t.Error("API key survived sanitization")
	}
	if doc.Settings.AI.APIKey != "sk-secret" {
		t.Error("sanitizer mutated the source document")
	}

	// The snapshot must not alias the source.
	doc.Settings.AI.Provider = "changed"
	if out.Settings.AI.Provider != "openai" {
		t.Error("snapshot aliases the source settings")
	}
}

func TestSanitizeForRemote(t *testing.T) {
	doc := model.NewDocument()
	doc.Settings.DeviceID = "device-1"
	doc.Settings.Appearance = "dark"
	doc.Tasks = append(doc.Tasks, model.Task{
		ID: "t1", Title: "a", Status: model.StatusInbox,
		Attachments: []model.Attachment{
			{ID: "a1", URI: "file:///home/u/scan.pdf"},
			{ID: "a2", URI: "https://example.com/doc"},
		},
	})

	out := SanitizeForRemote(doc)
	if out.Tasks[0].Attachments[0].URI != "" {
		t.Error("local file URI survived")
	}
	if out.Tasks[0].Attachments[1].URI != "https://example.com/doc" {
		t.Error("remote URI was blanked")
	}
	if out.Settings.DeviceID != "" {
		t.Error("device id leaked into the remote snapshot")
	}
	if out.Settings.Appearance != "dark" {
		t.Error("synced settings section dropped")
	}
}
